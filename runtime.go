package threadrt

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// The package super-lock.
//
// One process-wide lock serializes the three pieces of state that must work
// before (or independently of) any Runtime: the static-mutex state machine,
// the thread-local slot list, and the clock selection-once flags. Everything
// else is per-object. The zero value of sync.Mutex is what lets static
// mutexes function before Setup has run.
var (
	superMu   sync.Mutex
	superCond = sync.NewCond(&superMu)
)

// processRT is the process-wide runtime installed by Setup.
var processRT atomic.Pointer[Runtime]

// Runtime is the process-wide thread and synchronization context.
//
// A Runtime owns the clock source, the wait/wake backend, the thread-local
// slot list, and optional metrics. Construct one with Setup before any
// thread, timer, thread-local slot, or clock call, and tear it down with
// Teardown after the last such call. Static mutexes are the one facility
// that works without a Runtime.
type Runtime struct {
	// Prevent copying.
	_ [0]func()

	buckets *bucketBackend
	addr    addrBackend

	clock   clockState
	metrics metrics

	// threadvarLast is the tail of the thread-local slot list, guarded by
	// the package super-lock. The list lives at process scope so that slot
	// links are independent of any thread's lifetime.
	threadvarLast *ThreadVar

	liveThreads atomic.Int64
	tornDown    atomic.Bool
}

// Setup constructs the process-wide runtime.
//
// It probes the host for a native wait/wake facility (falling back to the
// emulated bucket table), anchors the clock, and applies options. Only one
// process runtime may exist at a time; a second Setup before Teardown
// returns ErrSetupDone.
func Setup(opts ...SetupOption) (*Runtime, error) {
	cfg, err := resolveSetupOptions(opts)
	if err != nil {
		return nil, err
	}

	r := &Runtime{}
	r.buckets = newBucketBackend(cfg.waitBuckets)
	r.addr = r.buckets
	r.metrics.enabled = cfg.metricsEnabled
	r.clock.anchor = time.Now()

	if native := probeNativeAddrBackend(r.buckets); native != nil {
		r.addr = native
		logger().Debug().
			Str("category", "runtime").
			Log("using native wait/wake backend")
	} else {
		logger().Debug().
			Str("category", "runtime").
			Int("buckets", cfg.waitBuckets).
			Log("using emulated wait/wake backend")
	}

	if cfg.clockSource != "" {
		r.SelectClockSource(cfg.clockSource)
	}

	if !processRT.CompareAndSwap(nil, r) {
		return nil, ErrSetupDone
	}
	return r, nil
}

// Default returns the process-wide runtime, or nil if Setup has not run
// (or Teardown already has).
func Default() *Runtime {
	return processRT.Load()
}

// Teardown destroys the runtime. It must be called after the last thread,
// timer, thread-local, and clock use; the runtime does not wait for
// stragglers, it only reports them.
func (r *Runtime) Teardown() error {
	if !r.tornDown.CompareAndSwap(false, true) {
		return ErrTornDown
	}

	if n := r.liveThreads.Load(); n > 0 {
		logger().Warning().
			Str("category", "runtime").
			Int64("threads", n).
			Log("teardown with live threads")
	}
	superMu.Lock()
	leaked := r.threadvarLast != nil
	superMu.Unlock()
	if leaked {
		logger().Warning().
			Str("category", "runtime").
			Log("teardown with registered thread-local slots")
	}

	processRT.CompareAndSwap(r, nil)
	return nil
}

// CPUCount returns the number of logical CPUs usable by the process.
func CPUCount() int {
	return runtime.NumCPU()
}
