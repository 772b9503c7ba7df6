package threadrt

import "sync/atomic"

// Metrics is a point-in-time snapshot of runtime counters.
//
// Collection is disabled by default; enable it with WithMetrics(true). All
// counters are cumulative since Setup.
type Metrics struct {
	// ThreadsSpawned counts Spawn calls that started a thread.
	ThreadsSpawned uint64
	// ThreadsCancelled counts cancellation unwinds actually performed.
	ThreadsCancelled uint64
	// StaticMutexContention counts waits on contended static mutexes, for
	// fairness diagnostics.
	StaticMutexContention uint64
	// AddrWaits counts wait operations on watched words.
	AddrWaits uint64
	// AddrWakes counts wake operations on watched words.
	AddrWakes uint64
	// AddrInterrupts counts cancellation interrupts of watched words.
	AddrInterrupts uint64
	// TimerFires counts timer callback invocations.
	TimerFires uint64
	// TimerOverruns counts skipped periodic timer slots.
	TimerOverruns uint64
}

// metrics is the live counter set. Increments are gated on enabled so the
// disabled configurations pay only a branch.
type metrics struct {
	enabled bool

	threadsSpawned        atomic.Uint64
	threadsCancelled      atomic.Uint64
	staticMutexContention atomic.Uint64
	addrWaits             atomic.Uint64
	addrWakes             atomic.Uint64
	addrInterrupts        atomic.Uint64
	timerFires            atomic.Uint64
	timerOverruns         atomic.Uint64
}

func (m *metrics) incThreadsSpawned() {
	if m.enabled {
		m.threadsSpawned.Add(1)
	}
}

func (m *metrics) incThreadsCancelled() {
	if m.enabled {
		m.threadsCancelled.Add(1)
	}
}

func (m *metrics) incStaticMutexContention() {
	if m.enabled {
		m.staticMutexContention.Add(1)
	}
}

func (m *metrics) incAddrWaits() {
	if m.enabled {
		m.addrWaits.Add(1)
	}
}

func (m *metrics) incAddrWakes() {
	if m.enabled {
		m.addrWakes.Add(1)
	}
}

func (m *metrics) incAddrInterrupts() {
	if m.enabled {
		m.addrInterrupts.Add(1)
	}
}

func (m *metrics) incTimerFires() {
	if m.enabled {
		m.timerFires.Add(1)
	}
}

func (m *metrics) addTimerOverruns(n uint64) {
	if m.enabled {
		m.timerOverruns.Add(n)
	}
}

// Metrics returns a snapshot of the runtime's counters. All zeroes unless
// collection was enabled at Setup.
func (r *Runtime) Metrics() Metrics {
	m := &r.metrics
	return Metrics{
		ThreadsSpawned:        m.threadsSpawned.Load(),
		ThreadsCancelled:      m.threadsCancelled.Load(),
		StaticMutexContention: m.staticMutexContention.Load(),
		AddrWaits:             m.addrWaits.Load(),
		AddrWakes:             m.addrWakes.Load(),
		AddrInterrupts:        m.addrInterrupts.Load(),
		TimerFires:            m.timerFires.Load(),
		TimerOverruns:         m.timerOverruns.Load(),
	}
}
