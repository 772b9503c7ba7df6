package threadrt

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// exitedBit is set in a Thread's exit word when the thread has terminated.
// The word is watched by joiners, so AddrInterruptBit may additionally leak
// into it when a joiner is cancelled; readers mask accordingly.
const exitedBit uint32 = 1

// cleanupEntry is one frame of a thread's cleanup-handler stack. Entries
// are singly linked and owned entirely by the thread that pushed them.
type cleanupEntry struct {
	fn   func()
	next *cleanupEntry
}

// Thread is a cancellable thread of execution backed by a goroutine.
//
// A Thread is created by Runtime.Spawn and, unless spawned detached, must
// be reaped exactly once with Join. Cancellation is cooperative: Cancel
// requests termination, and the thread honors the request at its next
// cancellation point (see TestCancel).
type Thread struct {
	// Prevent copying.
	_ [0]func()

	rt    *Runtime
	entry func(any) any
	arg   any

	// result is written by the owning thread before the exit word is set
	// and read by the joiner after observing it.
	result any

	detached bool
	foreign  bool
	gid      uint64

	// killable is mutated only by the owning thread (save/restore
	// bracketing and the cancellation unwind itself).
	killable bool
	killed   atomic.Bool
	state    threadState

	// cleaners is the LIFO cleanup-handler stack, owner-only.
	cleaners *cleanupEntry

	// wait identifies what, if anything, the thread is currently blocked
	// on, so Cancel can interrupt the blocked call.
	waitMu     sync.Mutex
	waitAddr32 *atomic.Uint32
	waitAddr64 *atomic.Uint64

	exited   atomic.Uint32
	sleepPad atomic.Uint32

	joined atomic.Bool

	// tls holds this thread's thread-local values, owner-only.
	tls map[*ThreadVar]any
}

// threadRegistry maps goroutine IDs to thread records, standing in for
// OS-level thread-local storage: it is how a thread's identity is
// retrieved from within that thread.
var threadRegistry = struct {
	mu sync.RWMutex
	m  map[uint64]*Thread
}{m: make(map[uint64]*Thread)}

func registerThread(gid uint64, th *Thread) {
	threadRegistry.mu.Lock()
	threadRegistry.m[gid] = th
	threadRegistry.mu.Unlock()
}

func unregisterThread(gid uint64) {
	threadRegistry.mu.Lock()
	delete(threadRegistry.m, gid)
	threadRegistry.mu.Unlock()
}

func lookupThread(gid uint64) *Thread {
	threadRegistry.mu.RLock()
	th := threadRegistry.m[gid]
	threadRegistry.mu.RUnlock()
	return th
}

// Current returns the calling thread's record, or nil if the caller was not
// created through Runtime.Spawn (and has not been adopted for thread-local
// storage). A goroutine with no record, the main goroutine included, is
// never cancellable.
func Current() *Thread {
	return lookupThread(getGoroutineID())
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// spawnOptions holds per-spawn configuration.
type spawnOptions struct {
	detached bool
	priority int
}

// SpawnOption configures a single Spawn call.
type SpawnOption interface {
	applySpawn(*spawnOptions)
}

type spawnOptionImpl struct {
	applySpawnFunc func(*spawnOptions)
}

func (o *spawnOptionImpl) applySpawn(opts *spawnOptions) {
	o.applySpawnFunc(opts)
}

// Detached marks the thread as detached: its record is released when the
// thread exits, and it must not be joined.
func Detached() SpawnOption {
	return &spawnOptionImpl{func(opts *spawnOptions) {
		opts.detached = true
	}}
}

// Priority requests a scheduling priority for the thread. Goroutines carry
// no OS-level priority, so the value is accepted for interface parity and
// otherwise ignored.
func Priority(p int) SpawnOption {
	return &spawnOptionImpl{func(opts *spawnOptions) {
		opts.priority = p
	}}
}

// Spawn creates and starts a thread running entry(arg).
//
// The record starts not-yet-killable: a thread cannot be cancelled before
// it has installed itself as current, so a Cancel racing the spawn is
// deferred to the thread's first cancellation point. The returned handle
// may be used for Cancel regardless of detachment; Join only if the thread
// was not spawned Detached.
func (r *Runtime) Spawn(entry func(any) any, arg any, opts ...SpawnOption) (*Thread, error) {
	if entry == nil {
		return nil, ErrNilEntry
	}
	if r.tornDown.Load() {
		return nil, ErrTornDown
	}

	var cfg spawnOptions
	for _, opt := range opts {
		if opt != nil {
			opt.applySpawn(&cfg)
		}
	}

	th := &Thread{
		rt:       r,
		entry:    entry,
		arg:      arg,
		detached: cfg.detached,
	}

	r.liveThreads.Add(1)
	r.metrics.incThreadsSpawned()
	if cfg.priority != 0 {
		logger().Debug().
			Str("category", "thread").
			Int("priority", cfg.priority).
			Log("thread priority has no effect on goroutines")
	}

	go th.run()
	return th, nil
}

// run is the entry wrapper executed on the thread's own goroutine.
func (th *Thread) run() {
	th.gid = getGoroutineID()
	registerThread(th.gid, th)
	// A cancel racing the spawn may already have claimed the record.
	th.state.TryTransition(StateCreated, StateRunning)

	// finish runs on normal return and on the cancellation unwind's
	// Goexit alike.
	defer th.finish()

	th.killable = true
	th.result = th.entry(th.arg)
}

// finish performs per-thread teardown: the thread-local destructor sweep,
// registry removal, and the exit signal that releases joiners.
func (th *Thread) finish() {
	// Destructors may hit cancellation points; the thread is already
	// terminating and must not unwind again.
	th.killable = false

	th.rt.sweepThreadVars(th)
	unregisterThread(th.gid)
	th.state.Store(StateTerminated)
	th.rt.liveThreads.Add(-1)

	th.exited.Or(exitedBit)
	th.rt.WakeAll(&th.exited)
}

// Join blocks until the thread has exited and yields its entry function's
// return value. Join is a cancellation point. Joining a detached thread,
// joining twice, or a thread joining itself is a contract violation.
func (th *Thread) Join() any {
	if th.detached {
		panic("threadrt: join of a detached thread")
	}
	if th == Current() {
		panic("threadrt: thread cannot join itself")
	}

	for {
		v := th.exited.Load()
		if v&exitedBit != 0 {
			break
		}
		th.rt.WaitOn(&th.exited, v)
	}

	if !th.joined.CompareAndSwap(false, true) {
		panic("threadrt: thread joined twice")
	}
	return th.result
}

// State returns the thread's lifecycle state.
func (th *Thread) State() ThreadState {
	return th.state.Load()
}

// Cancel requests cooperative termination of the thread.
//
// The killed flag is a hint, not a protected invariant: the target unwinds
// only at its next cancellation point. If the target is currently blocked
// on a registered watched word, the word is interrupted (see
// AddrInterruptBit) and broadcast so the blocked call returns promptly.
func (th *Thread) Cancel() {
	if th.foreign {
		return
	}
	th.killed.Store(true)
	// The request may land before the entry wrapper's Created→Running
	// transition; cover both source states so State is truthful either way.
	if !th.state.TryTransition(StateCreated, StateCancelRequested) {
		th.state.TryTransition(StateRunning, StateCancelRequested)
	}

	th.waitMu.Lock()
	if th.waitAddr32 != nil {
		th.rt.interrupt32(th.waitAddr32)
	}
	if th.waitAddr64 != nil {
		th.rt.interrupt64(th.waitAddr64)
	}
	th.waitMu.Unlock()
}

// TestCancel is a cancellation point.
//
// If the calling thread is killable and has a pending cancel request, it
// flips killable off (cancellation is not re-entrant), runs every installed
// cleanup handler most-recently-pushed-first, discards the thread's result,
// and terminates the goroutine without returning to the caller. Per-thread
// teardown (destructor sweep, exit signal) runs as usual on the way out.
func TestCancel() {
	th := Current()
	if th == nil || !th.killable {
		return
	}
	if !th.killed.Load() {
		return
	}

	th.killable = false
	th.state.TryTransition(StateCancelRequested, StateUnwinding)
	th.rt.metrics.incThreadsCancelled()
	logger().Debug().
		Str("category", "thread").
		Uint64("goroutine", th.gid).
		Log("cancellation unwind")

	for c := th.cleaners; c != nil; c = c.next {
		c.fn()
	}
	th.cleaners = nil
	th.result = nil

	runtime.Goexit()
}

// PushCleanup installs a handler on the calling thread's cleanup stack.
// Handlers run most-recently-pushed-first when the thread is cancelled, and
// never on normal exit. A no-op on goroutines that cannot be cancelled:
// those with no thread record, and foreign goroutines adopted for
// thread-local storage.
func PushCleanup(fn func()) {
	th := Current()
	if th == nil || th.foreign {
		return
	}
	th.cleaners = &cleanupEntry{fn: fn, next: th.cleaners}
}

// PopCleanup removes the most recently pushed handler, running it first if
// run is true. Popping an empty stack is a contract violation.
func PopCleanup(run bool) {
	th := Current()
	if th == nil || th.foreign {
		return
	}
	c := th.cleaners
	if c == nil {
		panic("threadrt: cleanup pop without matching push")
	}
	th.cleaners = c.next
	if run {
		c.fn()
	}
}

// SaveCancel disables cancellation for the calling thread and returns the
// previous state, bracketing sections that must not be interrupted.
// Nesting must be strictly SaveCancel → ... → RestoreCancel.
func SaveCancel() bool {
	th := Current()
	if th == nil {
		return false
	}
	state := th.killable
	th.killable = false
	return state
}

// RestoreCancel restores the cancellation state saved by the matching
// SaveCancel. Mismatched nesting is a contract violation.
func RestoreCancel(state bool) {
	th := Current()
	if th == nil {
		return
	}
	if th.killable {
		panic("threadrt: mismatched SaveCancel/RestoreCancel nesting")
	}
	th.killable = state
}

// setWaitAddr32 registers the watched word the thread is about to block on.
// Registering over an existing registration is a contract violation: the
// blocking primitives do not nest.
func (th *Thread) setWaitAddr32(addr *atomic.Uint32) {
	th.waitMu.Lock()
	if th.waitAddr32 != nil || th.waitAddr64 != nil {
		th.waitMu.Unlock()
		panic("threadrt: wait address already registered")
	}
	th.waitAddr32 = addr
	th.waitMu.Unlock()
}

func (th *Thread) clearWaitAddr32(addr *atomic.Uint32) {
	th.waitMu.Lock()
	if th.waitAddr32 != addr {
		th.waitMu.Unlock()
		panic("threadrt: clearing an unregistered wait address")
	}
	th.waitAddr32 = nil
	th.waitMu.Unlock()
}

func (th *Thread) setWaitAddr64(addr *atomic.Uint64) {
	th.waitMu.Lock()
	if th.waitAddr32 != nil || th.waitAddr64 != nil {
		th.waitMu.Unlock()
		panic("threadrt: wait address already registered")
	}
	th.waitAddr64 = addr
	th.waitMu.Unlock()
}

func (th *Thread) clearWaitAddr64(addr *atomic.Uint64) {
	th.waitMu.Lock()
	if th.waitAddr64 != addr {
		th.waitMu.Unlock()
		panic("threadrt: clearing an unregistered wait address")
	}
	th.waitAddr64 = nil
	th.waitMu.Unlock()
}
