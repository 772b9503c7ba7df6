package threadrt

// ThreadVar is a thread-local storage slot with an optional destructor.
//
// Every live slot is linked into a process-wide list under the package
// super-lock, so that a thread's exit can find the slots holding values for
// it regardless of which thread created them. Values themselves live on the
// owning thread's record; Get and Set are thin owner-only accessors with no
// extra locking.
type ThreadVar struct {
	rt      *Runtime
	destroy func(any)

	// List links, guarded by the package super-lock. Independent prev/next
	// rather than a slice so deletion is O(1) and safe concurrently with
	// iteration elsewhere.
	prev, next *ThreadVar
}

// NewThreadVar allocates a thread-local slot. destructor, if non-nil, is
// invoked at thread exit on the slot's value for each thread that left a
// non-nil value behind.
func (r *Runtime) NewThreadVar(destructor func(any)) (*ThreadVar, error) {
	if r.tornDown.Load() {
		return nil, ErrTornDown
	}
	v := &ThreadVar{rt: r, destroy: destructor}

	superMu.Lock()
	v.prev = r.threadvarLast
	if v.prev != nil {
		v.prev.next = v
	}
	r.threadvarLast = v
	superMu.Unlock()
	return v, nil
}

// DeleteThreadVar unlinks the slot. Values already stored for it are
// abandoned without running the destructor, matching explicit deletion
// semantics; only thread exit runs destructors.
func (r *Runtime) DeleteThreadVar(v *ThreadVar) {
	superMu.Lock()
	if v.prev != nil {
		v.prev.next = v.next
	}
	if v.next != nil {
		v.next.prev = v.prev
	} else {
		r.threadvarLast = v.prev
	}
	v.prev, v.next = nil, nil
	superMu.Unlock()
}

// Set stores value for the calling thread. Setting nil clears the slot, so
// the destructor will not run for it. A goroutine without a thread record
// is adopted as a foreign thread; it must call Runtime.ExitThread before
// exiting for its destructors to run.
func (v *ThreadVar) Set(value any) {
	th := v.rt.adoptCurrent()
	if th.tls == nil {
		if value == nil {
			return
		}
		th.tls = make(map[*ThreadVar]any)
	}
	if value == nil {
		delete(th.tls, v)
		return
	}
	th.tls[v] = value
}

// Get returns the calling thread's value for the slot, or nil.
func (v *ThreadVar) Get() any {
	th := Current()
	if th == nil || th.tls == nil {
		return nil
	}
	return th.tls[v]
}

// adoptCurrent returns the calling goroutine's thread record, lazily
// creating a foreign (never-cancellable) record when none exists, the way
// a host TLS facility serves threads the runtime did not create.
func (r *Runtime) adoptCurrent() *Thread {
	gid := getGoroutineID()
	if th := lookupThread(gid); th != nil {
		return th
	}
	th := &Thread{rt: r, foreign: true, gid: gid}
	th.state.Store(StateRunning)
	registerThread(gid, th)
	return th
}

// ExitThread runs per-thread teardown for a foreign goroutine: the
// thread-local destructor sweep, then release of the adopted record. It
// must be called before a foreign goroutine that used thread-local storage
// exits; threads created with Spawn tear down automatically. Calling it on
// a spawned thread is a contract violation.
func (r *Runtime) ExitThread() {
	gid := getGoroutineID()
	th := lookupThread(gid)
	if th == nil {
		return
	}
	if !th.foreign {
		panic("threadrt: ExitThread on a spawned thread")
	}
	r.sweepThreadVars(th)
	unregisterThread(gid)
	th.state.Store(StateTerminated)
}

// sweepThreadVars invokes the destructor of every slot holding a non-nil
// value for the exiting thread, exactly once per value, then clears it.
//
// The slot list is re-scanned from the top after every destructor call,
// re-acquiring the super-lock each pass, because a destructor may itself
// delete slots or spawn and join threads. The sweep ends when a full pass
// finds nothing left to destroy.
func (r *Runtime) sweepThreadVars(th *Thread) {
	if th.tls == nil {
		return
	}
	for {
		var pending *ThreadVar
		var value any

		superMu.Lock()
		for v := r.threadvarLast; v != nil; v = v.prev {
			if val, ok := th.tls[v]; ok && val != nil && v.destroy != nil {
				pending, value = v, val
				break
			}
		}
		superMu.Unlock()

		if pending == nil {
			break
		}
		// Clear before invoking so the destructor observes an empty slot
		// and cannot be run twice for the same value.
		delete(th.tls, pending)
		pending.destroy(value)
	}
	th.tls = nil
}
