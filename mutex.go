package threadrt

import "sync"

// Mutex is an exclusive, non-recursive lock with two forms sharing one
// contract.
//
// The zero value is a static mutex: a plain locked flag and contention
// counter synchronized through the package super-lock. Static mutexes work
// before Setup has run, which is what lets process-global locks guard early
// initialization. Calling Init (or constructing with NewMutex) materializes
// a dynamic mutex that passes straight through to the host lock; behavior
// is identical from then on.
//
// Locking is not a cancellation point on the dynamic path; on the static
// path cancellation is disabled for the duration of the wait, since a
// static mutex must never be abandoned mid-acquisition.
type Mutex struct {
	// dynamic is set by Init, which must precede any use of the dynamic
	// form (init-before-use, like every other runtime object).
	dynamic bool

	inner sync.Mutex

	// Static form state, guarded by the package super-lock.
	locked     bool
	contention uint
}

// NewMutex returns a dynamic mutex, ready for use.
func NewMutex() *Mutex {
	m := &Mutex{}
	m.Init()
	return m
}

// Init materializes the mutex as dynamic. Initializing a mutex that is
// locked or contended is a contract violation.
func (m *Mutex) Init() {
	superMu.Lock()
	if m.locked || m.contention != 0 {
		superMu.Unlock()
		panic("threadrt: init of a locked mutex")
	}
	m.dynamic = true
	superMu.Unlock()
}

// Lock acquires the mutex, blocking while it is held elsewhere.
func (m *Mutex) Lock() {
	if !m.dynamic {
		// Static form. Cancellation is honored at entry; the wait itself
		// must not be abandoned by it.
		TestCancel()
		state := SaveCancel()
		superMu.Lock()
		for m.locked {
			m.contention++
			if rt := Default(); rt != nil {
				rt.metrics.incStaticMutexContention()
			}
			superCond.Wait()
			m.contention--
		}
		m.locked = true
		superMu.Unlock()
		RestoreCancel(state)
		return
	}

	m.inner.Lock()
}

// TryLock attempts to acquire the mutex without blocking, reporting whether
// it succeeded.
func (m *Mutex) TryLock() bool {
	if !m.dynamic {
		superMu.Lock()
		ok := !m.locked
		if ok {
			m.locked = true
		}
		superMu.Unlock()
		return ok
	}

	return m.inner.TryLock()
}

// Unlock releases the mutex. Unlocking a mutex that is not held is a
// contract violation.
func (m *Mutex) Unlock() {
	if !m.dynamic {
		superMu.Lock()
		if !m.locked {
			superMu.Unlock()
			panic("threadrt: unlock of an unlocked mutex")
		}
		m.locked = false
		// Avoid a wake storm when nothing is waiting.
		if m.contention != 0 {
			superCond.Broadcast()
		}
		superMu.Unlock()
		return
	}

	m.inner.Unlock()
}
