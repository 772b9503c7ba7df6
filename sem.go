package threadrt

import "sync/atomic"

// semMaxValue is the largest representable semaphore count; the top bit of
// the watched word is reserved for wait interruption.
const semMaxValue = AddrInterruptBit - 1

// Sem is a counting semaphore built on the wait/wake primitive.
//
// Post never blocks. Wait is a cancellation point. The count lives in the
// low 31 bits of the watched word; a cancellation interrupt may set the
// reserved top bit, which the semaphore masks out and otherwise ignores.
type Sem struct {
	// Prevent copying.
	_ [0]func()

	rt    *Runtime
	value atomic.Uint32
}

// NewSem returns a semaphore with the given initial count.
func (r *Runtime) NewSem(count uint32) *Sem {
	if count > semMaxValue {
		panic("threadrt: semaphore count out of range")
	}
	s := &Sem{rt: r}
	s.value.Store(count)
	return s
}

// Post increments the semaphore and wakes one waiter, if any.
func (s *Sem) Post() {
	for {
		v := s.value.Load()
		c := v &^ AddrInterruptBit
		if c == semMaxValue {
			panic("threadrt: semaphore overflow")
		}
		if s.value.CompareAndSwap(v, v+1) {
			break
		}
	}
	s.rt.WakeOne(&s.value)
}

// Wait decrements the semaphore, blocking while the count is zero. A
// cancellation point.
func (s *Sem) Wait() {
	for {
		v := s.value.Load()
		if c := v &^ AddrInterruptBit; c > 0 {
			if s.value.CompareAndSwap(v, v-1) {
				return
			}
			continue
		}
		// Count exhausted; sleep until a Post (or spuriously) and
		// re-validate.
		s.rt.WaitOn(&s.value, v)
	}
}

// TryWait decrements the semaphore if the count is nonzero, without
// blocking, reporting whether it did.
func (s *Sem) TryWait() bool {
	for {
		v := s.value.Load()
		if v&^AddrInterruptBit == 0 {
			return false
		}
		if s.value.CompareAndSwap(v, v-1) {
			return true
		}
	}
}
