package threadrt

import (
	"sync/atomic"
	"unsafe"
)

// AddrInterruptBit is the watched-word bit reserved for wait interruption.
//
// Cancelling a thread that is blocked on a watched word mutates the word by
// setting this bit and broadcasting a wake, so the blocked call returns
// promptly instead of waiting out its timeout. The runtime's own encodings
// (semaphore counts, thread exit words) keep this bit clear; for arbitrary
// caller-owned words the mutation is best-effort and callers that use the
// full 32 bits must tolerate it.
const AddrInterruptBit uint32 = 1 << 31

// AddrInterruptBit64 is the 64-bit watched-word equivalent of
// AddrInterruptBit.
const AddrInterruptBit64 uint64 = 1 << 63

// maxTimedWait is the longest delay honored by a single timed wait. Longer
// delays are clamped and the return is claimed as a spurious wake-up, which
// is indistinguishable from any other spurious wake-up to a correct caller.
const maxTimedWait Tick = (1<<31 - 1) * Millisecond

// addrBackend is the low-level wait/wake facility. wait reports whether the
// wait timed out; a false return may be a wake, a value mismatch, or a
// spurious wake-up. delay < 0 waits forever. wake signals waiters on the
// address regardless of word size.
type addrBackend interface {
	wait32(addr *atomic.Uint32, expected uint32, delay Tick) bool
	wait64(addr *atomic.Uint64, expected uint64, delay Tick) bool
	wake(addr unsafe.Pointer, all bool)
}

// WaitOn blocks the calling thread while the word at addr holds expected.
//
// The comparison and the block are atomic with respect to each other: a wake
// issued after the word is mutated but before the waiter sleeps is never
// lost. The return may be spurious; callers must re-validate their condition
// and wait again if it still holds.
//
// WaitOn is a cancellation point. While blocked, the address is registered
// as the calling thread's wait address, so Thread.Cancel can interrupt the
// wait (see AddrInterruptBit).
func (r *Runtime) WaitOn(addr *atomic.Uint32, expected uint32) {
	r.TimedWaitOn(addr, expected, -1)
}

// TimedWaitOn is WaitOn with a timeout. It returns true if the wait timed
// out, and false otherwise; either way the caller must re-validate the
// watched condition. delay < 0 waits forever.
func (r *Runtime) TimedWaitOn(addr *atomic.Uint32, expected uint32, delay Tick) bool {
	TestCancel()
	th := Current()
	if th != nil {
		th.setWaitAddr32(addr)
	}
	r.metrics.incAddrWaits()
	var timedOut bool
	if delay >= 0 && delay > maxTimedWait {
		r.addr.wait32(addr, expected, maxTimedWait)
		// Woke up early; claim a spurious wake-up.
	} else {
		timedOut = r.addr.wait32(addr, expected, delay)
	}
	if th != nil {
		th.clearWaitAddr32(addr)
	}
	TestCancel()
	return timedOut
}

// WaitOn64 is WaitOn for 64-bit watched words. 64-bit waits always use the
// emulated bucket path, even where a native backend is active.
func (r *Runtime) WaitOn64(addr *atomic.Uint64, expected uint64) {
	r.TimedWaitOn64(addr, expected, -1)
}

// TimedWaitOn64 is TimedWaitOn for 64-bit watched words.
func (r *Runtime) TimedWaitOn64(addr *atomic.Uint64, expected uint64, delay Tick) bool {
	TestCancel()
	th := Current()
	if th != nil {
		th.setWaitAddr64(addr)
	}
	r.metrics.incAddrWaits()
	var timedOut bool
	if delay >= 0 && delay > maxTimedWait {
		r.addr.wait64(addr, expected, maxTimedWait)
	} else {
		timedOut = r.addr.wait64(addr, expected, delay)
	}
	if th != nil {
		th.clearWaitAddr64(addr)
	}
	TestCancel()
	return timedOut
}

// WakeOne unblocks at least one waiter on addr, if any. The emulated
// backend cannot distinguish waiters sharing a bucket and wakes them all;
// waiters treat the excess as spurious wake-ups.
func (r *Runtime) WakeOne(addr *atomic.Uint32) {
	r.metrics.incAddrWakes()
	r.addr.wake(unsafe.Pointer(addr), false)
}

// WakeAll unblocks every waiter on addr.
func (r *Runtime) WakeAll(addr *atomic.Uint32) {
	r.metrics.incAddrWakes()
	r.addr.wake(unsafe.Pointer(addr), true)
}

// WakeOne64 is WakeOne for 64-bit watched words.
func (r *Runtime) WakeOne64(addr *atomic.Uint64) {
	r.metrics.incAddrWakes()
	r.addr.wake(unsafe.Pointer(addr), false)
}

// WakeAll64 is WakeAll for 64-bit watched words.
func (r *Runtime) WakeAll64(addr *atomic.Uint64) {
	r.metrics.incAddrWakes()
	r.addr.wake(unsafe.Pointer(addr), true)
}

// interrupt32 breaks a wait on addr: the reserved bit makes the watched
// value differ from whatever the waiter compared against, and the broadcast
// catches a waiter that is already asleep.
func (r *Runtime) interrupt32(addr *atomic.Uint32) {
	addr.Or(AddrInterruptBit)
	r.metrics.incAddrInterrupts()
	r.addr.wake(unsafe.Pointer(addr), true)
}

// interrupt64 is interrupt32 for 64-bit watched words.
func (r *Runtime) interrupt64(addr *atomic.Uint64) {
	addr.Or(AddrInterruptBit64)
	r.metrics.incAddrInterrupts()
	r.addr.wake(unsafe.Pointer(addr), true)
}
