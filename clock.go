package threadrt

import (
	"sync/atomic"
	"time"
)

// Tick is a clock reading or interval in microseconds.
type Tick int64

// Tick unit constants. The clock frequency is fixed at one tick per
// microsecond across every backend.
const (
	Microsecond Tick = 1
	Millisecond Tick = 1000
	Second      Tick = 1000 * 1000
)

// Duration converts a tick interval to a time.Duration.
func (t Tick) Duration() time.Duration {
	return time.Duration(t) * time.Microsecond
}

// TickFromDuration converts a time.Duration to ticks, truncating toward
// zero.
func TickFromDuration(d time.Duration) Tick {
	return Tick(d / time.Microsecond)
}

// ClockKind identifies a monotonic clock backend. The backend is a tagged
// variant selected once per process and then immutable; see
// Runtime.SelectClockSource.
type ClockKind uint32

const (
	clockUnset ClockKind = iota
	// ClockMonotonic is the default: the host's monotonic clock, paused
	// during system suspend on some platforms.
	ClockMonotonic
	// ClockBoottime is the suspend-inclusive monotonic clock (Linux
	// CLOCK_BOOTTIME, the interrupt-time analog).
	ClockBoottime
	// ClockCoarse is the low-resolution, low-overhead monotonic clock
	// (Linux CLOCK_MONOTONIC_COARSE, the tick-count analog).
	ClockCoarse
	// ClockWall is the wall clock. It may jump backward or forward with
	// system time adjustments; the runtime clamps readings so Now still
	// never goes backward, but intervals measured across a jump are wrong.
	// For diagnostics only.
	ClockWall
)

// String returns the selection name of the clock kind.
func (k ClockKind) String() string {
	switch k {
	case ClockMonotonic:
		return "monotonic"
	case ClockBoottime:
		return "boottime"
	case ClockCoarse:
		return "coarse"
	case ClockWall:
		return "wall"
	default:
		return "unset"
	}
}

// clockKindByName is the inverse of ClockKind.String. Empty selects the
// default backend.
func clockKindByName(name string) (ClockKind, bool) {
	switch name {
	case "", "monotonic":
		return ClockMonotonic, true
	case "boottime":
		return ClockBoottime, true
	case "coarse":
		return ClockCoarse, true
	case "wall":
		return ClockWall, true
	default:
		return clockUnset, false
	}
}

// clockState is the per-runtime clock selection. kind is atomically
// readable on the Now fast path; the selection flags are guarded by the
// package super-lock.
type clockState struct {
	kind      atomic.Uint32
	last      atomic.Int64 // high-water mark enforcing monotonicity
	explicit  bool         // an explicit selection occurred
	usedEarly bool         // the lazy default has serviced a call
	anchor    time.Time    // reference for anchor-based backends
}

// maxSleepSlice bounds one blocking slice of SleepUntil, so a cancelled
// sleeper that cannot be interrupted (a foreign goroutine) still re-checks
// within a scheduler quantum's order of magnitude.
const maxSleepSlice = 50 * Millisecond

// Now returns the current tick count of the selected clock source.
//
// The value is monotonically non-decreasing across arbitrarily many
// concurrent callers for the lifetime of one clock-source selection, even
// for backends that are not intrinsically monotonic. The first call lazily
// selects the default backend if no explicit selection has occurred.
func (r *Runtime) Now() Tick {
	k := ClockKind(r.clock.kind.Load())
	if k == clockUnset {
		k = r.selectDefaultClock()
	}
	raw := int64(clockRead(k, r.clock.anchor))
	for {
		prev := r.clock.last.Load()
		if raw <= prev {
			if raw < prev && k == ClockWall && warnAllowed("clock-regression") {
				logger().Warning().
					Str("category", "clock").
					Int64("raw", raw).
					Int64("last", prev).
					Log("wall clock went backward, clamping")
			}
			return Tick(prev)
		}
		if r.clock.last.CompareAndSwap(prev, raw) {
			return Tick(raw)
		}
	}
}

// selectDefaultClock installs the default backend under the super-lock.
func (r *Runtime) selectDefaultClock() ClockKind {
	superMu.Lock()
	defer superMu.Unlock()
	if k := ClockKind(r.clock.kind.Load()); k != clockUnset {
		return k
	}
	r.clock.usedEarly = true
	r.clock.kind.Store(uint32(ClockMonotonic))
	return ClockMonotonic
}

// SelectClockSource selects the clock backend by name.
//
// If an explicit selection has already been made, the call is a no-op. If
// the lazy default has already serviced a Now call, the selection race is
// rejected with a panic rather than resolved: switching backends once
// callers may be relying on monotonicity would break the Now contract. An
// unknown or unavailable name is a configuration error and panics.
func (r *Runtime) SelectClockSource(name string) {
	superMu.Lock()
	defer superMu.Unlock()

	if r.clock.explicit {
		return
	}
	if r.clock.usedEarly {
		panic("threadrt: clock source already in use, cannot reselect")
	}

	k, ok := clockKindByName(name)
	if !ok || !clockKindAvailable(k) {
		panic("threadrt: invalid clock source \"" + name + "\"")
	}

	r.clock.kind.Store(uint32(k))
	r.clock.explicit = true
	logger().Debug().
		Str("category", "clock").
		Str("source", k.String()).
		Log("clock source selected")
}

// ClockSources enumerates the clock source names available on this
// platform.
func ClockSources() []string {
	kinds := []ClockKind{ClockMonotonic, ClockBoottime, ClockCoarse, ClockWall}
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		if clockKindAvailable(k) {
			names = append(names, k.String())
		}
	}
	return names
}

// SleepUntil blocks the calling thread until Now reaches deadline.
//
// SleepUntil is a cancellation point: the sleep is performed in bounded
// slices on the thread's own watched pad word, so a cancel interrupts it
// promptly rather than at the deadline. Foreign goroutines sleep in plain
// bounded slices and cannot be cancelled.
func (r *Runtime) SleepUntil(deadline Tick) {
	TestCancel()
	th := Current()
	for {
		delay := deadline - r.Now()
		if delay <= 0 {
			return
		}
		if delay > maxSleepSlice {
			delay = maxSleepSlice
		}
		if th != nil {
			pad := th.sleepPad.Load()
			r.TimedWaitOn(&th.sleepPad, pad, delay)
		} else {
			time.Sleep(delay.Duration())
		}
		TestCancel()
	}
}

// Sleep blocks the calling thread for at least d ticks. A cancellation
// point, like SleepUntil.
func (r *Runtime) Sleep(d Tick) {
	r.SleepUntil(r.Now() + d)
}
