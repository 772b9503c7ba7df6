//go:build linux

package threadrt

import (
	"time"

	"golang.org/x/sys/unix"
)

func clockID(k ClockKind) int32 {
	switch k {
	case ClockMonotonic:
		return unix.CLOCK_MONOTONIC
	case ClockBoottime:
		return unix.CLOCK_BOOTTIME
	case ClockCoarse:
		return unix.CLOCK_MONOTONIC_COARSE
	case ClockWall:
		return unix.CLOCK_REALTIME
	default:
		panic("threadrt: clock read with no source selected")
	}
}

// clockRead returns the raw microsecond reading of the given backend. The
// selected backend failing is unrecoverable: the runtime's correctness
// assumes a working clock.
func clockRead(k ClockKind, anchor time.Time) Tick {
	var ts unix.Timespec
	if err := unix.ClockGettime(clockID(k), &ts); err != nil {
		panic("threadrt: clock_gettime failed: " + err.Error())
	}
	return Tick(ts.Sec)*Second + Tick(ts.Nsec)/1000
}

// clockKindAvailable probes whether the backend works on this kernel.
func clockKindAvailable(k ClockKind) bool {
	if k == clockUnset {
		return false
	}
	var ts unix.Timespec
	return unix.ClockGettime(clockID(k), &ts) == nil
}
