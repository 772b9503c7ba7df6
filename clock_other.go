//go:build !linux

package threadrt

import "time"

// clockRead returns the raw microsecond reading of the given backend.
// Without clock_gettime, the monotonic backend measures from the runtime's
// setup anchor via the Go runtime's monotonic reading.
func clockRead(k ClockKind, anchor time.Time) Tick {
	switch k {
	case ClockMonotonic:
		return TickFromDuration(time.Since(anchor))
	case ClockWall:
		return Tick(time.Now().UnixMicro())
	default:
		panic("threadrt: clock read with no source selected")
	}
}

// clockKindAvailable: only the anchor-based monotonic clock and the wall
// clock exist off Linux; boottime and coarse names are rejected at
// selection.
func clockKindAvailable(k ClockKind) bool {
	return k == ClockMonotonic || k == ClockWall
}
