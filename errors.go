package threadrt

import "errors"

// Standard errors.
//
// The runtime's error taxonomy is deliberately small: resource exhaustion
// and lifecycle misuse are reported to the caller, while programming
// contract violations (double unlock, mismatched save/restore nesting,
// unregistered wait addresses) panic, since they indicate corrupted
// invariants that cannot be safely continued from. There is no retry policy
// anywhere: every failure is propagated once or is immediately fatal.
var (
	// ErrSetupDone is returned when Setup is called while a process runtime
	// already exists.
	ErrSetupDone = errors.New("threadrt: runtime already set up")

	// ErrTornDown is returned when a resource-creating operation is
	// attempted on a runtime that has been torn down.
	ErrTornDown = errors.New("threadrt: runtime has been torn down")

	// ErrNilEntry is returned by Spawn when the entry function is nil.
	ErrNilEntry = errors.New("threadrt: nil thread entry")

	// ErrNilCallback is returned by NewTimer when the callback is nil.
	ErrNilCallback = errors.New("threadrt: nil timer callback")
)
