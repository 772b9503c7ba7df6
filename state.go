package threadrt

import (
	"sync/atomic"
)

// ThreadState represents the lifecycle state of a runtime thread.
//
// State Machine:
//
//	StateCreated (0) → StateRunning (1)          [entry wrapper]
//	StateRunning (1) → StateCancelRequested (2)  [Cancel() via CAS]
//	StateRunning (1) → StateTerminated (4)       [normal exit]
//	StateCancelRequested (2) → StateUnwinding (3) [TestCancel() via CAS]
//	StateCancelRequested (2) → StateTerminated (4) [normal exit won the race]
//	StateUnwinding (3) → StateTerminated (4)     [cleanup complete]
//	StateTerminated (4) → (terminal)
//
// Transition Rules:
//   - Use TryTransition (CAS) for contended transitions (cancel request,
//     unwind entry).
//   - Use Store only for the irreversible StateTerminated.
type ThreadState uint32

const (
	// StateCreated indicates the thread record exists but the entry wrapper
	// has not yet installed it as current. A thread in this state is not
	// killable.
	StateCreated ThreadState = 0
	// StateRunning indicates the entry function is executing.
	StateRunning ThreadState = 1
	// StateCancelRequested indicates Cancel has been called but the thread
	// has not yet reached a cancellation point.
	StateCancelRequested ThreadState = 2
	// StateUnwinding indicates the thread is running its cleanup handlers.
	StateUnwinding ThreadState = 3
	// StateTerminated indicates the thread has exited.
	StateTerminated ThreadState = 4
)

// String returns a human-readable representation of the state.
func (s ThreadState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Running"
	case StateCancelRequested:
		return "CancelRequested"
	case StateUnwinding:
		return "Unwinding"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// threadState is a lock-free state machine over ThreadState values.
// Pure atomic CAS, no mutex, no transition validation beyond what the
// call sites encode.
type threadState struct {
	v atomic.Uint32
}

// Load returns the current state atomically.
func (s *threadState) Load() ThreadState {
	return ThreadState(s.v.Load())
}

// Store atomically stores a new state. Only valid for irreversible states.
func (s *threadState) Store(state ThreadState) {
	s.v.Store(uint32(state))
}

// TryTransition attempts to atomically transition from one state to another.
// Returns true if the transition was performed.
func (s *threadState) TryTransition(from, to ThreadState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// IsTerminal returns true if the thread has exited.
func (s *threadState) IsTerminal() bool {
	return s.Load() == StateTerminated
}
