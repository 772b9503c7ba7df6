package threadrt

import (
	"testing"
	"time"
)

// newTestRuntime constructs the process runtime for a test and tears it down
// on cleanup. Only one runtime may exist at a time, so tests that use this
// helper must not run in parallel with each other.
func newTestRuntime(t *testing.T, opts ...SetupOption) *Runtime {
	t.Helper()
	r, err := Setup(opts...)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() {
		if err := r.Teardown(); err != nil {
			t.Errorf("Teardown: %v", err)
		}
	})
	return r
}

// mustSpawn spawns a thread or fails the test.
func mustSpawn(t *testing.T, r *Runtime, entry func(any) any, arg any, opts ...SpawnOption) *Thread {
	t.Helper()
	th, err := r.Spawn(entry, arg, opts...)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	return th
}

// waitFor polls cond until it reports true or the deadline expires.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached within deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

// expectPanic runs fn and fails the test unless it panics.
func expectPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic, got none")
		}
	}()
	fn()
}
