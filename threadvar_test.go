package threadrt

import (
	"sync"
	"sync/atomic"
	"testing"
)

// TestThreadVar_SetGetPerThread verifies that values are isolated per
// thread.
func TestThreadVar_SetGetPerThread(t *testing.T) {
	r := newTestRuntime(t)

	v, err := r.NewThreadVar(nil)
	if err != nil {
		t.Fatalf("NewThreadVar: %v", err)
	}
	defer r.DeleteThreadVar(v)

	results := make(chan any, 2)
	barrier := make(chan struct{})
	for i := 0; i < 2; i++ {
		i := i
		mustSpawn(t, r, func(any) any {
			v.Set(i * 100)
			<-barrier // both threads have stored before either reads
			results <- v.Get()
			return nil
		}, nil, Detached())
	}
	close(barrier)

	got := map[any]bool{<-results: true, <-results: true}
	if !got[0] || !got[100] {
		t.Fatalf("per-thread values = %v, want {0, 100}", got)
	}
}

// TestThreadVar_GetUnsetReturnsNil verifies the unset read.
func TestThreadVar_GetUnsetReturnsNil(t *testing.T) {
	r := newTestRuntime(t)

	v, err := r.NewThreadVar(nil)
	if err != nil {
		t.Fatalf("NewThreadVar: %v", err)
	}
	defer r.DeleteThreadVar(v)

	th := mustSpawn(t, r, func(any) any {
		return v.Get()
	}, nil)
	if got := th.Join(); got != nil {
		t.Fatalf("unset Get = %v, want nil", got)
	}
}

// TestThreadVar_DestructorsRunOnExit verifies that exactly the slots
// holding non-nil values get their destructor, once each, at thread exit.
func TestThreadVar_DestructorsRunOnExit(t *testing.T) {
	r := newTestRuntime(t)

	var mu sync.Mutex
	destroyed := make(map[any]int)
	destructor := func(val any) {
		mu.Lock()
		destroyed[val]++
		mu.Unlock()
	}

	v1, _ := r.NewThreadVar(destructor)
	v2, _ := r.NewThreadVar(destructor)
	v3, _ := r.NewThreadVar(destructor)
	defer r.DeleteThreadVar(v1)
	defer r.DeleteThreadVar(v2)
	defer r.DeleteThreadVar(v3)

	th := mustSpawn(t, r, func(any) any {
		v1.Set("one")
		v2.Set("two")
		v3.Set("three")
		v3.Set(nil) // cleared; destructor must not run for it
		return nil
	}, nil)
	th.Join()

	mu.Lock()
	defer mu.Unlock()
	if len(destroyed) != 2 || destroyed["one"] != 1 || destroyed["two"] != 1 {
		t.Fatalf("destroyed = %v, want one and two exactly once", destroyed)
	}
}

// TestThreadVar_DestructorRunsOnCancel verifies that the destructor sweep
// also runs on the cancellation unwind.
func TestThreadVar_DestructorRunsOnCancel(t *testing.T) {
	r := newTestRuntime(t)

	var destroyed atomic.Bool
	v, _ := r.NewThreadVar(func(any) { destroyed.Store(true) })
	defer r.DeleteThreadVar(v)

	reached := make(chan struct{})
	cancelled := make(chan struct{})
	th := mustSpawn(t, r, func(any) any {
		v.Set("held")
		close(reached)
		<-cancelled
		TestCancel()
		return nil
	}, nil)

	<-reached
	th.Cancel()
	close(cancelled)
	th.Join()

	if !destroyed.Load() {
		t.Fatal("destructor did not run on the cancellation unwind")
	}
}

// TestThreadVar_DestructorMaySpawn verifies that a destructor can itself
// use the runtime (spawn and join a thread) without deadlocking the sweep.
func TestThreadVar_DestructorMaySpawn(t *testing.T) {
	r := newTestRuntime(t)

	var nested atomic.Bool
	v, _ := r.NewThreadVar(func(any) {
		inner, err := r.Spawn(func(any) any {
			nested.Store(true)
			return nil
		}, nil)
		if err != nil {
			return
		}
		inner.Join()
	})
	defer r.DeleteThreadVar(v)

	th := mustSpawn(t, r, func(any) any {
		v.Set("x")
		return nil
	}, nil)
	th.Join()

	if !nested.Load() {
		t.Fatal("destructor's nested thread never ran")
	}
}

// TestThreadVar_DestructorMayDeleteSlots verifies that a destructor
// deleting another slot mid-sweep does not break or repeat the sweep.
func TestThreadVar_DestructorMayDeleteSlots(t *testing.T) {
	r := newTestRuntime(t)

	var calls atomic.Int32
	var victim *ThreadVar
	v, _ := r.NewThreadVar(func(any) {
		calls.Add(1)
		r.DeleteThreadVar(victim)
	})
	victim, _ = r.NewThreadVar(func(any) { calls.Add(1) })
	defer r.DeleteThreadVar(v)

	th := mustSpawn(t, r, func(any) any {
		v.Set("a")
		return nil
	}, nil)
	th.Join()

	if calls.Load() != 1 {
		t.Fatalf("destructor calls = %d, want 1", calls.Load())
	}
}

// TestThreadVar_ForeignGoroutineExitThread verifies the adoption path: a
// goroutine the runtime did not spawn may use thread-local storage, and
// ExitThread runs its destructors.
func TestThreadVar_ForeignGoroutineExitThread(t *testing.T) {
	r := newTestRuntime(t)

	var destroyed atomic.Bool
	v, _ := r.NewThreadVar(func(any) { destroyed.Store(true) })
	defer r.DeleteThreadVar(v)

	done := make(chan struct{})
	go func() {
		defer close(done)
		v.Set("foreign")
		if got := v.Get(); got != "foreign" {
			t.Errorf("foreign Get = %v", got)
		}
		r.ExitThread()
	}()
	<-done

	if !destroyed.Load() {
		t.Fatal("destructor did not run at ExitThread")
	}
}

// TestThreadVar_AdoptedGoroutineCleanupStackInert verifies that the cleanup
// stack stays a no-op on a goroutine whose record exists only through
// thread-local adoption: such a goroutine can never be cancelled, so its
// handlers would never run, and must not accumulate or panic on pop.
func TestThreadVar_AdoptedGoroutineCleanupStackInert(t *testing.T) {
	r := newTestRuntime(t)

	v, _ := r.NewThreadVar(nil)
	defer r.DeleteThreadVar(v)

	var ran atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		v.Set("adopted") // creates the foreign record
		if Current() == nil {
			t.Error("adoption did not register a record")
			return
		}
		PushCleanup(func() { ran.Store(true) })
		PopCleanup(true) // must neither run the handler nor panic
		r.ExitThread()
	}()
	<-done

	if ran.Load() {
		t.Fatal("cleanup handler ran on an adopted goroutine")
	}
}

// TestExitThread_SpawnedThreadPanics verifies that only foreign goroutines
// may call ExitThread.
func TestExitThread_SpawnedThreadPanics(t *testing.T) {
	r := newTestRuntime(t)

	panicked := make(chan bool, 1)
	th := mustSpawn(t, r, func(any) any {
		defer func() {
			panicked <- recover() != nil
		}()
		r.ExitThread()
		return nil
	}, nil)
	if !<-panicked {
		t.Fatal("ExitThread on a spawned thread did not panic")
	}
	th.Join()
}

// TestDeleteThreadVar_AbandonsValues verifies that deleting a slot skips
// its destructor for values still held.
func TestDeleteThreadVar_AbandonsValues(t *testing.T) {
	r := newTestRuntime(t)

	var destroyed atomic.Bool
	v, _ := r.NewThreadVar(func(any) { destroyed.Store(true) })

	th := mustSpawn(t, r, func(any) any {
		v.Set("abandoned")
		r.DeleteThreadVar(v)
		return nil
	}, nil)
	th.Join()

	if destroyed.Load() {
		t.Fatal("destructor ran for a deleted slot")
	}
}
