package threadrt

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestMutex_StaticMutualExclusion hammers a shared counter through a static
// (zero value) mutex and verifies no increment is lost.
func TestMutex_StaticMutualExclusion(t *testing.T) {
	var mu Mutex
	var counter int

	const goroutines = 100
	const increments = 1000
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				mu.Lock()
				counter++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if counter != goroutines*increments {
		t.Fatalf("counter = %d, want %d", counter, goroutines*increments)
	}
}

// TestMutex_DynamicMutualExclusion is the same hammer through the dynamic
// form.
func TestMutex_DynamicMutualExclusion(t *testing.T) {
	mu := NewMutex()
	var counter int

	const goroutines = 100
	const increments = 1000
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				mu.Lock()
				counter++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if counter != goroutines*increments {
		t.Fatalf("counter = %d, want %d", counter, goroutines*increments)
	}
}

// TestMutex_StaticWorksWithoutRuntime verifies that the static form needs
// no Setup: it must serve process-global locks before the runtime exists.
func TestMutex_StaticWorksWithoutRuntime(t *testing.T) {
	if Default() != nil {
		t.Skip("a process runtime is installed")
	}
	var mu Mutex
	mu.Lock()
	if mu.TryLock() {
		t.Fatal("TryLock succeeded on a held mutex")
	}
	mu.Unlock()
	if !mu.TryLock() {
		t.Fatal("TryLock failed on a free mutex")
	}
	mu.Unlock()
}

// TestMutex_TryLock verifies the non-blocking acquisition contract for both
// forms.
func TestMutex_TryLock(t *testing.T) {
	t.Run("static", func(t *testing.T) {
		var mu Mutex
		if !mu.TryLock() {
			t.Fatal("TryLock on a free static mutex failed")
		}
		if mu.TryLock() {
			t.Fatal("TryLock on a held static mutex succeeded")
		}
		mu.Unlock()
	})
	t.Run("dynamic", func(t *testing.T) {
		mu := NewMutex()
		if !mu.TryLock() {
			t.Fatal("TryLock on a free dynamic mutex failed")
		}
		if mu.TryLock() {
			t.Fatal("TryLock on a held dynamic mutex succeeded")
		}
		mu.Unlock()
	})
}

// TestMutex_UnlockUnlockedPanics verifies the static-form unlock contract.
func TestMutex_UnlockUnlockedPanics(t *testing.T) {
	var mu Mutex
	expectPanic(t, mu.Unlock)
}

// TestMutex_InitLockedPanics verifies that materializing a dynamic mutex
// out of a held static one is rejected.
func TestMutex_InitLockedPanics(t *testing.T) {
	var mu Mutex
	mu.Lock()
	expectPanic(t, mu.Init)
	mu.Unlock()
}

// TestMutex_LockHonorsPendingCancelAtEntry verifies that a thread entering
// a static Lock with a cancel already pending unwinds at entry, before ever
// waiting for (or acquiring) the mutex.
func TestMutex_LockHonorsPendingCancelAtEntry(t *testing.T) {
	r := newTestRuntime(t)

	var mu Mutex
	mu.Lock()

	reached := make(chan struct{})
	cancelled := make(chan struct{})
	th := mustSpawn(t, r, func(any) any {
		close(reached)
		<-cancelled
		mu.Lock()
		mu.Unlock()
		return "acquired"
	}, nil)

	<-reached
	th.Cancel()
	close(cancelled)

	if got := th.Join(); got != nil {
		t.Fatalf("result = %v, want nil (unwound at Lock entry)", got)
	}
	// The thread never acquired; the caller still holds the mutex.
	if mu.TryLock() {
		t.Fatal("mutex was released by the unwinding thread")
	}
	mu.Unlock()
}

// TestMutex_CancelMaskedDuringStaticWait verifies that a cancel landing
// while a thread is blocked mid-wait on a static mutex does not abandon the
// acquisition: the thread stays blocked until the holder unlocks, acquires,
// and unwinds at its next cancellation point.
func TestMutex_CancelMaskedDuringStaticWait(t *testing.T) {
	r := newTestRuntime(t)

	var mu Mutex
	mu.Lock()

	var acquired atomic.Bool
	reached := make(chan struct{})
	th := mustSpawn(t, r, func(any) any {
		close(reached)
		mu.Lock()
		acquired.Store(true)
		mu.Unlock()
		TestCancel()
		return "not reached"
	}, nil)

	<-reached
	time.Sleep(20 * time.Millisecond) // let the thread block in the wait
	th.Cancel()

	time.Sleep(100 * time.Millisecond)
	if s := th.State(); s != StateCancelRequested {
		t.Fatalf("state while blocked = %v, want CancelRequested", s)
	}
	if acquired.Load() {
		t.Fatal("thread acquired a mutex the caller still holds")
	}

	mu.Unlock()
	if got := th.Join(); got != nil {
		t.Fatalf("result = %v, want nil", got)
	}
	if !acquired.Load() {
		t.Fatal("thread never completed the deferred acquisition")
	}
}

// TestMutex_ContentionCounted verifies that contended static acquisitions
// show up in the runtime metrics.
func TestMutex_ContentionCounted(t *testing.T) {
	r := newTestRuntime(t, WithMetrics(true))

	var mu Mutex
	mu.Lock()

	acquired := make(chan struct{})
	go func() {
		mu.Lock()
		mu.Unlock()
		close(acquired)
	}()

	waitFor(t, 5*time.Second, func() bool {
		return r.Metrics().StaticMutexContention > 0
	})
	mu.Unlock()
	<-acquired
}
