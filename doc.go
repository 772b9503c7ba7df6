// Package threadrt provides a portable thread and synchronization runtime
// with cooperative cancellation, built for hosts whose blocking calls are not
// natively cancellable.
//
// # Architecture
//
// The runtime is built around a process-wide [Runtime] context constructed by
// [Setup] and destroyed by [Runtime.Teardown]. The Runtime owns the clock
// source, the wait/wake (futex-style) backend, the thread-local slot list,
// and optional metrics. Threads created through [Runtime.Spawn] gain a
// cancellation protocol on top of plain goroutines: a cancel request is a
// hint that is only acted upon at well-defined cancellation points, so a
// thread never dies with a partially-mutated invariant outstanding.
//
// Cancellation points are exactly the runtime's blocking operations:
// contended static-mutex lock, address wait ([Runtime.WaitOn]), semaphore
// wait ([Sem.Wait]), join ([Thread.Join]), and sleep ([Runtime.SleepUntil]).
// Each checks the cancel flag on entry and, when cancelled, unwinds by
// running the thread's cleanup handler stack (most recently pushed first)
// before terminating the goroutine.
//
// # Wait/Wake Primitive
//
// [Runtime.WaitOn] blocks the caller only while the watched word still holds
// the expected value, in the manner of futex(2). On Linux the native futex
// system call is used for 32-bit words when a startup capability probe
// succeeds; everywhere else (and for 64-bit words) the runtime emulates the
// primitive with a fixed array of hashed wait buckets. Bucket aliasing means
// any return may be spurious; callers must re-validate their condition.
//
// Cancelling a thread blocked on a watched word interrupts the wait by
// setting a reserved bit ([AddrInterruptBit]) in the word and broadcasting,
// so the blocked call returns promptly instead of waiting out its timeout.
//
// # Mutexes
//
// [Mutex] has two forms sharing one contract. The zero value is a static
// mutex: it works before [Setup] has run, synchronized through a single
// package super-lock, which is what lets process-global locks guard early
// initialization. Calling [Mutex.Init] (or using [NewMutex]) materializes a
// dynamic mutex that passes straight through to the host lock.
//
// # Clock
//
// [Runtime.Now] returns monotonically non-decreasing ticks (microseconds)
// from a backend selected once per process: lazily on first use, or
// explicitly via [Runtime.SelectClockSource]. Selection after first use is
// rejected rather than resolved, preserving the monotonicity guarantee.
//
// # Thread Safety
//
//   - [Runtime.Spawn], [Thread.Cancel], [Runtime.WakeOne], [Runtime.WakeAll],
//     and [Sem.Post] are safe to call from any goroutine.
//   - [TestCancel], [PushCleanup], [PopCleanup], [SaveCancel], and
//     [RestoreCancel] operate on the calling thread only.
//   - Thread-local values ([ThreadVar.Get], [ThreadVar.Set]) are owner-only.
//
// # Usage
//
//	rt, err := threadrt.Setup()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer rt.Teardown()
//
//	th, err := rt.Spawn(func(arg any) any {
//		rt.Sleep(50 * threadrt.Millisecond)
//		return arg
//	}, "done")
//	if err != nil {
//		log.Fatal(err)
//	}
//	result := th.Join()
//
// # Foreign Goroutines
//
// Goroutines not created through [Runtime.Spawn] (including the main
// goroutine) have no thread record and are therefore never cancellable. They
// may still use thread-local storage; such goroutines must call
// [Runtime.ExitThread] before exiting so that slot destructors run.
package threadrt
