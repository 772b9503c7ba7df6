package threadrt

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer schedules a callback to run once or periodically.
//
// The callback executes on an arbitrary worker goroutine, not the thread
// that scheduled it. The runtime gives no ordering guarantee between two
// timers' callbacks; it does guarantee that a single timer's successive
// periodic firings never overlap. A periodic timer that falls behind skips
// the missed slots and accounts for them in Overruns.
type Timer struct {
	// Prevent copying.
	_ [0]func()

	rt *Runtime
	fn func()

	mu        sync.Mutex
	binding   *timerBinding // nil while disarmed
	destroyed bool

	overruns atomic.Uint64
}

// timerBinding is one armed schedule: a worker goroutine plus the channels
// that stop it and signal its exit. Bindings are never reused; rescheduling
// replaces the binding wholesale, so a stale worker's teardown cannot
// disturb its successor.
type timerBinding struct {
	stop chan struct{}
	done chan struct{}
	gid  atomic.Uint64 // worker goroutine, while the callback may run
}

// NewTimer allocates a timer for the callback, with no schedule bound yet.
func (r *Runtime) NewTimer(callback func()) (*Timer, error) {
	if callback == nil {
		return nil, ErrNilCallback
	}
	if r.tornDown.Load() {
		return nil, ErrTornDown
	}
	return &Timer{rt: r, fn: callback}, nil
}

// Schedule arms the timer, cancelling any existing schedule first.
//
// If absolute, value is a clock deadline; otherwise it is a delay from now.
// A deadline already passed fires immediately. interval == 0 yields a
// one-shot; otherwise the timer fires every interval ticks after the first
// firing. Schedule(false, 0, 0) disarms without rescheduling.
func (t *Timer) Schedule(absolute bool, value, interval Tick) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		panic("threadrt: schedule on a destroyed timer")
	}

	t.disarmLocked()
	if value == 0 {
		return
	}

	deadline := value
	if !absolute {
		deadline = t.rt.Now() + value
	}

	b := &timerBinding{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	t.binding = b
	go t.worker(b, deadline, interval)
}

// Overruns returns the cumulative count of periodic slots skipped because
// a callback overran its period.
func (t *Timer) Overruns() uint64 {
	return t.overruns.Load()
}

// Destroy disarms the timer and waits for an in-flight callback to finish,
// unless called from the callback itself. The timer must not be used
// afterwards.
func (t *Timer) Destroy() {
	t.mu.Lock()
	t.disarmLocked()
	t.destroyed = true
	t.mu.Unlock()
}

// disarmLocked cancels the current schedule and waits out the worker. A
// callback disarming or rescheduling its own timer must not wait for
// itself; its worker exits on its own once the callback returns.
func (t *Timer) disarmLocked() {
	b := t.binding
	if b == nil {
		return
	}
	close(b.stop)
	if b.gid.Load() != getGoroutineID() {
		<-b.done
	}
	t.binding = nil
}

// worker drives one schedule binding. It exits when stopped or, for a
// one-shot, after firing.
func (t *Timer) worker(b *timerBinding, next Tick, interval Tick) {
	defer close(b.done)
	b.gid.Store(getGoroutineID())

	for {
		if t.await(next, b.stop) {
			return
		}
		t.rt.metrics.incTimerFires()
		t.fn()
		if interval == 0 {
			return
		}

		next += interval
		if missed := overrunSlots(next, t.rt.Now(), interval); missed != 0 {
			t.overruns.Add(missed)
			t.rt.metrics.addTimerOverruns(missed)
			if warnAllowed("timer-overrun") {
				logger().Warning().
					Str("category", "timer").
					Uint64("missed", missed).
					Dur("interval", interval.Duration()).
					Log("timer callback overran its period")
			}
			next += Tick(missed) * interval
		}
	}
}

// overrunSlots reports how many periodic slots at next, next+interval, ...
// already lie strictly in the past at now. A slot falling exactly on now is
// still reachable: it fires on time and is not an overrun.
func overrunSlots(next, now, interval Tick) uint64 {
	if next >= now {
		return 0
	}
	return uint64((now - next + interval - 1) / interval)
}

// await sleeps until the deadline, reporting true if the schedule was
// cancelled first. A stop racing the deadline wins: a cancelled timer must
// never fire.
func (t *Timer) await(deadline Tick, stop chan struct{}) bool {
	for {
		delay := deadline - t.rt.Now()
		if delay <= 0 {
			select {
			case <-stop:
				return true
			default:
				return false
			}
		}
		timer := time.NewTimer(delay.Duration())
		select {
		case <-stop:
			timer.Stop()
			return true
		case <-timer.C:
		}
	}
}
