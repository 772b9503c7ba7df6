package threadrt

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// defaultWaitBuckets is the size of the emulated wait-address bucket array.
const defaultWaitBuckets = 32

// waitBucket is one slot of the emulated wait-address table. The broadcast
// channel is closed to wake every waiter that captured it and then replaced,
// so a wake is only ever observed by waits that were in flight when it was
// issued.
type waitBucket struct {
	mu sync.Mutex
	ch chan struct{}
}

// bucketBackend emulates the wait/wake primitive with a fixed array of
// independent buckets. An address maps to a bucket by a cheap hash of its
// numeric value; distinct addresses may alias into the same bucket, so a
// wake may unblock unrelated waiters and every return must be treated as
// potentially spurious.
type bucketBackend struct {
	buckets []waitBucket
}

func newBucketBackend(n int) *bucketBackend {
	b := &bucketBackend{buckets: make([]waitBucket, n)}
	for i := range b.buckets {
		b.buckets[i].ch = make(chan struct{})
	}
	return b
}

func (b *bucketBackend) bucketFor(addr unsafe.Pointer) *waitBucket {
	u := uintptr(addr)
	return &b.buckets[(u>>3)&uintptr(len(b.buckets)-1)]
}

// sleep performs the bucket-protocol wait: the bucket lock is held across
// the value comparison (performed by the ok callback) and released only
// once the broadcast channel has been captured. A wake sent while the lock
// is held is observed via the value mutation; a wake sent after release but
// before the select closes the captured channel. Either way it is not lost.
func (b *bucketBackend) sleep(addr unsafe.Pointer, stillEqual func() bool, delay Tick) bool {
	bkt := b.bucketFor(addr)
	bkt.mu.Lock()
	if !stillEqual() {
		bkt.mu.Unlock()
		return false
	}
	ch := bkt.ch
	bkt.mu.Unlock()

	if delay < 0 {
		<-ch
		return false
	}
	timer := time.NewTimer(delay.Duration())
	defer timer.Stop()
	select {
	case <-ch:
		return false
	case <-timer.C:
		return true
	}
}

func (b *bucketBackend) wait32(addr *atomic.Uint32, expected uint32, delay Tick) bool {
	return b.sleep(unsafe.Pointer(addr), func() bool {
		return addr.Load() == expected
	}, delay)
}

func (b *bucketBackend) wait64(addr *atomic.Uint64, expected uint64, delay Tick) bool {
	return b.sleep(unsafe.Pointer(addr), func() bool {
		return addr.Load() == expected
	}, delay)
}

// wake pulses the bucket lock before broadcasting. While the lock is held
// here, any other thread is either already blocked on the old broadcast
// channel (and about to be woken by the close) or has yet to compare the
// watched value (and will observe the caller's mutation, declining to
// sleep). The lock protects no memory object of its own; it exists purely
// to enforce that sequencing.
func (b *bucketBackend) wake(addr unsafe.Pointer, all bool) {
	bkt := b.bucketFor(addr)
	bkt.mu.Lock()
	close(bkt.ch)
	bkt.ch = make(chan struct{})
	bkt.mu.Unlock()
	// More than one wait address per bucket: every waiter must be woken,
	// even for a wake-one, and excess wake-ups are spurious by contract.
	_ = all
}
