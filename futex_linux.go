//go:build linux

package threadrt

import (
	"errors"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Futex operation constants from <linux/futex.h>; x/sys/unix exports the
// syscall number but not the operations.
const (
	futexOpWait      = 0
	futexOpWake      = 1
	futexPrivateFlag = 128
)

// futexBackend delegates 32-bit waits to futex(2). The kernel facility only
// operates on 32-bit words, so 64-bit watch words always take the emulated
// bucket path; wake signals both facilities so no waiter is stranded.
type futexBackend struct {
	fallback *bucketBackend
}

// probeNativeAddrBackend probes for a working futex facility at setup time.
// A failed probe (for example under an emulator without the syscall) falls
// back to the emulated buckets.
func probeNativeAddrBackend(fallback *bucketBackend) addrBackend {
	var word uint32
	if _, err := futexWake(&word, 0); err != nil {
		return nil
	}
	return &futexBackend{fallback: fallback}
}

func futexWait(p *uint32, val uint32, ts *unix.Timespec) error {
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(p)),
		uintptr(futexOpWait|futexPrivateFlag),
		uintptr(val),
		uintptr(unsafe.Pointer(ts)),
		0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func futexWake(p *uint32, n int) (int, error) {
	r1, _, errno := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(p)),
		uintptr(futexOpWake|futexPrivateFlag),
		uintptr(n),
		0, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(r1), nil
}

func (f *futexBackend) wait32(addr *atomic.Uint32, expected uint32, delay Tick) bool {
	var ts *unix.Timespec
	if delay >= 0 {
		t := unix.NsecToTimespec(delay.Duration().Nanoseconds())
		ts = &t
	}
	err := futexWait((*uint32)(unsafe.Pointer(addr)), expected, ts)
	switch {
	case err == nil:
		return false
	case errors.Is(err, unix.EAGAIN):
		// Comparison failed; the word no longer holds the expected value.
		return false
	case errors.Is(err, unix.EINTR):
		// Signal delivery; spurious by contract.
		return false
	case errors.Is(err, unix.ETIMEDOUT):
		return true
	default:
		panic("threadrt: futex wait failed: " + err.Error())
	}
}

func (f *futexBackend) wait64(addr *atomic.Uint64, expected uint64, delay Tick) bool {
	return f.fallback.wait64(addr, expected, delay)
}

func (f *futexBackend) wake(addr unsafe.Pointer, all bool) {
	n := 1
	if all {
		n = 1<<31 - 1
	}
	if _, err := futexWake((*uint32)(addr), n); err != nil {
		panic("threadrt: futex wake failed: " + err.Error())
	}
	// 64-bit waiters on this address sleep in the emulated buckets.
	f.fallback.wake(addr, all)
}
