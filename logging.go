// Package-level configuration for structured logging.
//
// Logging is an infrastructure cross-cutting concern: all runtime instances
// share logging semantics, and configuring it once at startup avoids a
// per-instance configuration surface. The logger defaults to nil, which
// logiface treats as disabled, so the hot paths pay only a nil check.

package threadrt

import (
	"sync/atomic"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

var pkgLogger atomic.Pointer[logiface.Logger[logiface.Event]]

// SetLogger sets the package-level structured logger. Passing nil disables
// logging. Safe to call concurrently, though it is intended to be called
// once, before Setup.
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	pkgLogger.Store(logger)
}

// logger returns the package logger, which may be nil (disabled). All
// logiface builder methods are nil-safe, so call sites chain without
// checking.
func logger() *logiface.Logger[logiface.Event] {
	return pkgLogger.Load()
}

// warnLimiter rate-limits repeated warning conditions (timer overruns,
// clock regressions) so a misbehaving callback cannot flood the log.
var warnLimiter = catrate.NewLimiter(map[time.Duration]int{
	time.Minute: 5,
})

// warnAllowed reports whether a warning in the given category may be
// emitted under the sliding-window rate limit.
func warnAllowed(category string) bool {
	if logger() == nil {
		return false
	}
	_, ok := warnLimiter.Allow(category)
	return ok
}
