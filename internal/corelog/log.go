// Package corelog provides the shared logging primitives used across the
// corelib components. It mirrors the teacher's pkg/util/log: a single
// package-level Logger that every component logs through, plus a rate
// limiter so a hot path that wants to log on a recoverable condition
// (such as AppendLog's rejected NullKey) cannot flood output.
package corelog

import (
	"os"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is the package-level logger every corelib component logs
// through. Callers may reassign it at process startup (e.g. to attach
// request-scoped fields) before any component is constructed.
var Logger log.Logger = level.NewFilter(log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr)), level.AllowInfo())

// SetLevel swaps the package Logger for one filtered at lvl ("debug",
// "info", "warn", "error"). Unrecognized levels fall back to info.
func SetLevel(base log.Logger, lvl string) {
	var opt level.Option
	switch lvl {
	case "debug":
		opt = level.AllowDebug()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowInfo()
	}
	Logger = level.NewFilter(base, opt)
}

// RateLimitedLogger drops log lines once more than n have been emitted
// within the current one-second window, so a caller driving thousands
// of calls per second through a logged error path cannot turn logging
// itself into the bottleneck.
type RateLimitedLogger struct {
	n    int
	next log.Logger

	mu       sync.Mutex
	windowAt time.Time
	count    int
}

// NewRateLimitedLogger returns a logger that forwards to next, allowing
// at most n log calls per second.
func NewRateLimitedLogger(n int, next log.Logger) *RateLimitedLogger {
	return &RateLimitedLogger{n: n, next: next}
}

// Log implements log.Logger. Calls beyond the per-second budget are
// silently dropped.
func (r *RateLimitedLogger) Log(keyvals ...interface{}) error {
	now := time.Now()

	r.mu.Lock()
	if now.Sub(r.windowAt) >= time.Second {
		r.windowAt = now
		r.count = 0
	}
	r.count++
	over := r.count > r.n
	r.mu.Unlock()

	if over {
		return nil
	}
	return r.next.Log(keyvals...)
}
