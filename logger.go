package ggar

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger and is accessed atomically so that
// SetLogger can race with logging from request goroutines.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for ggar and all of its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Log levels used by ggar:
//   - [slog.LevelDebug]: per-request diagnostics (superseded compositions, store misses)
//   - [slog.LevelInfo]: lifecycle events (handoff stored, server listening, sweep results)
//   - [slog.LevelWarn]: recoverable faults (corrupted store entries, texture release failures)
//
// Example:
//
//	ggar.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger used by ggar.
// Sub-packages call this instead of holding their own copy so that a
// late SetLogger is observed everywhere.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
