package log

import (
	"log/slog"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[Logger]

// SetDefaultLogger installs logger as the process default and routes the
// standard library's slog default through it, so messages logged by
// dependencies share its level and format.
func SetDefaultLogger(logger *Logger) {
	defaultLogger.Store(logger)
	slog.SetDefault(logger.slog)
}

// DefaultLogger returns the process default, creating one from
// DefaultConfig on first use.
func DefaultLogger() *Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := Default()
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	return defaultLogger.Load()
}
