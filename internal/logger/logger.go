package logger

import "sync"

// Levels accepted by Get. Anything else falls back to debug.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	instance *Logger
	initOnce sync.Once
)

// Get returns the process-wide logger. The level only matters on the
// first call; every later caller shares the same instance.
func Get(level string) *Logger {
	initOnce.Do(func() {
		instance = newZapLogger(level)
	})
	return instance
}
