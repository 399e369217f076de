package monitoring

import "log"

// Logf is the package-level diagnostic logger for the engine. It defaults to
// log.Printf; callers embedding the engine can redirect or mute it with
// SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. A nil f installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
