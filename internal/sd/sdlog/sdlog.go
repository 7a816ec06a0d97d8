// Package sdlog is the logging namespace shared by every SafeDispatch pass.
//
// It mirrors the original sdLog:: C++ namespace (sdLog::stream, sdLog::warn,
// sdLog::errs, sdLog::log) one level at a time instead of pulling in a
// structured-logging library: every pass message is either informational
// progress, a warning about a degraded-but-handled case, or an error about a
// condition the caller should have prevented.
package sdlog

import (
	"fmt"
	"log"
	"os"
)

// Logger wraps a *log.Logger with the four SafeDispatch message levels.
type Logger struct {
	std *log.Logger
}

// New creates a Logger with the given prefix, matching the
// log.SetPrefix/log.SetFlags(0) convention used by every SafeDispatch-adjacent
// cmd_local/*/main.go in the teacher toolchain.
func New(prefix string) *Logger {
	return &Logger{std: log.New(os.Stderr, prefix, 0)}
}

// Stream logs a P7b-style pipeline progress line.
func (l *Logger) Stream(format string, args ...interface{}) {
	l.std.Printf("[stream] "+format, args...)
}

// Log logs a per-pass start/finish line.
func (l *Logger) Log(format string, args ...interface{}) {
	l.std.Printf("[log] "+format, args...)
}

// Warn logs a recoverable but notable condition (e.g. a virtual function
// with no CHA entry, a thunk that failed to resolve).
func (l *Logger) Warn(format string, args ...interface{}) {
	l.std.Printf("[warn] "+format, args...)
}

// Errs logs a hard error that does not itself abort the pass (the original's
// sdLog::errs()).
func (l *Logger) Errs(format string, args ...interface{}) {
	l.std.Printf("[error] "+format, args...)
}

// Fatalf logs and terminates the process; cmd/sdc uses it for errors it
// cannot continue past (bad flags, unreadable fixtures, failed report
// writes).
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.std.Fatalf("[fatal] "+format, args...)
}

// Default is the package-level logger used by passes that don't carry their
// own Logger reference.
var Default = New("sdc: ")

func Stream(format string, args ...interface{}) { Default.Stream(format, args...) }
func Warn(format string, args ...interface{})   { Default.Warn(format, args...) }
func Errs(format string, args ...interface{})   { Default.Errs(format, args...) }
func Fatalf(format string, args ...interface{}) { Default.Fatalf(format, args...) }

// BlankLine matches the original's sdLog::blankLine() section separators in
// the pipeline's verbose log output.
func BlankLine() {
	fmt.Fprintln(os.Stderr)
}
