// Package abort implements the process's one error-reporting strategy for
// conditions that are fatal by contract: programming invariants,
// configuration errors, and environment (syscall/protocol) failures.
//
// There is no recovery layer above this package. A Fault is always raised
// by panicking, never by a returned error, so that a caller cannot
// accidentally continue past a condition the rest of the system assumes
// never happens. Production entry points wrap their top-level goroutines
// in Guard, which turns a recovered Fault into a single stderr line and
// os.Exit(1). Tests call Catch directly so they can assert on the Fault's
// fields without the process exiting.
package abort

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Fault is the typed panic value raised by Fatalf. It is never meant to be
// caught by ordinary application code; only Guard (production) and Catch
// (tests) recover it.
type Fault struct {
	Msg  string
	File string
	Line int
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s:%d: %s", f.File, f.Line, f.Msg)
}

// Fatalf formats msg, logs it (if logger is non-nil) and panics with a
// *Fault whose source location is Fatalf's direct caller.
func Fatalf(logger *slog.Logger, format string, args ...any) {
	fatal(logger, 2, format, args...)
}

// FatalfSkip is Fatalf for a helper that itself wants the caller's source
// location attributed to the fault rather than its own. skip is the
// number of additional stack frames to skip when resolving the source
// location (0 behaves like Fatalf).
func FatalfSkip(logger *slog.Logger, skip int, format string, args ...any) {
	fatal(logger, 2+skip, format, args...)
}

func fatal(logger *slog.Logger, skip int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		file, line = "unknown", 0
	}
	f := &Fault{Msg: msg, File: file, Line: line}
	if logger != nil {
		logger.Error(msg, "source", f.Error())
	}
	panic(f)
}

// Guard runs fn and, if it panics with a *Fault, prints the fault to
// stderr and terminates the process with exit code 1. Any other panic
// value propagates unchanged: this package only owns the fatal-by-contract
// path, not arbitrary crashes.
func Guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(*Fault); ok {
				fmt.Fprintln(os.Stderr, f.Error())
				os.Exit(1)
			}
			panic(r)
		}
	}()
	fn()
}

// Catch runs fn and returns the *Fault it raised, or nil if fn returned
// normally. Intended for unit tests that assert on abort conditions
// without tearing down the test binary.
func Catch(fn func()) (fault *Fault) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(*Fault)
			if !ok {
				panic(r)
			}
			fault = f
		}
	}()
	fn()
	return nil
}
