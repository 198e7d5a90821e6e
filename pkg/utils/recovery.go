package utils

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// PanicError is a recovered panic. Strategies and rebuild stages run
// under CatchPanic so a bug in one of them surfaces as an error.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it was itself an error, so
// errors.Is sees through panic(err).
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// RecoverAsError turns a panic into a *PanicError stored in *errPtr. It
// must be deferred directly:
//
//	func apply() (err error) {
//		defer RecoverAsError(&err)
//		...
//	}
func RecoverAsError(errPtr *error) {
	r := recover()
	if r == nil {
		return
	}
	*errPtr = &PanicError{Value: r, StackTrace: string(debug.Stack())}
	slog.Error("Recovered from panic", "panic", r)
}

// CatchPanic runs fn and returns its error, or a *PanicError if fn panicked.
func CatchPanic(fn func() error) (err error) {
	defer RecoverAsError(&err)
	return fn()
}
