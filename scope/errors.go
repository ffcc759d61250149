package scope

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrTaskFailed marks an error returned by Handle.Await or recorded in an
	// Outcome when the task did not run to completion.
	ErrTaskFailed = errors.New("task failed")
	// ErrHandleConsumed is returned when a handle is awaited a second time.
	ErrHandleConsumed = errors.New("handle already awaited")
)

// PanicError is the error a task resolves with when its body panics.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
