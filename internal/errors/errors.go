package errors

import (
	"errors"
	"fmt"
	"time"
)

// KernelError is the base interface for all kernel errors.
type KernelError interface {
	error
	IsKernelError() bool
}

// Compile-time verification that all error types implement KernelError.
var (
	_ KernelError = (*InterpreterNotFoundError)(nil)
	_ KernelError = (*StartError)(nil)
	_ KernelError = (*TimeoutError)(nil)
	_ KernelError = (*ProcessError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrTimeout is the kind of every *TimeoutError.
	ErrTimeout = errors.New("timed out waiting for prompt")

	// ErrExecution is the kind of every *ProcessError.
	ErrExecution = errors.New("execution failed")

	// ErrInterrupted indicates a running command was abandoned because its
	// context was cancelled. The child keeps running until it is interrupted.
	ErrInterrupted = errors.New("command interrupted")

	// ErrSessionNotStarted indicates the driver was used before Start.
	ErrSessionNotStarted = errors.New("session not started")

	// ErrSessionAlreadyStarted indicates Start was called twice.
	ErrSessionAlreadyStarted = errors.New("session already started")

	// ErrSessionTerminated indicates the session was terminated and cannot be reused.
	ErrSessionTerminated = errors.New("session terminated")

	// ErrDriverBusy indicates a second command was submitted while one is in flight.
	ErrDriverBusy = errors.New("driver busy: a command is already in flight")

	// ErrNoStdinHandler indicates the interpreter asked for input but no handler was configured.
	ErrNoStdinHandler = errors.New("interpreter requested input but no stdin handler is configured")

	// ErrKernelClosed indicates the kernel has been closed and cannot be reused.
	ErrKernelClosed = errors.New("kernel closed: create a new one with New()")
)

// InterpreterNotFoundError indicates the k binary or its repl script was not found.
type InterpreterNotFoundError struct {
	SearchedPaths []string
}

func (e *InterpreterNotFoundError) Error() string {
	return fmt.Sprintf("k interpreter not found in: %v", e.SearchedPaths)
}

// IsKernelError implements KernelError.
func (e *InterpreterNotFoundError) IsKernelError() bool { return true }

// StartError indicates the interpreter could not be spawned or never showed its prompt.
type StartError struct {
	Err error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start k interpreter: %v", e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// IsKernelError implements KernelError.
func (e *StartError) IsKernelError() bool { return true }

// TimeoutError indicates the prompt sentinel did not reappear in time.
// Output holds whatever the interpreter printed before the deadline.
type TimeoutError struct {
	Timeout time.Duration
	Output  string
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("no prompt after %s: %v", e.Timeout, ErrTimeout)
	}

	return fmt.Sprintf("no prompt before deadline: %v", ErrTimeout)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// IsKernelError implements KernelError.
func (e *TimeoutError) IsKernelError() bool { return true }

// ProcessError indicates the interpreter process exited underneath a command.
type ProcessError struct {
	ExitCode int
	Output   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("k process exited (exit %d): %v", e.ExitCode, e.Err)
	}

	if e.Output != "" {
		return fmt.Sprintf("k process exited (exit %d): %s", e.ExitCode, e.Output)
	}

	return fmt.Sprintf("k process exited (exit %d)", e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrExecution.
func (e *ProcessError) Is(target error) bool {
	return target == ErrExecution
}

// IsKernelError implements KernelError.
func (e *ProcessError) IsKernelError() bool { return true }
