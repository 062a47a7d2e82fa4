package kkernel

import "github.com/wagiedev/k-kernel-go/internal/errors"

// Re-export error types from internal package

// InterpreterNotFoundError indicates the k interpreter was not found.
type InterpreterNotFoundError = errors.InterpreterNotFoundError

// StartError indicates the interpreter could not be started.
type StartError = errors.StartError

// TimeoutError indicates no prompt appeared in time. It carries the
// partial output.
type TimeoutError = errors.TimeoutError

// ProcessError indicates the interpreter process exited.
type ProcessError = errors.ProcessError

// KernelError is the base interface for all kernel errors.
type KernelError = errors.KernelError

// Re-export sentinel errors from internal package.
var (
	// ErrTimeout is the kind of every TimeoutError.
	ErrTimeout = errors.ErrTimeout

	// ErrExecution is the kind of every ProcessError.
	ErrExecution = errors.ErrExecution

	// ErrInterrupted indicates a command was cancelled before its prompt.
	ErrInterrupted = errors.ErrInterrupted

	// ErrSessionNotStarted indicates the driver was used before Start.
	ErrSessionNotStarted = errors.ErrSessionNotStarted

	// ErrSessionAlreadyStarted indicates Start was called twice on a driver.
	ErrSessionAlreadyStarted = errors.ErrSessionAlreadyStarted

	// ErrSessionTerminated indicates the driver was used after Terminate.
	ErrSessionTerminated = errors.ErrSessionTerminated

	// ErrDriverBusy indicates a command was submitted while another was running.
	ErrDriverBusy = errors.ErrDriverBusy

	// ErrNoStdinHandler indicates the interpreter asked for input nobody can give.
	ErrNoStdinHandler = errors.ErrNoStdinHandler

	// ErrKernelClosed indicates the kernel has been closed and cannot be reused.
	ErrKernelClosed = errors.ErrKernelClosed
)
