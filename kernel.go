package kkernel

import (
	"context"

	"github.com/wagiedev/k-kernel-go/internal/kernel"
	"github.com/wagiedev/k-kernel-go/internal/kernelspec"
)

// ResetToken is the input that restarts the session.
const ResetToken = kernel.ResetToken

// KernelInfo describes the kernel implementation to front-ends.
type KernelInfo = kernelspec.Info

// Kernel drives a k interpreter session on behalf of a front-end.
//
// The session is created on first use and survives interrupts. Executing
// ResetToken replaces it. Executions are serialised; Interrupt may be called
// from any goroutine.
//
// Lifecycle: Kernels are single-use. After Close, create a new one with New.
type Kernel interface {
	// Start starts the session ahead of the first Execute.
	// Returns InterpreterNotFoundError if k cannot be located and
	// StartError if it fails to come up.
	Start(ctx context.Context) error

	// Execute runs code and returns its output with the prompt sentinel
	// removed. When silent is true, nothing reaches the stream and line
	// handlers. Cancelling ctx interrupts the command; Execute then returns
	// the interrupted output without error.
	Execute(ctx context.Context, code string, silent bool) (string, error)

	// Interrupt sends an interrupt to the running command. It does nothing
	// when no session exists.
	Interrupt(ctx context.Context) (string, error)

	// Reset discards the session. The next Execute starts a new one.
	Reset()

	// Info returns the kernel's self-description.
	Info() KernelInfo

	// Close terminates the session. It is idempotent.
	Close() error
}

// New creates a kernel. The interpreter is not started until Start or the
// first Execute.
func New(opts ...Option) Kernel {
	return newKernel(applyKernelOptions(opts))
}
