package kkernel

import (
	"context"
	"fmt"
)

// WithKernel manages kernel lifecycle with automatic cleanup.
//
// This helper creates a kernel, starts its session, executes the callback
// function, and ensures cleanup via Close() when done.
//
// If the callback returns an error, it is returned to the caller.
// If Close() fails, a warning is logged but does not override the callback's error.
//
// Example usage:
//
//	err := kkernel.WithKernel(ctx, func(k kkernel.Kernel) error {
//	    out, err := k.Execute(ctx, "+/!10", false)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(out)
//	    return nil
//	},
//	    kkernel.WithInterpreterDir("/opt/ngn-k"),
//	)
func WithKernel(ctx context.Context, fn func(Kernel) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyKernelOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	k := newKernel(options)

	defer func() {
		if closeErr := k.Close(); closeErr != nil {
			log.Warn("failed to close kernel", "error", closeErr)
		}
	}()

	if err := k.Start(ctx); err != nil {
		return fmt.Errorf("failed to start kernel: %w", err)
	}

	return fn(k)
}
