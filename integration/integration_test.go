//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"testing"

	kkernel "github.com/wagiedev/k-kernel-go"
)

// newKernel starts a kernel against the ngn/k install named by NGN_K_DIR,
// or k on PATH, and skips the test when neither exists.
func newKernel(t *testing.T, opts ...kkernel.Option) kkernel.Kernel {
	t.Helper()

	if dir := os.Getenv("NGN_K_DIR"); dir != "" {
		opts = append([]kkernel.Option{kkernel.WithInterpreterDir(dir)}, opts...)
	}

	k := kkernel.New(opts...)
	t.Cleanup(func() { _ = k.Close() })

	if err := k.Start(context.Background()); err != nil {
		skipIfInterpreterNotInstalled(t, err)
		t.Fatalf("Start failed: %v", err)
	}

	return k
}

// skipIfInterpreterNotInstalled skips the test if the error indicates k is not found.
func skipIfInterpreterNotInstalled(t *testing.T, err error) {
	t.Helper()

	if _, ok := errors.AsType[*kkernel.InterpreterNotFoundError](err); ok {
		t.Skip("ngn/k not installed")
	}
}
