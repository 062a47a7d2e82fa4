package kkernel

import (
	"context"

	"github.com/wagiedev/k-kernel-go/internal/kernel"
	"github.com/wagiedev/k-kernel-go/internal/kernelspec"
)

// kernelImpl adapts the internal kernel to the public interface.
type kernelImpl struct {
	inner *kernel.Kernel
}

// Compile-time verification that kernelImpl implements Kernel.
var _ Kernel = (*kernelImpl)(nil)

func newKernel(options *KernelOptions) *kernelImpl {
	return &kernelImpl{inner: kernel.New(options)}
}

func (k *kernelImpl) Start(ctx context.Context) error {
	_, err := k.inner.Session(ctx)

	return err
}

func (k *kernelImpl) Execute(ctx context.Context, code string, silent bool) (string, error) {
	return k.inner.Execute(ctx, code, silent)
}

func (k *kernelImpl) Interrupt(ctx context.Context) (string, error) {
	return k.inner.Interrupt(ctx)
}

func (k *kernelImpl) Reset() {
	k.inner.Reset()
}

func (k *kernelImpl) Info() KernelInfo {
	return kernelspec.KernelInfo()
}

func (k *kernelImpl) Close() error {
	return k.inner.Close()
}
