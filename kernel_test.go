package kkernel_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	kkernel "github.com/wagiedev/k-kernel-go"
)

// replDriver is an in-memory Driver that evaluates a tiny subset of
// commands the way the k REPL would print them.
type replDriver struct {
	mu         sync.Mutex
	alive      bool
	terminated int
	runs       []string
	interrupts int
}

func (d *replDriver) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.alive = true

	return nil
}

func (d *replDriver) Run(ctx context.Context, code string, opts kkernel.RunOptions) (string, error) {
	d.mu.Lock()
	d.runs = append(d.runs, code)
	d.mu.Unlock()

	switch code {
	case "loop":
		<-ctx.Done()
		return "", kkernel.ErrInterrupted
	case "slow":
		return "", &kkernel.TimeoutError{Timeout: opts.Timeout, Output: "par"}
	}

	out := code + "\n"
	if opts.StreamHandler != nil {
		opts.StreamHandler(out)
	}

	if opts.LineHandler != nil {
		opts.LineHandler(code)
	}

	return out, nil
}

func (d *replDriver) Interrupt(context.Context, bool) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.interrupts++

	return "'interrupt\n", nil
}

func (d *replDriver) Terminate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.terminated++
	d.alive = false

	return nil
}

func (d *replDriver) Alive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.alive
}

// factory records every driver it builds.
type factory struct {
	mu      sync.Mutex
	drivers []*replDriver
	options []*kkernel.KernelOptions
}

func (f *factory) build(_ *slog.Logger, options *kkernel.KernelOptions) kkernel.Driver {
	f.mu.Lock()
	defer f.mu.Unlock()

	d := &replDriver{}
	f.drivers = append(f.drivers, d)
	f.options = append(f.options, options)

	return d
}

func TestKernel_ExecuteStreams(t *testing.T) {
	f := &factory{}

	var streamed strings.Builder

	k := kkernel.New(
		kkernel.WithDriverFactory(f.build),
		kkernel.WithStreamHandler(func(s string) { streamed.WriteString(s) }),
	)
	defer k.Close()

	out, err := k.Execute(context.Background(), "1 2 3\n", false)
	require.NoError(t, err)
	require.Equal(t, "1 2 3\n", out)
	require.Equal(t, "1 2 3\n", streamed.String())

	_, err = k.Execute(context.Background(), "4", true)
	require.NoError(t, err)
	require.Equal(t, "1 2 3\n", streamed.String(), "silent output must not stream")

	require.Len(t, f.drivers, 1)
	require.Equal(t, []string{"1 2 3", "4"}, f.drivers[0].runs)
}

func TestKernel_DefaultOptions(t *testing.T) {
	f := &factory{}

	k := kkernel.New(kkernel.WithDriverFactory(f.build), kkernel.WithTimeout(time.Second))
	defer k.Close()

	require.NoError(t, k.Start(context.Background()))
	require.Len(t, f.options, 1)

	options := f.options[0]
	require.True(t, options.ForcePromptOnContinuation)
	require.Equal(t, "@@@---->", options.PromptSentinel)
	require.Equal(t, time.Second, options.Timeout)
}

func TestKernel_ResetToken(t *testing.T) {
	f := &factory{}

	var restarts []bool

	k := kkernel.New(
		kkernel.WithDriverFactory(f.build),
		kkernel.WithShutdownHandler(func(restart bool) { restarts = append(restarts, restart) }),
	)
	defer k.Close()

	_, err := k.Execute(context.Background(), "a:1", false)
	require.NoError(t, err)

	out, err := k.Execute(context.Background(), kkernel.ResetToken, false)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Equal(t, []bool{true}, restarts)
	require.Equal(t, 1, f.drivers[0].terminated)

	_, err = k.Execute(context.Background(), "a", false)
	require.NoError(t, err)
	require.Len(t, f.drivers, 2)
}

func TestKernel_CancelInterrupts(t *testing.T) {
	f := &factory{}

	k := kkernel.New(kkernel.WithDriverFactory(f.build))
	defer k.Close()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	out, err := k.Execute(ctx, "loop", false)
	require.NoError(t, err)
	require.Equal(t, "'interrupt\n", out)
	require.Equal(t, 1, f.drivers[0].interrupts)

	out, err = k.Execute(context.Background(), "1", false)
	require.NoError(t, err)
	require.Equal(t, "1\n", out)
}

func TestKernel_TimeoutError(t *testing.T) {
	f := &factory{}

	k := kkernel.New(kkernel.WithDriverFactory(f.build), kkernel.WithTimeout(time.Millisecond))
	defer k.Close()

	out, err := k.Execute(context.Background(), "slow", false)
	require.Empty(t, out)
	require.ErrorIs(t, err, kkernel.ErrTimeout)

	timeoutErr, ok := errors.AsType[*kkernel.TimeoutError](err)
	require.True(t, ok)
	require.Equal(t, "par", timeoutErr.Output)
}

func TestKernel_ErrorHandler(t *testing.T) {
	f := &factory{}

	var handled []error

	k := kkernel.New(
		kkernel.WithDriverFactory(f.build),
		kkernel.WithErrorHandler(func(err error) { handled = append(handled, err) }),
	)
	defer k.Close()

	out, err := k.Execute(context.Background(), "slow", false)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Len(t, handled, 1)
	require.ErrorIs(t, handled[0], kkernel.ErrTimeout)
}

func TestKernel_Info(t *testing.T) {
	k := kkernel.New()
	defer k.Close()

	info := k.Info()
	require.Equal(t, "K Kernel", info.Implementation)
	require.Equal(t, "k", info.Language)
	require.Equal(t, "K Kernel running ngn/k", info.Banner)
}

func TestKernel_CloseIdempotent(t *testing.T) {
	f := &factory{}

	k := kkernel.New(kkernel.WithDriverFactory(f.build))

	require.NoError(t, k.Start(context.Background()))
	require.NoError(t, k.Close())
	require.NoError(t, k.Close())
	require.Equal(t, 1, f.drivers[0].terminated)

	_, err := k.Execute(context.Background(), "1", false)
	require.ErrorIs(t, err, kkernel.ErrKernelClosed)
}

func TestKernel_InterpreterNotFound(t *testing.T) {
	k := kkernel.New(kkernel.WithInterpreterDir(t.TempDir()))
	defer k.Close()

	err := k.Start(context.Background())

	_, ok := errors.AsType[*kkernel.InterpreterNotFoundError](err)
	require.True(t, ok, "expected InterpreterNotFoundError, got %v", err)
}

func TestWithOptions(t *testing.T) {
	f := &factory{}

	base := &kkernel.KernelOptions{CliOptions: "-q", Timeout: time.Minute}

	k := kkernel.New(
		kkernel.WithOptions(base),
		kkernel.WithDriverFactory(f.build),
		kkernel.WithStripANSI(true),
	)
	defer k.Close()

	require.NoError(t, k.Start(context.Background()))

	options := f.options[0]
	require.Equal(t, "-q", options.CliOptions)
	require.Equal(t, time.Minute, options.Timeout)
	require.True(t, options.StripANSI)
	require.False(t, base.StripANSI, "WithOptions must copy its base")
}
