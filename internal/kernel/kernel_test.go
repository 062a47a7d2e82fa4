package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/k-kernel-go/internal/config"
	"github.com/wagiedev/k-kernel-go/internal/errors"
)

// fakeDriver records the calls a Kernel makes to its session.
type fakeDriver struct {
	mu         sync.Mutex
	startErr   error
	alive      bool
	started    int
	terminated int
	interrupts int
	runs       []string
	runOpts    []config.RunOptions

	run          func(ctx context.Context, code string) (string, error)
	interruptOut string
	interruptErr error
}

var _ config.Driver = (*fakeDriver)(nil)

func (d *fakeDriver) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.started++
	if d.startErr != nil {
		return d.startErr
	}

	d.alive = true

	return nil
}

func (d *fakeDriver) Run(ctx context.Context, code string, opts config.RunOptions) (string, error) {
	d.mu.Lock()
	d.runs = append(d.runs, code)
	d.runOpts = append(d.runOpts, opts)
	run := d.run
	d.mu.Unlock()

	if run != nil {
		return run(ctx, code)
	}

	return code + "\n", nil
}

func (d *fakeDriver) Interrupt(context.Context, bool) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.interrupts++

	return d.interruptOut, d.interruptErr
}

func (d *fakeDriver) Terminate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.terminated++
	d.alive = false

	return nil
}

func (d *fakeDriver) Alive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.alive
}

// driverFactory hands out the given drivers in order and counts calls.
type driverFactory struct {
	drivers []*fakeDriver
	created int
}

func (f *driverFactory) new(*slog.Logger, *config.Options) config.Driver {
	d := f.drivers[f.created]
	f.created++

	return d
}

func newTestKernel(t *testing.T, options *config.Options, drivers ...*fakeDriver) (*Kernel, *driverFactory) {
	t.Helper()

	if options == nil {
		options = &config.Options{}
	}

	factory := &driverFactory{drivers: drivers}
	options.DriverFactory = factory.new

	k := New(options)
	t.Cleanup(func() { _ = k.Close() })

	return k, factory
}

func TestExecute_SingleRunWithTrimmedCode(t *testing.T) {
	driver := &fakeDriver{}
	k, factory := newTestKernel(t, nil, driver)

	require.Zero(t, factory.created)

	out, err := k.Execute(context.Background(), "1+1  \n\n", false)
	require.NoError(t, err)
	require.Equal(t, "1+1\n", out)
	require.Equal(t, []string{"1+1"}, driver.runs)
	require.Equal(t, 1, factory.created)
	require.Equal(t, 1, driver.started)
}

func TestExecute_ReusesSession(t *testing.T) {
	driver := &fakeDriver{}
	k, factory := newTestKernel(t, nil, driver)

	for range 3 {
		_, err := k.Execute(context.Background(), "x", false)
		require.NoError(t, err)
	}

	require.Equal(t, 1, factory.created)
	require.Len(t, driver.runs, 3)
}

func TestExecute_ResetToken(t *testing.T) {
	first, second := &fakeDriver{}, &fakeDriver{}

	var restarts []bool

	k, factory := newTestKernel(t, &config.Options{
		ShutdownHandler: func(restart bool) { restarts = append(restarts, restart) },
	}, first, second)

	_, err := k.Execute(context.Background(), "a:1", false)
	require.NoError(t, err)

	out, err := k.Execute(context.Background(), "  \\\\ \n", false)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Equal(t, 1, first.terminated)
	require.Equal(t, []bool{true}, restarts)
	require.Equal(t, []string{"a:1"}, first.runs)

	_, err = k.Execute(context.Background(), "a", false)
	require.NoError(t, err)
	require.Equal(t, 2, factory.created)
	require.Equal(t, []string{"a"}, second.runs)
}

func TestExecute_ResetTokenWithoutSession(t *testing.T) {
	k, factory := newTestKernel(t, nil)

	out, err := k.Execute(context.Background(), ResetToken, true)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Zero(t, factory.created)
}

func TestExecute_Silent(t *testing.T) {
	driver := &fakeDriver{}
	stream := func(string) {}

	k, _ := newTestKernel(t, &config.Options{
		StreamHandler: stream,
		LineHandler:   stream,
		StdinHandler:  func(string) (string, error) { return "", nil },
	}, driver)

	_, err := k.Execute(context.Background(), "x", true)
	require.NoError(t, err)

	_, err = k.Execute(context.Background(), "y", false)
	require.NoError(t, err)

	require.Nil(t, driver.runOpts[0].StreamHandler)
	require.Nil(t, driver.runOpts[0].LineHandler)
	require.NotNil(t, driver.runOpts[0].StdinHandler)
	require.NotNil(t, driver.runOpts[1].StreamHandler)
	require.NotNil(t, driver.runOpts[1].LineHandler)
}

func TestExecute_PassesTimeout(t *testing.T) {
	driver := &fakeDriver{}
	k, _ := newTestKernel(t, &config.Options{Timeout: 3 * time.Second}, driver)

	_, err := k.Execute(context.Background(), "x", false)
	require.NoError(t, err)
	require.Equal(t, k.options.Timeout, driver.runOpts[0].Timeout)
}

func TestExecute_InterruptRecovery(t *testing.T) {
	driver := &fakeDriver{
		interruptOut: "'interrupt\n",
		run: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", fmt.Errorf("%w: %w", errors.ErrInterrupted, ctx.Err())
		},
	}

	var handled []error

	k, _ := newTestKernel(t, &config.Options{
		ErrorHandler: func(err error) { handled = append(handled, err) },
	}, driver)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := k.Execute(ctx, "loop", false)
	require.NoError(t, err)
	require.Equal(t, "'interrupt\n", out)
	require.Equal(t, 1, driver.interrupts)
	require.Empty(t, handled)
	require.Equal(t, 0, driver.terminated)
}

func TestExecute_TimeoutInterruptsCommand(t *testing.T) {
	calls := 0
	driver := &fakeDriver{
		run: func(_ context.Context, code string) (string, error) {
			calls++
			if calls == 1 {
				return "", &errors.TimeoutError{Timeout: time.Millisecond}
			}

			return code + "\n", nil
		},
	}

	k, factory := newTestKernel(t, nil, driver)

	_, err := k.Execute(context.Background(), "slow", false)
	require.ErrorIs(t, err, errors.ErrTimeout)
	require.Equal(t, 1, driver.interrupts)
	require.Zero(t, driver.terminated)

	out, err := k.Execute(context.Background(), "fast", false)
	require.NoError(t, err)
	require.Equal(t, "fast\n", out)
	require.Equal(t, 1, factory.created)
}

func TestExecute_UnrecoveredTimeoutDiscardsSession(t *testing.T) {
	first := &fakeDriver{
		interruptErr: &errors.TimeoutError{Timeout: time.Millisecond},
		run: func(context.Context, string) (string, error) {
			return "", &errors.TimeoutError{Timeout: time.Millisecond}
		},
	}
	second := &fakeDriver{}

	var handled []error

	k, factory := newTestKernel(t, &config.Options{
		ErrorHandler: func(err error) { handled = append(handled, err) },
	}, first, second)

	out, err := k.Execute(context.Background(), "slow", false)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Len(t, handled, 1)
	require.ErrorIs(t, handled[0], errors.ErrTimeout)
	require.Equal(t, 1, first.terminated)

	out, err = k.Execute(context.Background(), "fast", false)
	require.NoError(t, err)
	require.Equal(t, "fast\n", out)
	require.Equal(t, 2, factory.created)
	require.Equal(t, []string{"fast"}, second.runs)
}

func TestExecute_UnrecoveredInterruptDiscardsSession(t *testing.T) {
	first := &fakeDriver{
		interruptErr: &errors.TimeoutError{Timeout: time.Millisecond},
		run: func(context.Context, string) (string, error) {
			return "", fmt.Errorf("%w: %w", errors.ErrInterrupted, context.Canceled)
		},
	}

	k, _ := newTestKernel(t, nil, first, &fakeDriver{})

	_, err := k.Execute(context.Background(), "loop", false)
	require.ErrorIs(t, err, errors.ErrTimeout)
	require.Equal(t, 1, first.terminated)
	require.Nil(t, k.slot.current())
}

// slowShell behaves like the k REPL with its prompt set to the sentinel.
// "slow" takes a second to answer and ignores SIGINT.
const slowShell = `trap '' INT
while IFS= read -r line; do
  case "$line" in
    repl.prompt:*) ;;
    slow) sleep 1; echo slow-result ;;
    *) printf '%s-result\n' "$line" ;;
  esac
  printf '@@@---->'
done`

func TestExecute_AfterTimeoutReturnsOwnOutput(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	k := New(&config.Options{
		Command:          []string{sh, "-c", slowShell},
		Timeout:          200 * time.Millisecond,
		InterruptTimeout: 5 * time.Second,
	})
	t.Cleanup(func() { _ = k.Close() })

	_, err = k.Execute(context.Background(), "slow", false)
	require.ErrorIs(t, err, errors.ErrTimeout)

	session := k.slot.current()
	require.NotNil(t, session)

	out, err := k.Execute(context.Background(), "fast", false)
	require.NoError(t, err)
	require.Equal(t, "fast-result\n", out)

	out, err = k.Execute(context.Background(), "third", false)
	require.NoError(t, err)
	require.Equal(t, "third-result\n", out)
	require.Same(t, session, k.slot.current())
}

func TestInterrupt_IdleSessionStaysUsable(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	k := New(&config.Options{
		Command:          []string{sh, "-c", slowShell},
		InterruptTimeout: 5 * time.Second,
	})
	t.Cleanup(func() { _ = k.Close() })

	_, err = k.Session(context.Background())
	require.NoError(t, err)

	start := time.Now()

	out, err := k.Interrupt(context.Background())
	require.NoError(t, err)
	require.Empty(t, out)
	require.Less(t, time.Since(start), time.Second)

	out, err = k.Execute(context.Background(), "x", false)
	require.NoError(t, err)
	require.Equal(t, "x-result\n", out)
}

func TestExecute_Errors(t *testing.T) {
	processErr := &errors.ProcessError{ExitCode: 1, Output: "boom"}

	failing := func() *fakeDriver {
		return &fakeDriver{
			run: func(context.Context, string) (string, error) { return "", processErr },
		}
	}

	t.Run("returned without handler", func(t *testing.T) {
		k, _ := newTestKernel(t, nil, failing())

		_, err := k.Execute(context.Background(), "x", false)
		require.ErrorIs(t, err, errors.ErrExecution)
	})

	t.Run("routed to handler", func(t *testing.T) {
		var handled []error

		k, _ := newTestKernel(t, &config.Options{
			ErrorHandler: func(err error) { handled = append(handled, err) },
		}, failing())

		out, err := k.Execute(context.Background(), "x", false)
		require.NoError(t, err)
		require.Empty(t, out)
		require.Len(t, handled, 1)
		require.ErrorIs(t, handled[0], errors.ErrExecution)
	})

	t.Run("start failure", func(t *testing.T) {
		startErr := &errors.StartError{Err: fmt.Errorf("no prompt")}
		driver := &fakeDriver{startErr: startErr}
		k, _ := newTestKernel(t, nil, driver)

		_, err := k.Execute(context.Background(), "x", false)

		var got *errors.StartError
		require.ErrorAs(t, err, &got)
		require.Equal(t, 1, driver.terminated)
		require.Empty(t, driver.runs)
	})
}

func TestExecute_ReplacesDeadSession(t *testing.T) {
	first, second := &fakeDriver{}, &fakeDriver{}
	k, factory := newTestKernel(t, nil, first, second)

	_, err := k.Execute(context.Background(), "x", false)
	require.NoError(t, err)

	first.mu.Lock()
	first.alive = false
	first.mu.Unlock()

	_, err = k.Execute(context.Background(), "y", false)
	require.NoError(t, err)
	require.Equal(t, 2, factory.created)
	require.Equal(t, []string{"y"}, second.runs)
	require.Equal(t, 1, first.terminated)
}

func TestInterrupt(t *testing.T) {
	driver := &fakeDriver{interruptOut: "stopped\n"}
	k, _ := newTestKernel(t, nil, driver)

	out, err := k.Interrupt(context.Background())
	require.NoError(t, err)
	require.Empty(t, out)
	require.Zero(t, driver.interrupts)

	_, err = k.Session(context.Background())
	require.NoError(t, err)

	out, err = k.Interrupt(context.Background())
	require.NoError(t, err)
	require.Equal(t, "stopped\n", out)
	require.Equal(t, 1, driver.interrupts)
}

func TestReset(t *testing.T) {
	first, second := &fakeDriver{}, &fakeDriver{}

	called := false

	k, factory := newTestKernel(t, &config.Options{
		ShutdownHandler: func(bool) { called = true },
	}, first, second)

	session, err := k.Session(context.Background())
	require.NoError(t, err)
	require.Same(t, first, session)

	k.Reset()
	require.Equal(t, 1, first.terminated)
	require.False(t, called)

	session, err = k.Session(context.Background())
	require.NoError(t, err)
	require.Same(t, second, session)
	require.Equal(t, 2, factory.created)
}

func TestClose(t *testing.T) {
	driver := &fakeDriver{}
	k, _ := newTestKernel(t, nil, driver)

	_, err := k.Execute(context.Background(), "x", false)
	require.NoError(t, err)

	require.NoError(t, k.Close())
	require.NoError(t, k.Close())
	require.Equal(t, 1, driver.terminated)

	_, err = k.Execute(context.Background(), "x", false)
	require.ErrorIs(t, err, errors.ErrKernelClosed)

	_, err = k.Session(context.Background())
	require.ErrorIs(t, err, errors.ErrKernelClosed)

	_, err = k.Interrupt(context.Background())
	require.ErrorIs(t, err, errors.ErrKernelClosed)
}
