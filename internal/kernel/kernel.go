package kernel

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/k-kernel-go/internal/config"
	"github.com/wagiedev/k-kernel-go/internal/errors"
	"github.com/wagiedev/k-kernel-go/internal/repl"
)

// ResetToken is the input that restarts the session instead of running.
const ResetToken = `\\`

// Kernel forwards execution requests to a lazily created k session.
type Kernel struct {
	log     *slog.Logger
	options *config.Options
	slot    *slot

	execMu sync.Mutex // Serialises Execute

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// New creates a kernel. No interpreter is started until the first Execute.
func New(options *config.Options) *Kernel {
	options = options.WithDefaults()

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	log = log.With("component", "kernel")

	factory := options.DriverFactory
	if factory == nil {
		factory = func(log *slog.Logger, options *config.Options) config.Driver {
			return repl.New(log, options)
		}
	}

	return &Kernel{
		log:     log,
		options: options,
		slot: &slot{
			log: log,
			factory: func() config.Driver {
				return factory(options.Logger, options)
			},
		},
	}
}

// Session returns the live driver, starting one if necessary.
func (k *Kernel) Session(ctx context.Context) (config.Driver, error) {
	if k.isClosed() {
		return nil, errors.ErrKernelClosed
	}

	return k.slot.getOrCreate(ctx)
}

// Execute runs code in the session and returns its output.
//
// Code that is exactly the reset token, ignoring surrounding whitespace,
// restarts the session: the driver is terminated, the shutdown handler is
// called with restart=true, and nothing is returned.
//
// When silent is true, no output reaches the stream and line handlers.
// If ctx is cancelled while the code runs, the interpreter is interrupted
// and whatever it printed up to the prompt is returned without error.
// Other failures go to the error handler when one is configured, in which
// case Execute returns an empty result and a nil error.
func (k *Kernel) Execute(ctx context.Context, code string, silent bool) (string, error) {
	k.execMu.Lock()
	defer k.execMu.Unlock()

	if k.isClosed() {
		return "", errors.ErrKernelClosed
	}

	if strings.TrimSpace(code) == ResetToken {
		k.log.Info("Reset requested")
		k.slot.reset()

		if k.options.ShutdownHandler != nil {
			k.options.ShutdownHandler(true)
		}

		return "", nil
	}

	log := k.log.With("execution_id", ulid.Make().String())
	log.Debug("k eval", "code", code, "silent", silent)

	driver, err := k.slot.getOrCreate(ctx)
	if err != nil {
		return k.handleError(log, err)
	}

	opts := config.RunOptions{
		Timeout:      k.options.Timeout,
		StdinHandler: k.options.StdinHandler,
	}

	if !silent {
		opts.StreamHandler = k.options.StreamHandler
		opts.LineHandler = k.options.LineHandler
	}

	resp, err := driver.Run(ctx, strings.TrimRightFunc(code, unicode.IsSpace), opts)
	if err != nil {
		if stderrors.Is(err, errors.ErrInterrupted) {
			log.Info("Execution cancelled, interrupting k")

			out, stopErr := k.stopAbandoned(log, driver)
			if stopErr != nil {
				return k.handleError(log, stopErr)
			}

			return out, nil
		}

		if leftRunning(err) {
			log.Info("Execution failed before the prompt, interrupting k", "error", err)

			if _, stopErr := k.stopAbandoned(log, driver); stopErr != nil {
				log.Debug("Abandoned command not stopped", "error", stopErr)
			}
		}

		return k.handleError(log, err)
	}

	if resp != "" {
		log.Debug("k response", "response", resp)
	}

	return resp, nil
}

// stopAbandoned interrupts the command left running by a failed Run and
// returns the output printed up to its prompt. If k does not come back to
// the prompt, the session is discarded and the next Execute starts a new one.
func (k *Kernel) stopAbandoned(log *slog.Logger, driver config.Driver) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), k.options.InterruptTimeout)
	defer cancel()

	resp, err := driver.Interrupt(ctx, false)
	if err != nil {
		log.Warn("k did not return to the prompt, discarding session", "error", err)
		k.slot.discard(driver)

		return "", err
	}

	return resp, nil
}

// leftRunning reports whether a Run that failed with err may have left its
// command running in the interpreter.
func leftRunning(err error) bool {
	for _, done := range []error{
		errors.ErrExecution,
		errors.ErrSessionTerminated,
		errors.ErrSessionNotStarted,
		errors.ErrDriverBusy,
	} {
		if stderrors.Is(err, done) {
			return false
		}
	}

	return true
}

func (k *Kernel) handleError(log *slog.Logger, err error) (string, error) {
	log.Debug("Execution failed", "error", err)

	if k.options.ErrorHandler != nil {
		k.options.ErrorHandler(err)

		return "", nil
	}

	return "", err
}

// Interrupt sends an interrupt to the running session. It does nothing when
// no session exists.
func (k *Kernel) Interrupt(ctx context.Context) (string, error) {
	if k.isClosed() {
		return "", errors.ErrKernelClosed
	}

	driver := k.slot.current()
	if driver == nil {
		k.log.Debug("Interrupt without a session")

		return "", nil
	}

	return driver.Interrupt(ctx, false)
}

// Reset terminates the current session, if any. The next Execute starts a
// new one. Unlike the reset token it does not call the shutdown handler.
func (k *Kernel) Reset() {
	k.slot.reset()
}

// Close terminates the session. Later calls to Execute fail with
// ErrKernelClosed. Close is idempotent and always returns nil; termination
// problems are logged.
func (k *Kernel) Close() error {
	k.closeOnce.Do(func() {
		k.mu.Lock()
		k.closed = true
		k.mu.Unlock()

		k.log.Debug("Closing kernel")
		k.slot.reset()
	})

	return nil
}

func (k *Kernel) isClosed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.closed
}
