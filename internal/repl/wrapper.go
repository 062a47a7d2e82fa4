package repl

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/k-kernel-go/internal/config"
	"github.com/wagiedev/k-kernel-go/internal/errors"
	"github.com/wagiedev/k-kernel-go/internal/interpreter"
)

const (
	// readBufferSize is the size of a single read from the interpreter's stdout.
	readBufferSize = 32 * 1024
	// outputBufferSize is the number of unread chunks buffered between the reader and a command.
	outputBufferSize = 64
	// maxErrorOutput caps the output attached to a ProcessError.
	maxErrorOutput = 4 * 1024
)

// Wrapper implements Driver by spawning the k interpreter as a subprocess.
type Wrapper struct {
	log     *slog.Logger
	options *config.Options
	initErr error

	prompt       *regexp.Regexp
	continuation *regexp.Regexp
	stdinPrompt  *regexp.Regexp

	mu         sync.Mutex // Protects lifecycle fields
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	signal     func(os.Signal) error
	started    bool
	terminated bool

	output  chan string   // Chunks read from stdout, closed on EOF
	done    chan struct{} // Closed by Terminate
	exited  chan struct{} // Closed once the process has been reaped
	exitErr error         // Written before exited is closed
	eg      errgroup.Group

	// busy is held by whoever reads output: a Run, an Interrupt draining an
	// abandoned command, or Start.
	busy    atomic.Bool
	pending string // Output read but not yet consumed; guarded by busy

	// promptOwed is set when a Run gives up before its command's prompt
	// arrived, and cleared once that prompt has been consumed.
	promptOwed atomic.Bool
}

// Compile-time verification that Wrapper implements the Driver interface.
var _ config.Driver = (*Wrapper)(nil)

// New creates a driver for a k REPL session. The interpreter is not spawned
// until Start is called.
//
// The logger receives debug, info, warn, and error messages for the life of
// the session.
func New(log *slog.Logger, options *config.Options) *Wrapper {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	options = options.WithDefaults()

	w := &Wrapper{
		log:          log.With("component", "repl"),
		options:      options,
		continuation: regexp.MustCompile(regexp.QuoteMeta(options.ContinuationPrompt)),
		stdinPrompt:  regexp.MustCompile(regexp.QuoteMeta(options.StdinPrompt)),
	}

	pattern := options.PromptRegex
	if pattern == "" {
		pattern = regexp.QuoteMeta(options.PromptSentinel)
	}

	w.prompt, w.initErr = regexp.Compile(pattern)
	if w.initErr != nil {
		w.initErr = fmt.Errorf("compile prompt regex %q: %w", pattern, w.initErr)
	}

	return w
}

// Start spawns the interpreter and switches its prompt to the sentinel.
//
// The process is not bound to ctx: it lives until Terminate. ctx only bounds
// interpreter discovery and the wait for the first prompt, together with
// Options.StartTimeout.
//
// Returns InterpreterNotFoundError if the interpreter cannot be located,
// or StartError if the process fails to start or never shows its prompt.
func (w *Wrapper) Start(ctx context.Context) error {
	if w.initErr != nil {
		return &errors.StartError{Err: w.initErr}
	}

	w.mu.Lock()

	if w.terminated {
		w.mu.Unlock()

		return errors.ErrSessionTerminated
	}

	if w.started {
		w.mu.Unlock()

		return errors.ErrSessionAlreadyStarted
	}

	w.log.Info("Starting k interpreter")

	located, err := interpreter.NewLocator(&interpreter.Config{
		Dir:     w.options.InterpreterDir,
		Command: w.options.Command,
		Script:  w.options.Script,
		Logger:  w.log,
	}).Locate(ctx)
	if err != nil {
		w.mu.Unlock()

		return fmt.Errorf("locate interpreter: %w", err)
	}

	args := interpreter.BuildArgs(located, w.options.CliOptions)
	w.log.Debug("Built interpreter command", "path", located.Path, "args", args)

	// Not CommandContext: the session must outlive the caller's start context.
	//nolint:gosec // G204: the interpreter path and flags come from configuration
	cmd := exec.Command(located.Path, args...)
	cmd.Dir = w.options.Cwd
	cmd.Env = interpreter.BuildEnvironment(w.options)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.mu.Unlock()
		w.log.Error("Failed to create stdin pipe", "error", err)

		return &errors.StartError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		w.mu.Unlock()
		w.log.Error("Failed to create stdout pipe", "error", err)

		return &errors.StartError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	// Errors land in the same stream, in order, as they would on a terminal.
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		w.mu.Unlock()
		w.log.Error("Failed to start k interpreter", "error", err)

		return &errors.StartError{Err: fmt.Errorf("start process: %w", err)}
	}

	w.cmd = cmd
	w.signal = cmd.Process.Signal
	w.attach(stdin, stdout, cmd.Wait)
	w.busy.Store(true)
	w.mu.Unlock()

	w.log.Info("k interpreter started", "pid", cmd.Process.Pid)

	err = w.configurePrompt(ctx)
	w.busy.Store(false)

	if err != nil {
		w.log.Error("k interpreter never showed its prompt", "error", err)

		if termErr := w.Terminate(); termErr != nil {
			w.log.Debug("Terminate after failed start", "error", termErr)
		}

		return &errors.StartError{Err: err}
	}

	return nil
}

// attach wires the session to the interpreter's pipes and starts the reader.
// wait is called once stdout is drained and reaps the process.
// Caller must hold w.mu.
func (w *Wrapper) attach(stdin io.WriteCloser, stdout io.Reader, wait func() error) {
	w.stdin = stdin
	w.output = make(chan string, outputBufferSize)
	w.done = make(chan struct{})
	w.exited = make(chan struct{})
	w.started = true

	w.eg.Go(func() error {
		defer close(w.exited)

		// All reads must complete before Wait.
		// See: https://pkg.go.dev/os/exec#Cmd.StdoutPipe
		w.readLoop(stdout)

		w.exitErr = wait()

		return w.exitErr
	})
}

// configurePrompt sends the prompt change command and discards everything
// up to the first sentinel, including the banner.
func (w *Wrapper) configurePrompt(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.options.StartTimeout)
	defer cancel()

	if err := w.send(interpreter.PromptCommand(w.options.PromptSentinel)); err != nil {
		return err
	}

	banner, _, err := w.expect(ctx, nil, w.options.StartTimeout, []*regexp.Regexp{w.prompt}, nil)
	if err != nil {
		return fmt.Errorf("wait for prompt: %w", err)
	}

	w.log.Debug("Prompt configured", "sentinel", w.options.PromptSentinel, "banner", banner)

	return nil
}

// readLoop copies stdout into the output channel until EOF.
func (w *Wrapper) readLoop(stdout io.Reader) {
	defer close(w.output)
	defer w.log.Debug("Output reader stopped")

	buf := make([]byte, readBufferSize)

	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			select {
			case w.output <- string(buf[:n]):
			case <-w.done:
				return
			}
		}

		if err != nil {
			if !stderrors.Is(err, io.EOF) && !stderrors.Is(err, os.ErrClosed) {
				w.log.Debug("Output read error", "error", err)
			}

			return
		}
	}
}

// send writes one line of input to the interpreter.
func (w *Wrapper) send(line string) error {
	w.log.Debug("Sending line to k", "line_len", len(line))

	if _, err := io.WriteString(w.stdin, line+"\n"); err != nil {
		return fmt.Errorf("write to stdin: %w", err)
	}

	return nil
}

// exitError describes why the output stream ended.
func (w *Wrapper) exitError(output string) error {
	<-w.exited

	w.mu.Lock()
	terminated := w.terminated
	w.mu.Unlock()

	if terminated {
		return errors.ErrSessionTerminated
	}

	exitCode := 0
	if exitErr, ok := stderrors.AsType[*exec.ExitError](w.exitErr); ok {
		exitCode = exitErr.ExitCode()
	}

	if len(output) > maxErrorOutput {
		output = output[len(output)-maxErrorOutput:]
	}

	w.log.Error("k interpreter exited", "exit_code", exitCode, "error", w.exitErr)

	return &errors.ProcessError{
		ExitCode: exitCode,
		Output:   output,
		Err:      w.exitErr,
	}
}

// Alive reports whether the interpreter is running.
func (w *Wrapper) Alive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started || w.terminated {
		return false
	}

	select {
	case <-w.exited:
		return false
	default:
		return true
	}
}

// Terminate stops the interpreter.
//
// Stdin is closed and SIGTERM sent; if the process has not exited after
// Options.ShutdownTimeout it is killed. It's safe to call Terminate multiple
// times or on an already-exited process. Problems are logged, never returned.
func (w *Wrapper) Terminate() error {
	w.mu.Lock()

	if !w.started || w.terminated {
		w.mu.Unlock()

		return nil
	}

	w.terminated = true
	cmd := w.cmd
	stdin := w.stdin
	close(w.done)
	w.mu.Unlock()

	w.log.Debug("Terminating k interpreter")

	if stdin != nil {
		if err := stdin.Close(); err != nil {
			w.log.Debug("Close stdin", "error", err)
		}
	}

	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			w.log.Debug("Send SIGTERM", "pid", cmd.Process.Pid, "error", err)
		}

		select {
		case <-w.exited:
		case <-time.After(w.options.ShutdownTimeout):
			w.log.Warn("k interpreter ignored SIGTERM, killing", "pid", cmd.Process.Pid)

			if err := cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
				w.log.Debug("Kill k interpreter", "pid", cmd.Process.Pid, "error", err)
			}
		}
	}

	if err := w.eg.Wait(); err != nil {
		w.log.Debug("k interpreter exited during shutdown", "error", err)
	}

	w.log.Info("k interpreter terminated")

	return nil
}
