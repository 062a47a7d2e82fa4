package repl

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/wagiedev/k-kernel-go/internal/config"
	"github.com/wagiedev/k-kernel-go/internal/errors"
)

// Indexes into the pattern list used by Run.
const (
	matchPrompt = iota
	matchContinuation
	matchStdin
)

// Run sends code to the interpreter and returns its output.
//
// Code is sent one line at a time; after each line the output is read until
// the sentinel prompt reappears. The returned text has every sentinel
// removed. If the interpreter asks for input, opts.StdinHandler supplies the
// reply. If the REPL shows its continuation prompt after the last line and
// Options.ForcePromptOnContinuation is set, an empty line is sent to close
// the expression.
//
// Cancelling ctx abandons the wait and returns an error wrapping
// ErrInterrupted; the command keeps running until Interrupt is called.
// Exceeding opts.Timeout returns a TimeoutError carrying partial output.
// Either way the next Run first discards the rest of the abandoned command,
// interrupting it if it has not finished.
func (w *Wrapper) Run(ctx context.Context, code string, opts config.RunOptions) (string, error) {
	if err := w.acquire(); err != nil {
		return "", err
	}
	defer w.busy.Store(false)

	code = strings.TrimRightFunc(code, unicode.IsSpace)
	if code == "" {
		return "", nil
	}

	if w.promptOwed.Load() {
		stale, err := w.resync(ctx)
		if err != nil {
			return "", err
		}

		w.log.Debug("Discarded output of abandoned command", "output_len", len(stale))
	}

	out, err := w.run(ctx, code, opts)
	if err != nil && !stderrors.Is(err, errors.ErrExecution) && !stderrors.Is(err, errors.ErrSessionTerminated) {
		w.promptOwed.Store(true)
	}

	return out, err
}

func (w *Wrapper) run(ctx context.Context, code string, opts config.RunOptions) (string, error) {
	var deadline <-chan time.Time

	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()

		deadline = timer.C
	}

	s := w.newStreamer(opts.StreamHandler, opts.LineHandler)
	patterns := []*regexp.Regexp{
		matchPrompt:       w.prompt,
		matchContinuation: w.continuation,
		matchStdin:        w.stdinPrompt,
	}

	lines := strings.Split(code, "\n")

	var out strings.Builder

	for i, line := range lines {
		last := i == len(lines)-1

		if err := w.send(strings.TrimSuffix(line, "\r")); err != nil {
			return "", err
		}

	wait:
		for {
			before, idx, err := w.expect(ctx, deadline, opts.Timeout, patterns, s)
			if err != nil {
				return "", w.runError(err, out.String())
			}

			out.WriteString(before)

			switch idx {
			case matchPrompt:
				break wait

			case matchContinuation:
				if !last || !w.options.ForcePromptOnContinuation {
					break wait
				}

				w.log.Debug("Continuation prompt after last line, forcing prompt")

				if err := w.send(""); err != nil {
					return "", err
				}

			case matchStdin:
				if err := w.answerInput(opts.StdinHandler, before); err != nil {
					return "", err
				}
			}
		}
	}

	return w.clean(out.String()), nil
}

// resync consumes the prompt still owed by an abandoned command and
// returns the output printed before it. If the command has not finished,
// the interpreter is interrupted first. Caller must hold busy.
func (w *Wrapper) resync(ctx context.Context) (string, error) {
	w.collect()

	if idx, loc := firstMatch(w.pending, []*regexp.Regexp{w.prompt}); idx >= 0 {
		before := w.pending[:loc[0]]
		w.pending = w.pending[loc[1]:]
		w.promptOwed.Store(false)

		return w.clean(before), nil
	}

	w.log.Info("Abandoned command still running, interrupting k")

	return w.interruptAndWait(ctx)
}

// collect moves output that has already arrived into pending without
// waiting for more.
func (w *Wrapper) collect() {
	for {
		select {
		case chunk, ok := <-w.output:
			if !ok {
				return
			}

			w.pending += chunk

		default:
			return
		}
	}
}

// acquire claims the output stream for one operation.
func (w *Wrapper) acquire() error {
	w.mu.Lock()
	started, terminated := w.started, w.terminated
	w.mu.Unlock()

	switch {
	case terminated:
		return errors.ErrSessionTerminated
	case !started:
		return errors.ErrSessionNotStarted
	case !w.busy.CompareAndSwap(false, true):
		return errors.ErrDriverBusy
	}

	return nil
}

// answerInput asks handler for a line of input and sends it. The prompt
// passed to the handler is the partial line shown before the input marker.
func (w *Wrapper) answerInput(handler config.StdinHandler, before string) error {
	prompt := before[strings.LastIndexByte(before, '\n')+1:]

	if handler == nil {
		w.log.Warn("k requested input but no stdin handler is set", "prompt", prompt)

		return errors.ErrNoStdinHandler
	}

	input, err := handler(w.clean(prompt))
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	return w.send(strings.TrimRight(input, "\r\n"))
}

// runError prefixes the output of earlier lines to the output carried by err.
func (w *Wrapper) runError(err error, prior string) error {
	if timeoutErr, ok := stderrors.AsType[*errors.TimeoutError](err); ok {
		timeoutErr.Output = w.clean(prior + timeoutErr.Output)
	}

	if processErr, ok := stderrors.AsType[*errors.ProcessError](err); ok {
		output := w.clean(prior + processErr.Output)
		if len(output) > maxErrorOutput {
			output = output[len(output)-maxErrorOutput:]
		}

		processErr.Output = output
	}

	return err
}

// Interrupt sends SIGINT to the interpreter.
//
// When a command abandoned by a cancelled or timed-out Run is still owed its
// prompt, Interrupt stops it and returns the output printed before that
// prompt, bounded by ctx and Options.InterruptTimeout. No signal is sent if
// the command has already finished. Otherwise the signal is delivered and
// Interrupt returns at once with empty output: a Run in progress consumes
// the prompt itself. The continuation flag is accepted for callers that
// interrupt a multi-line entry; k returns to the main prompt either way.
func (w *Wrapper) Interrupt(ctx context.Context, continuation bool) (string, error) {
	w.mu.Lock()
	started, terminated := w.started, w.terminated
	w.mu.Unlock()

	if terminated {
		return "", errors.ErrSessionTerminated
	}

	if !started {
		return "", errors.ErrSessionNotStarted
	}

	w.log.Info("Interrupting k interpreter", "continuation", continuation)

	if !w.promptOwed.Load() || !w.busy.CompareAndSwap(false, true) {
		return "", w.sendInterrupt()
	}
	defer w.busy.Store(false)

	return w.resync(ctx)
}

// interruptAndWait interrupts the interpreter and reads up to the next
// prompt. Caller must hold busy.
func (w *Wrapper) interruptAndWait(ctx context.Context) (string, error) {
	if err := w.sendInterrupt(); err != nil {
		return "", err
	}

	timer := time.NewTimer(w.options.InterruptTimeout)
	defer timer.Stop()

	before, _, err := w.expect(ctx, timer.C, w.options.InterruptTimeout, []*regexp.Regexp{w.prompt}, nil)
	if err != nil {
		return "", w.runError(err, "")
	}

	w.promptOwed.Store(false)

	return w.clean(before), nil
}

func (w *Wrapper) sendInterrupt() error {
	w.mu.Lock()
	signal := w.signal
	w.mu.Unlock()

	if err := signal(os.Interrupt); err != nil {
		if stderrors.Is(err, os.ErrProcessDone) {
			return w.exitError("")
		}

		return fmt.Errorf("send interrupt: %w", err)
	}

	return nil
}
