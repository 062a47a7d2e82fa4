// Package console runs a k kernel as a line-oriented terminal front-end.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// DefaultPrompt matches the prompt of the k REPL.
const DefaultPrompt = " "

const maxLineSize = 1024 * 1024

// Executor runs one line of input.
type Executor interface {
	Execute(ctx context.Context, code string, silent bool) (string, error)
}

// Config configures a Console.
type Config struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Interactive enables the input prompt.
	Interactive bool
	Prompt      string

	// Interrupts cancels the running execution on each receive. At the
	// prompt it discards the current line.
	Interrupts <-chan os.Signal

	Logger *slog.Logger
}

// Console reads lines of k and prints what the kernel sends back.
type Console struct {
	log         *slog.Logger
	in          io.Reader
	errOut      io.Writer
	interactive bool
	prompt      string
	interrupts  <-chan os.Signal

	lines chan string // Input lines, set while Run is active

	mu          sync.Mutex
	out         io.Writer
	streamed    bool
	atLineStart bool
}

// New creates a console. Nil readers and writers default to the process's
// standard streams.
func New(cfg *Config) *Console {
	if cfg == nil {
		cfg = &Config{}
	}

	c := &Console{
		in:          cfg.In,
		out:         cfg.Out,
		errOut:      cfg.Err,
		interactive: cfg.Interactive,
		prompt:      cfg.Prompt,
		interrupts:  cfg.Interrupts,
		atLineStart: true,
	}

	if c.in == nil {
		c.in = os.Stdin
	}

	if c.out == nil {
		c.out = os.Stdout
	}

	if c.errOut == nil {
		c.errOut = os.Stderr
	}

	if c.prompt == "" {
		c.prompt = DefaultPrompt
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c.log = log.With("component", "console")

	return c
}

// Stream writes output as it arrives. It is meant to be the kernel's
// stream handler.
func (c *Console) Stream(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.streamed = true
	c.writeLocked(text)
}

// Error prints an execution error. It is meant to be the kernel's error
// handler.
func (c *Console) Error(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.atLineStart {
		c.writeLocked("\n")
	}

	fmt.Fprintf(c.errOut, "error: %v\n", err)
}

// ReadInput answers an input request from the interpreter with the next
// line typed at the console. The prompt has already been streamed. It is
// meant to be the kernel's stdin handler and is only valid during Run.
func (c *Console) ReadInput(prompt string) (string, error) {
	c.log.Debug("Input requested", "prompt", prompt)

	if c.lines == nil {
		return "", io.EOF
	}

	line, ok := <-c.lines
	if !ok {
		return "", io.EOF
	}

	c.mu.Lock()
	c.atLineStart = true
	c.mu.Unlock()

	return line, nil
}

// Run reads lines until EOF or ctx is done and executes each non-blank one.
func (c *Console) Run(ctx context.Context, exec Executor) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)

	c.lines = lines

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(c.in)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)

		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		readErr <- scanner.Err()
	}()

	for {
		c.showPrompt()

		var line string

		select {
		case <-ctx.Done():
			return nil

		case <-c.interrupts:
			c.write("\n")

			continue

		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}

				return nil
			}

			line = l
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		c.execute(ctx, exec, line)
	}
}

func (c *Console) execute(ctx context.Context, exec Executor, line string) {
	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-c.interrupts:
			c.log.Debug("Interrupt received")
			cancel()
		case <-done:
		}
	}()

	c.mu.Lock()
	c.streamed = false
	c.mu.Unlock()

	resp, err := exec.Execute(execCtx, line, false)
	if err != nil {
		c.Error(err)

		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streamed {
		c.writeLocked(resp)
	}
}

func (c *Console) showPrompt() {
	if !c.interactive {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.atLineStart {
		c.writeLocked("\n")
	}

	_, _ = io.WriteString(c.out, c.prompt)
}

func (c *Console) write(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeLocked(text)
}

func (c *Console) writeLocked(text string) {
	if text == "" {
		return
	}

	if _, err := io.WriteString(c.out, text); err != nil {
		c.log.Debug("Write output", "error", err)
	}

	c.atLineStart = strings.HasSuffix(text, "\n")
}
