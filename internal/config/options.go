// Package config provides configuration types for the k kernel.
package config

import (
	"log/slog"
	"time"
)

const (
	// DefaultPromptSentinel is the prompt the REPL is told to print after each command.
	DefaultPromptSentinel = "@@@---->"

	// DefaultStdinPrompt marks a request for a line of input.
	DefaultStdinPrompt = "@@@----?"

	// DefaultContinuationPrompt marks a request for more lines of a multi-line expression.
	DefaultContinuationPrompt = "@@@----+"

	// DefaultScript is the REPL driver script shipped with ngn/k.
	DefaultScript = "repl.k"

	// DefaultStartTimeout bounds the wait for the first prompt after spawning.
	DefaultStartTimeout = 30 * time.Second

	// DefaultInterruptTimeout bounds the wait for the prompt after an interrupt.
	DefaultInterruptTimeout = 5 * time.Second

	// DefaultShutdownTimeout is the grace period between SIGTERM and SIGKILL.
	DefaultShutdownTimeout = 5 * time.Second
)

// ErrorHandler receives evaluation errors that should be reported, not returned.
type ErrorHandler func(err error)

// StreamHandler receives output text as it arrives.
type StreamHandler func(text string)

// LineHandler receives one output line at a time, without its newline.
type LineHandler func(line string)

// StdinHandler is asked for a line of input when the interpreter requests one.
// The prompt is the text printed on the current line before the request.
type StdinHandler func(prompt string) (string, error)

// ShutdownHandler is told when the kernel discards its session because the
// user asked for a restart.
type ShutdownHandler func(restart bool)

// DriverFactory builds the driver for a new session.
type DriverFactory func(log *slog.Logger, options *Options) Driver

// Options configures the kernel and its REPL driver.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// InterpreterDir is the ngn/k directory holding the k binary and repl.k.
	InterpreterDir string

	// Command overrides the interpreter discovery with an explicit argv.
	// The prompt change command is still sent after spawning.
	Command []string

	// Script is the companion REPL script, relative to InterpreterDir
	// unless absolute. Defaults to repl.k.
	Script string

	// CliOptions are extra startup flags appended to the interpreter argv.
	CliOptions string

	// Env provides additional environment variables for the interpreter.
	Env map[string]string

	// Cwd sets the working directory for the interpreter process.
	Cwd string

	// PromptSentinel is the marker printed as prompt after every command.
	PromptSentinel string

	// PromptRegex overrides the pattern used to detect the sentinel.
	// Defaults to the quoted PromptSentinel.
	PromptRegex string

	// StdinPrompt is the marker the interpreter prints when it wants input.
	StdinPrompt string

	// ContinuationPrompt is the marker for an unfinished multi-line expression.
	ContinuationPrompt string

	// ForcePromptOnContinuation sends an empty line when the last input line
	// leaves the interpreter waiting for continuation.
	ForcePromptOnContinuation bool

	// Timeout bounds every command. Zero waits for as long as the context allows.
	Timeout time.Duration

	// StartTimeout bounds the wait for the first prompt.
	StartTimeout time.Duration

	// InterruptTimeout bounds the wait for the prompt after an interrupt.
	InterruptTimeout time.Duration

	// ShutdownTimeout is the grace period before the interpreter is killed.
	ShutdownTimeout time.Duration

	// StripANSI removes terminal escape sequences from output.
	StripANSI bool

	// ErrorHandler receives evaluation errors. When set, Execute reports
	// errors here and returns an empty result instead of the error.
	ErrorHandler ErrorHandler

	// StreamHandler receives live output of non-silent evaluations.
	StreamHandler StreamHandler

	// LineHandler receives live output lines of non-silent evaluations.
	LineHandler LineHandler

	// StdinHandler answers input requests from the interpreter.
	StdinHandler StdinHandler

	// ShutdownHandler is called after a reset command discarded the session.
	ShutdownHandler ShutdownHandler

	// DriverFactory replaces the subprocess driver, mainly for tests.
	DriverFactory DriverFactory
}

// WithDefaults returns a copy of the options with zero values replaced by defaults.
func (o *Options) WithDefaults() *Options {
	out := &Options{}
	if o != nil {
		*out = *o
	}

	if out.PromptSentinel == "" {
		out.PromptSentinel = DefaultPromptSentinel
	}

	if out.StdinPrompt == "" {
		out.StdinPrompt = DefaultStdinPrompt
	}

	if out.ContinuationPrompt == "" {
		out.ContinuationPrompt = DefaultContinuationPrompt
	}

	if out.Script == "" {
		out.Script = DefaultScript
	}

	if out.StartTimeout == 0 {
		out.StartTimeout = DefaultStartTimeout
	}

	if out.InterruptTimeout == 0 {
		out.InterruptTimeout = DefaultInterruptTimeout
	}

	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = DefaultShutdownTimeout
	}

	return out
}
