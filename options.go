package kkernel

import (
	"log/slog"
	"time"

	"github.com/wagiedev/k-kernel-go/internal/config"
)

// KernelOptions configures a Kernel and its REPL driver.
type KernelOptions = config.Options

// Option configures KernelOptions using the functional options pattern.
type Option func(*KernelOptions)

// applyKernelOptions applies functional options on top of the defaults
// that differ from the zero value.
func applyKernelOptions(opts []Option) *KernelOptions {
	options := &KernelOptions{
		ForcePromptOnContinuation: true,
	}

	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *KernelOptions) {
		o.Logger = logger
	}
}

// WithOptions replaces all options with a copy of base, typically built
// from a configuration file. Options given after it still apply.
func WithOptions(base *KernelOptions) Option {
	return func(o *KernelOptions) {
		if base != nil {
			*o = *base
		}
	}
}

// ===== Interpreter =====

// WithInterpreterDir sets the ngn/k directory holding the k binary and repl.k.
// If not set, k is searched in PATH.
func WithInterpreterDir(dir string) Option {
	return func(o *KernelOptions) {
		o.InterpreterDir = dir
	}
}

// WithCommand sets an explicit interpreter argv, skipping discovery.
func WithCommand(argv ...string) Option {
	return func(o *KernelOptions) {
		o.Command = argv
	}
}

// WithScript sets the REPL script, relative to the interpreter directory
// unless absolute.
func WithScript(script string) Option {
	return func(o *KernelOptions) {
		o.Script = script
	}
}

// WithCliOptions sets extra startup flags for the interpreter.
// The string is split on whitespace.
func WithCliOptions(cliOptions string) Option {
	return func(o *KernelOptions) {
		o.CliOptions = cliOptions
	}
}

// WithEnv sets additional environment variables for the interpreter.
func WithEnv(env map[string]string) Option {
	return func(o *KernelOptions) {
		o.Env = env
	}
}

// WithCwd sets the working directory for the interpreter process.
func WithCwd(cwd string) Option {
	return func(o *KernelOptions) {
		o.Cwd = cwd
	}
}

// ===== Prompt Protocol =====

// WithPromptSentinel sets the prompt the REPL prints after every command.
// It must not appear in ordinary output.
func WithPromptSentinel(sentinel string) Option {
	return func(o *KernelOptions) {
		o.PromptSentinel = sentinel
	}
}

// WithPromptRegex overrides the pattern used to detect the sentinel.
func WithPromptRegex(pattern string) Option {
	return func(o *KernelOptions) {
		o.PromptRegex = pattern
	}
}

// WithStdinPrompt sets the marker the interpreter prints when it wants input.
func WithStdinPrompt(marker string) Option {
	return func(o *KernelOptions) {
		o.StdinPrompt = marker
	}
}

// WithContinuationPrompt sets the marker for an unfinished multi-line expression.
func WithContinuationPrompt(marker string) Option {
	return func(o *KernelOptions) {
		o.ContinuationPrompt = marker
	}
}

// WithForcePromptOnContinuation controls whether an empty line is sent when
// code leaves the interpreter waiting for continuation. Enabled by default.
func WithForcePromptOnContinuation(force bool) Option {
	return func(o *KernelOptions) {
		o.ForcePromptOnContinuation = force
	}
}

// WithStripANSI removes terminal escape sequences from output.
func WithStripANSI(strip bool) Option {
	return func(o *KernelOptions) {
		o.StripANSI = strip
	}
}

// ===== Timeouts =====

// WithTimeout bounds every command. Zero waits for as long as the context allows.
func WithTimeout(timeout time.Duration) Option {
	return func(o *KernelOptions) {
		o.Timeout = timeout
	}
}

// WithStartTimeout bounds the wait for the first prompt after spawning.
func WithStartTimeout(timeout time.Duration) Option {
	return func(o *KernelOptions) {
		o.StartTimeout = timeout
	}
}

// WithInterruptTimeout bounds the wait for the prompt after an interrupt.
func WithInterruptTimeout(timeout time.Duration) Option {
	return func(o *KernelOptions) {
		o.InterruptTimeout = timeout
	}
}

// WithShutdownTimeout sets the grace period between SIGTERM and SIGKILL.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(o *KernelOptions) {
		o.ShutdownTimeout = timeout
	}
}

// ===== Handlers =====

// WithErrorHandler routes evaluation errors to handler. Execute then
// returns an empty result and a nil error on failure.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(o *KernelOptions) {
		o.ErrorHandler = handler
	}
}

// WithStreamHandler receives the live output of non-silent executions.
func WithStreamHandler(handler StreamHandler) Option {
	return func(o *KernelOptions) {
		o.StreamHandler = handler
	}
}

// WithLineHandler receives the live output of non-silent executions one
// line at a time.
func WithLineHandler(handler LineHandler) Option {
	return func(o *KernelOptions) {
		o.LineHandler = handler
	}
}

// WithStdinHandler answers input requests from the interpreter.
func WithStdinHandler(handler StdinHandler) Option {
	return func(o *KernelOptions) {
		o.StdinHandler = handler
	}
}

// WithShutdownHandler is called with restart=true after the reset command
// discarded the session.
func WithShutdownHandler(handler ShutdownHandler) Option {
	return func(o *KernelOptions) {
		o.ShutdownHandler = handler
	}
}

// ===== Advanced =====

// WithDriverFactory replaces the subprocess driver. Use this for tests or
// for interpreters that speak the same prompt protocol over another channel.
func WithDriverFactory(factory DriverFactory) Option {
	return func(o *KernelOptions) {
		o.DriverFactory = factory
	}
}
