package config

import (
	"context"
	"time"
)

// Driver defines the interface for talking to a k REPL session.
// Implement this to provide custom drivers for testing, mocking,
// or alternative interpreters that speak the same prompt protocol.
//
// The default implementation is repl.Wrapper which spawns a subprocess.
// Custom drivers can be injected via Options.DriverFactory.
type Driver interface {
	// Start spawns the interpreter and configures its prompt sentinel.
	// This is called before any command is run.
	Start(ctx context.Context) error

	// Run sends code to the interpreter and returns its output up to the
	// next prompt, with the sentinel removed.
	// Only one Run may be in flight at a time.
	Run(ctx context.Context, code string, opts RunOptions) (string, error)

	// Interrupt delivers an interrupt to the interpreter without ending the session.
	Interrupt(ctx context.Context, continuation bool) (string, error)

	// Terminate stops the interpreter and releases its pipes.
	// It's safe to call Terminate multiple times.
	Terminate() error

	// Alive returns true while the interpreter process is running.
	Alive() bool
}

// RunOptions carries the per-command settings for Driver.Run.
type RunOptions struct {
	// Timeout bounds the wait for the prompt. Zero waits until the
	// context is done.
	Timeout time.Duration

	// StreamHandler receives output incrementally as it arrives.
	// Nil disables streaming (silent evaluation).
	StreamHandler StreamHandler

	// LineHandler receives each complete output line without its newline.
	LineHandler LineHandler

	// StdinHandler answers input requests from the interpreter.
	StdinHandler StdinHandler
}
