package kkernel

import "github.com/wagiedev/k-kernel-go/internal/config"

// Driver talks to one k REPL session. The default implementation spawns the
// interpreter as a subprocess; WithDriverFactory installs another.
type Driver = config.Driver

// RunOptions carries the per-command settings for Driver.Run.
type RunOptions = config.RunOptions

// DriverFactory builds the driver for a new session.
type DriverFactory = config.DriverFactory

// Handler types for kernel output and lifecycle events.
type (
	ErrorHandler    = config.ErrorHandler
	StreamHandler   = config.StreamHandler
	LineHandler     = config.LineHandler
	StdinHandler    = config.StdinHandler
	ShutdownHandler = config.ShutdownHandler
)
