package interpreter

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/wagiedev/k-kernel-go/internal/config"
	"github.com/wagiedev/k-kernel-go/internal/errors"
)

// BinaryName is the file name of the ngn/k interpreter.
const BinaryName = "k"

// Config holds configuration for interpreter discovery.
type Config struct {
	// Dir is the ngn/k directory. If empty, discovery searches PATH.
	Dir string

	// Command is an explicit argv that skips discovery entirely.
	Command []string

	// Script is the REPL script name or path. Defaults to repl.k.
	Script string

	// Logger is an optional logger for discovery operations.
	// If nil, a discarding logger is used.
	Logger *slog.Logger
}

// Command is a located interpreter.
type Command struct {
	// Path is the executable to spawn.
	Path string

	// Script is the REPL script passed as first argument. Empty when the
	// command was given explicitly.
	Script string

	// Args are arguments that precede the script, taken from an explicit argv.
	Args []string
}

// Locator finds the k interpreter.
type Locator interface {
	// Locate returns the interpreter command or an *errors.InterpreterNotFoundError.
	Locate(ctx context.Context) (*Command, error)
}

type locator struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that locator implements Locator.
var _ Locator = (*locator)(nil)

// NewLocator creates a new interpreter locator with the given configuration.
func NewLocator(cfg *Config) Locator {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &locator{
		cfg: cfg,
		log: log.With("component", "interpreter"),
	}
}

// Locate finds the interpreter binary and its REPL script.
func (l *locator) Locate(ctx context.Context) (*Command, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(l.cfg.Command) > 0 {
		l.log.Debug("Using explicit interpreter command", "argv", l.cfg.Command)

		path, err := exec.LookPath(l.cfg.Command[0])
		if err != nil {
			return nil, &errors.InterpreterNotFoundError{SearchedPaths: []string{l.cfg.Command[0]}}
		}

		return &Command{Path: path, Args: l.cfg.Command[1:]}, nil
	}

	script := l.cfg.Script
	if script == "" {
		script = config.DefaultScript
	}

	searchedPaths := make([]string, 0, 3)

	if l.cfg.Dir != "" {
		binary := filepath.Join(l.cfg.Dir, BinaryName)
		searchedPaths = append(searchedPaths, binary)

		l.log.Debug("Checking interpreter directory", "dir", l.cfg.Dir)

		if isExecutable(binary) {
			return l.withScript(binary, script, searchedPaths)
		}

		l.log.Warn("k interpreter not found in directory", "dir", l.cfg.Dir)

		return nil, &errors.InterpreterNotFoundError{SearchedPaths: searchedPaths}
	}

	l.log.Debug("Searching for 'k' in PATH")

	if path, err := exec.LookPath(BinaryName); err == nil {
		l.log.Debug("Found 'k' in PATH", "path", path)

		return l.withScript(path, script, append(searchedPaths, path))
	}

	searchedPaths = append(searchedPaths, "$PATH")

	l.log.Warn("k interpreter not found in any searched paths", "searched_paths", searchedPaths)

	return nil, &errors.InterpreterNotFoundError{SearchedPaths: searchedPaths}
}

// withScript resolves the REPL script relative to the binary's directory.
func (l *locator) withScript(binary, script string, searched []string) (*Command, error) {
	if !filepath.IsAbs(script) {
		script = filepath.Join(filepath.Dir(binary), script)
	}

	if _, err := os.Stat(script); err != nil {
		l.log.Warn("REPL script not found", "script", script)

		return nil, &errors.InterpreterNotFoundError{SearchedPaths: append(searched, script)}
	}

	l.log.Debug("Found k interpreter", "path", binary, "script", script)

	return &Command{Path: binary, Script: script}, nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	return info.Mode().Perm()&0o111 != 0
}
