// Command kkernel runs the ngn/k interpreter behind a console or an MCP
// server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/mattn/go-isatty"

	kkernel "github.com/wagiedev/k-kernel-go"
	"github.com/wagiedev/k-kernel-go/internal/config"
	"github.com/wagiedev/k-kernel-go/internal/console"
	"github.com/wagiedev/k-kernel-go/internal/kernelspec"
	"github.com/wagiedev/k-kernel-go/internal/mcp"
)

// version is set at build time via ldflags.
var version = "dev"

// consoleCmd runs the line-oriented console.
type consoleCmd struct{}

// mcpCmd serves the kernel over MCP stdio.
type mcpCmd struct {
	Name string `arg:"--name" default:"k-kernel" help:"server name reported to MCP clients"`
}

// specCmd prints the kernel spec.
type specCmd struct{}

type args struct {
	Config     string        `arg:"-c,--config,env:KKERNEL_CONFIG" help:"YAML config file"`
	KDir       string        `arg:"--k-dir,env:NGN_K_DIR" help:"ngn/k directory holding k and repl.k"`
	CliOptions string        `arg:"--cli-options" help:"extra interpreter flags"`
	Timeout    time.Duration `arg:"--timeout" help:"per-command timeout, 0 waits forever"`
	StripANSI  bool          `arg:"--strip-ansi" help:"remove terminal escape sequences from output"`
	Debug      bool          `arg:"--debug" help:"enable debug logging"`

	Console *consoleCmd `arg:"subcommand:console" help:"run an interactive k console (default)"`
	MCP     *mcpCmd     `arg:"subcommand:mcp" help:"serve the kernel as MCP tools on stdio"`
	Spec    *specCmd    `arg:"subcommand:spec" help:"print the kernel spec"`
}

func (args) Version() string {
	return "kkernel " + version
}

func (args) Description() string {
	return "kkernel drives the ngn/k REPL for notebook-style front-ends."
}

// streams are the process's standard streams.
type streams struct {
	in          io.Reader
	out         io.Writer
	err         io.Writer
	interactive bool
}

func main() {
	var a args
	arg.MustParse(&a)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	s := streams{
		in:          os.Stdin,
		out:         os.Stdout,
		err:         os.Stderr,
		interactive: isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
	}

	if err := run(ctx, &a, s); err != nil {
		fmt.Fprintf(os.Stderr, "kkernel: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *args, s streams) error {
	var file *config.File

	if a.Config != "" {
		var err error

		file, err = config.Load(a.Config)
		if err != nil {
			return err
		}
	}

	logger := newLogger(a, file, s.err)

	switch {
	case a.Spec != nil:
		return printSpec(s.out)
	case a.MCP != nil:
		return serveMCP(ctx, a.MCP, kernelOptions(a, file, logger), logger)
	default:
		return runConsole(ctx, kernelOptions(a, file, logger), logger, s)
	}
}

func newLogger(a *args, file *config.File, w io.Writer) *slog.Logger {
	level := slog.LevelWarn

	if file != nil && file.Log.Level != "" {
		// Already validated by config.Load.
		level, _ = config.ParseLogLevel(file.Log.Level)
	}

	if a.Debug {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// kernelOptions layers command-line flags over the config file.
func kernelOptions(a *args, file *config.File, logger *slog.Logger) []kkernel.Option {
	var opts []kkernel.Option

	if file != nil {
		opts = append(opts, kkernel.WithOptions(file.Options()))
	}

	opts = append(opts, kkernel.WithLogger(logger))

	if a.KDir != "" {
		opts = append(opts, kkernel.WithInterpreterDir(a.KDir), kkernel.WithCommand())
	}

	if a.CliOptions != "" {
		opts = append(opts, kkernel.WithCliOptions(a.CliOptions))
	}

	if a.Timeout > 0 {
		opts = append(opts, kkernel.WithTimeout(a.Timeout))
	}

	if a.StripANSI {
		opts = append(opts, kkernel.WithStripANSI(true))
	}

	return opts
}

func printSpec(w io.Writer) error {
	spec, err := kernelspec.Load()
	if err != nil {
		return err
	}

	data, err := spec.JSON()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s\n", data)

	return err
}

func runConsole(ctx context.Context, opts []kkernel.Option, logger *slog.Logger, s streams) error {
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)

	defer signal.Stop(interrupts)

	c := console.New(&console.Config{
		In:          s.in,
		Out:         s.out,
		Err:         s.err,
		Interactive: s.interactive,
		Interrupts:  interrupts,
		Logger:      logger,
	})

	k := kkernel.New(append(opts,
		kkernel.WithStreamHandler(c.Stream),
		kkernel.WithErrorHandler(c.Error),
		kkernel.WithStdinHandler(c.ReadInput),
		kkernel.WithShutdownHandler(func(restart bool) {
			logger.Info("Session reset", "restart", restart)
		}),
	)...)

	defer func() {
		if err := k.Close(); err != nil {
			logger.Warn("failed to close kernel", "error", err)
		}
	}()

	if s.interactive {
		fmt.Fprintln(s.out, k.Info().Banner)
	}

	return c.Run(ctx, k)
}

func serveMCP(ctx context.Context, cmd *mcpCmd, opts []kkernel.Option, logger *slog.Logger) error {
	k := kkernel.New(opts...)

	defer func() {
		if err := k.Close(); err != nil {
			logger.Warn("failed to close kernel", "error", err)
		}
	}()

	server, err := mcp.NewServer(logger, k, cmd.Name, version)
	if err != nil {
		return err
	}

	return server.Serve(ctx)
}
