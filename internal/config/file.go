package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk configuration read by the kkernel command.
type File struct {
	Interpreter InterpreterConfig `yaml:"interpreter"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Log         LogConfig         `yaml:"log"`
}

type InterpreterConfig struct {
	Dir        string            `yaml:"dir"`
	Command    []string          `yaml:"command"`
	Script     string            `yaml:"script"`
	CliOptions string            `yaml:"cli_options"`
	Env        map[string]string `yaml:"env"`
	Cwd        string            `yaml:"cwd"`
}

type PromptConfig struct {
	Sentinel                  string `yaml:"sentinel"`
	Regex                     string `yaml:"regex"`
	Stdin                     string `yaml:"stdin"`
	Continuation              string `yaml:"continuation"`
	ForcePromptOnContinuation *bool  `yaml:"force_prompt_on_continuation"`
}

type ExecutionConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	StartTimeout     time.Duration `yaml:"start_timeout"`
	InterruptTimeout time.Duration `yaml:"interrupt_timeout"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	StripANSI        bool          `yaml:"strip_ansi"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads a YAML config file. Environment variables in the file are
// expanded before parsing, so `dir: ${NGN_K_DIR}` works.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var f File
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &f, nil
}

func (f *File) validate() error {
	if f.Interpreter.Dir != "" && len(f.Interpreter.Command) > 0 {
		return fmt.Errorf("interpreter.dir and interpreter.command are mutually exclusive")
	}

	if f.Interpreter.Dir != "" && !filepath.IsAbs(f.Interpreter.Dir) {
		abs, err := filepath.Abs(f.Interpreter.Dir)
		if err != nil {
			return fmt.Errorf("interpreter.dir: %w", err)
		}

		f.Interpreter.Dir = abs
	}

	if f.Execution.Timeout < 0 {
		return fmt.Errorf("execution.timeout must not be negative")
	}

	if _, err := ParseLogLevel(f.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	// Apply defaults
	if f.Prompt.Sentinel == "" {
		f.Prompt.Sentinel = DefaultPromptSentinel
	}

	if f.Interpreter.Script == "" {
		f.Interpreter.Script = DefaultScript
	}

	if f.Prompt.ForcePromptOnContinuation == nil {
		force := true
		f.Prompt.ForcePromptOnContinuation = &force
	}

	return nil
}

// Options converts the file into kernel options. Handlers and the logger
// are left for the caller to set.
func (f *File) Options() *Options {
	return &Options{
		InterpreterDir:            f.Interpreter.Dir,
		Command:                   f.Interpreter.Command,
		Script:                    f.Interpreter.Script,
		CliOptions:                f.Interpreter.CliOptions,
		Env:                       f.Interpreter.Env,
		Cwd:                       f.Interpreter.Cwd,
		PromptSentinel:            f.Prompt.Sentinel,
		PromptRegex:               f.Prompt.Regex,
		StdinPrompt:               f.Prompt.Stdin,
		ContinuationPrompt:        f.Prompt.Continuation,
		ForcePromptOnContinuation: f.Prompt.ForcePromptOnContinuation == nil || *f.Prompt.ForcePromptOnContinuation,
		Timeout:                   f.Execution.Timeout,
		StartTimeout:              f.Execution.StartTimeout,
		InterruptTimeout:          f.Execution.InterruptTimeout,
		ShutdownTimeout:           f.Execution.ShutdownTimeout,
		StripANSI:                 f.Execution.StripANSI,
	}
}
