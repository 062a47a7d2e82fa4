package interpreter

import (
	"fmt"
	"os"
	"strings"

	"github.com/wagiedev/k-kernel-go/internal/config"
)

// BuildArgs constructs the interpreter arguments: explicit leading args,
// then the REPL script, then the extra startup flags split on whitespace.
func BuildArgs(cmd *Command, cliOptions string) []string {
	args := make([]string, 0, len(cmd.Args)+4)
	args = append(args, cmd.Args...)

	if cmd.Script != "" {
		args = append(args, cmd.Script)
	}

	return append(args, strings.Fields(cliOptions)...)
}

// BuildEnvironment constructs the environment variables for the interpreter process.
func BuildEnvironment(options *config.Options) []string {
	env := os.Environ()

	// No colors or line editing from anything that checks the terminal.
	env = append(env, "TERM=dumb")

	for key, value := range options.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}

// PromptCommand returns the k statement that sets the REPL prompt to sentinel.
func PromptCommand(sentinel string) string {
	return `repl.prompt:"` + quote(sentinel) + `"`
}

// quote escapes a string for use inside a k string literal.
func quote(s string) string {
	var b strings.Builder

	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}
