// Package repl drives the k interpreter as a prompt-delimited line REPL.
//
// This package implements the config.Driver interface by spawning the
// interpreter as a child process and talking to it over stdin/stdout. After
// spawning, the REPL is told to print a fixed sentinel as its prompt; every
// command's output is then everything printed before the sentinel reappears.
// The package handles process lifecycle, incremental output streaming,
// input requests from the interpreter, interrupts and timeouts.
package repl
