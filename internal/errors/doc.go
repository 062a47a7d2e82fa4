// Package errors defines error types for the k kernel.
//
// This package provides structured error types for the failure scenarios of
// driving a k REPL subprocess: locating the interpreter, starting it, waiting
// for its prompt, and the child exiting underneath a command. All error types
// support unwrapping and can be checked using errors.Is, errors.As, and
// errors.AsType.
package errors
