// Package kernel implements the adapter between a notebook-style front-end
// and a k REPL session.
//
// A Kernel owns at most one session, created lazily on the first execution
// and replaced when the reset token is executed or the interpreter dies.
// Execution requests are serialised; output flows back through the
// configured stream, line and error handlers. Cancelling an execution's
// context interrupts the interpreter without ending the session.
package kernel
