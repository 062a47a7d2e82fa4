// Package kkernel drives the ngn/k interpreter on behalf of a notebook-style
// front-end.
//
// A Kernel turns execution requests into REPL input and relays the captured
// output back. The interpreter runs as a child process whose prompt is
// replaced by a sentinel, so the end of each command's output can be
// detected reliably. The session is started lazily, survives interrupts,
// and is replaced when the reset command (a lone `\\`) is executed.
//
// # Basic Usage
//
//	k := kkernel.New(
//	    kkernel.WithInterpreterDir("/opt/ngn-k"),
//	    kkernel.WithStreamHandler(func(s string) { fmt.Print(s) }),
//	)
//	defer k.Close()
//
//	out, err := k.Execute(ctx, "+/!10", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Scoped Usage
//
// WithKernel starts a kernel, runs a callback, and closes the kernel:
//
//	err := kkernel.WithKernel(ctx, func(k kkernel.Kernel) error {
//	    _, err := k.Execute(ctx, "a:1 2 3", true)
//	    return err
//	},
//	    kkernel.WithLogger(slog.Default()),
//	)
//
// # Interrupts
//
// Cancelling the context passed to Execute sends SIGINT to the interpreter.
// Execute then returns what the interpreter printed up to its prompt,
// without an error, and the session remains usable. Interrupt does the same
// from another goroutine.
//
// # Error Handling
//
// Errors are typed and can be inspected with errors.Is and errors.AsType:
//
//	if timeoutErr, ok := errors.AsType[*kkernel.TimeoutError](err); ok {
//	    fmt.Println("partial output:", timeoutErr.Output)
//	}
//	if errors.Is(err, kkernel.ErrExecution) {
//	    // the interpreter exited; the next Execute starts a new one
//	}
//
// When an ErrorHandler is configured, evaluation errors go there and
// Execute returns an empty result.
package kkernel
