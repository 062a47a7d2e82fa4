// Package interpreter locates the ngn/k interpreter and builds the command
// used to run it as a line REPL.
//
// # Discovery
//
// The Locator finds the k binary and its companion REPL script:
//
//	locator := interpreter.NewLocator(&interpreter.Config{
//	    Dir:    "/opt/ngn-k",   // usually from NGN_K_DIR, read by the caller
//	    Logger: slog.Default(),
//	})
//	cmd, err := locator.Locate(ctx)
//
// Discovery searches in the following order:
//  1. An explicit argv in Config.Command (used as-is)
//  2. <Dir>/k with <Dir>/<Script>
//  3. k on the system PATH with <Script> next to the binary
//
// # Command Building
//
//	args := interpreter.BuildArgs(cmd.Script, "-q")
//	env := interpreter.BuildEnvironment(options)
//	line := interpreter.PromptCommand("@@@---->")
package interpreter
