// Package mcp exposes a k kernel as a Model Context Protocol server.
//
// The server registers three tools, execute, interrupt and reset, that
// forward to an Executor. Tools can be called directly through Server.CallTool
// or served to MCP clients over stdio with Server.Serve.
package mcp
