package mcp

import "context"

// Transport moves JSON-RPC messages to and from an MCP server.
type Transport interface {
	// Call sends a request and decodes the result into result (when
	// non-nil).
	Call(ctx context.Context, method string, params, result any) error
	// Notify sends a notification (no reply expected).
	Notify(ctx context.Context, method string, params any) error
	// Close releases transport resources.
	Close() error
}
