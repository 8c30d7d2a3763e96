// Package server implements the transport servers behind the runtime: an
// HTTP/JSON server built on chi, and JSON-RPC, stdio, and SSE streaming
// servers built on the mcp-go transports. Each server serves one capability
// through a borrowed dispatcher and satisfies the plugin.Server contract:
// idempotent transitions, prompt Start with background accept loops, and
// graceful Stop.
package server
