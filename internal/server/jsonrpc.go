package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"cheshire/internal/health"
	"cheshire/internal/plugin"
	"cheshire/pkg/logging"

	"github.com/mark3labs/mcp-go/server"
)

// JSONRPCServer serves one capability's actions as JSON-RPC tools over the
// streamable HTTP transport.
type JSONRPCServer struct {
	binding plugin.ServerBinding
	metrics *health.Metrics

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
	running    atomic.Bool
}

// NewJSONRPCServer creates a JSON-RPC server for one capability binding.
func NewJSONRPCServer(binding plugin.ServerBinding, metrics *health.Metrics) *JSONRPCServer {
	return &JSONRPCServer{binding: binding, metrics: metrics}
}

// Type implements plugin.Server.
func (s *JSONRPCServer) Type() string { return "JSONRPC" }

// IsRunning implements plugin.Server.
func (s *JSONRPCServer) IsRunning() bool { return s.running.Load() }

// Init builds the underlying MCP server and its tools. Idempotent.
func (s *JSONRPCServer) Init(ctx context.Context) error {
	if s.mcpServer == nil {
		s.mcpServer = buildMCPServer(s.binding, s.metrics)
	}
	return nil
}

// Start begins serving in the background. Idempotent.
func (s *JSONRPCServer) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.Init(ctx); err != nil {
		s.running.Store(false)
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.binding.Transport.Host, s.binding.Transport.Port)
	s.httpServer = server.NewStreamableHTTPServer(s.mcpServer)

	go func() {
		logging.Info("JSONRPC", "serving capability %s on %s", s.binding.Capability, addr)
		if err := s.httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			logging.Error("JSONRPC", err, "server for %s stopped", s.binding.Capability)
			s.running.Store(false)
		}
	}()
	return nil
}

// Stop shuts the transport down gracefully. Idempotent.
func (s *JSONRPCServer) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
