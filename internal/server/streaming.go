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

// StreamingServer serves one capability's actions over SSE. Tool calls run
// through the capability's dispatcher; the SSE channel carries the
// server-to-client stream.
type StreamingServer struct {
	binding plugin.ServerBinding
	metrics *health.Metrics

	mcpServer *server.MCPServer
	sseServer *server.SSEServer
	running   atomic.Bool
}

// NewStreamingServer creates an SSE streaming server for one capability
// binding.
func NewStreamingServer(binding plugin.ServerBinding, metrics *health.Metrics) *StreamingServer {
	return &StreamingServer{binding: binding, metrics: metrics}
}

// Type implements plugin.Server.
func (s *StreamingServer) Type() string { return "STREAMING" }

// IsRunning implements plugin.Server.
func (s *StreamingServer) IsRunning() bool { return s.running.Load() }

// Init builds the underlying MCP server and its tools. Idempotent.
func (s *StreamingServer) Init(ctx context.Context) error {
	if s.mcpServer == nil {
		s.mcpServer = buildMCPServer(s.binding, s.metrics)
	}
	return nil
}

// Start begins serving in the background. Idempotent.
func (s *StreamingServer) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.Init(ctx); err != nil {
		s.running.Store(false)
		return err
	}

	host := s.binding.Transport.Host
	port := s.binding.Transport.Port
	addr := fmt.Sprintf("%s:%d", host, port)

	s.sseServer = server.NewSSEServer(
		s.mcpServer,
		server.WithBaseURL(fmt.Sprintf("http://%s:%d", host, port)),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
	)

	go func() {
		logging.Info("Streaming", "serving capability %s on %s", s.binding.Capability, addr)
		if err := s.sseServer.Start(addr); err != nil && err != http.ErrServerClosed {
			logging.Error("Streaming", err, "SSE server for %s stopped", s.binding.Capability)
			s.running.Store(false)
		}
	}()
	return nil
}

// Stop shuts the transport down gracefully. Idempotent.
func (s *StreamingServer) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.sseServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.sseServer.Shutdown(shutdownCtx)
}
