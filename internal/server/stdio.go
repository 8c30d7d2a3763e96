package server

import (
	"context"
	"os"
	"sync/atomic"

	"cheshire/internal/health"
	"cheshire/internal/plugin"
	"cheshire/pkg/logging"

	"github.com/mark3labs/mcp-go/server"
)

// StdioServer serves one capability's actions as JSON-RPC tools over the
// process's stdin/stdout streams. Stopping cancels the listen loop; the
// transport has no listener to drain.
type StdioServer struct {
	binding plugin.ServerBinding
	metrics *health.Metrics

	mcpServer   *server.MCPServer
	stdioServer *server.StdioServer
	cancel      context.CancelFunc
	running     atomic.Bool
}

// NewStdioServer creates a stdio server for one capability binding.
func NewStdioServer(binding plugin.ServerBinding, metrics *health.Metrics) *StdioServer {
	return &StdioServer{binding: binding, metrics: metrics}
}

// Type implements plugin.Server.
func (s *StdioServer) Type() string { return "STDIO" }

// IsRunning implements plugin.Server.
func (s *StdioServer) IsRunning() bool { return s.running.Load() }

// Init builds the underlying MCP server and its tools. Idempotent.
func (s *StdioServer) Init(ctx context.Context) error {
	if s.mcpServer == nil {
		s.mcpServer = buildMCPServer(s.binding, s.metrics)
	}
	return nil
}

// Start begins the stdio loop in the background. Idempotent.
func (s *StdioServer) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.Init(ctx); err != nil {
		s.running.Store(false)
		return err
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stdioServer = server.NewStdioServer(s.mcpServer)

	go func() {
		logging.Info("Stdio", "serving capability %s on stdio", s.binding.Capability)
		if err := s.stdioServer.Listen(listenCtx, os.Stdin, os.Stdout); err != nil && listenCtx.Err() == nil {
			logging.Error("Stdio", err, "stdio server for %s stopped", s.binding.Capability)
			s.running.Store(false)
		}
	}()
	return nil
}

// Stop cancels the listen loop. Idempotent.
func (s *StdioServer) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
