// Package server exposes the orchestration loop and MCP server management
// over HTTP. Chat responses are streamed as server-sent events.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mcpchat/mcp"
	"mcpchat/model"
	"mcpchat/storage"
)

// ChatRunner runs one orchestration call. chat.Orchestrator satisfies it.
type ChatRunner interface {
	Run(ctx context.Context, history []model.Message, tools []model.ToolDescriptor) <-chan model.Event
}

// ToolSource lists the tools currently offered to the model and controls
// the servers providing them. mcp.Manager satisfies it.
type ToolSource interface {
	ListTools() []model.ToolDescriptor
	StartServer(ctx context.Context, cfg mcp.ServerConfig) error
	StopServer(ctx context.Context, serverID string) error
	Statuses() []mcp.Status
}

// ServerStore persists server definitions. storage.ServerStore satisfies it.
type ServerStore interface {
	List() ([]storage.ServerRecord, error)
	Save(cfg mcp.ServerConfig) error
	Delete(id string) error
}

// Config holds HTTP server settings.
type Config struct {
	Address           string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
}

// DefaultConfig returns the HTTP settings used by `mcpchat serve`.
// There is no write timeout; chat streams stay open for the whole call.
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Server wraps the HTTP server.
type Server struct {
	http   *http.Server
	logger *zap.Logger
}

// New creates a server routing to h.
func New(cfg Config, h *Handlers) *Server {
	return &Server{
		http: &http.Server{
			Addr:              cfg.Address,
			Handler:           NewRouter(h),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		logger: h.logger,
	}
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener. http.ErrServerClosed is not
// reported as an error.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}
