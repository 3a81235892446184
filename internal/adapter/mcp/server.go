// Package mcp exposes NexusPM runs and projects to AI agents over the
// Model Context Protocol (streamable HTTP transport).
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/NexusPM/internal/domain/project"
	"github.com/Strob0t/NexusPM/internal/domain/run"
	"github.com/Strob0t/NexusPM/internal/service"
)

// ServerConfig configures the MCP endpoint.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string
}

// ProjectLister reads the project catalog.
type ProjectLister interface {
	List(ctx context.Context) ([]project.Project, error)
	Get(ctx context.Context, id string) (*project.Project, error)
}

// RunReader reads runs and their logs.
type RunReader interface {
	GetRun(ctx context.Context, projectID, runID string) (*run.Run, error)
	ListRuns(ctx context.Context, projectID string) ([]run.Run, error)
	ListTelemetry(ctx context.Context, projectID, runID string) ([]run.TelemetryEntry, error)
}

// RunTrigger starts pipeline runs.
type RunTrigger interface {
	Trigger(ctx context.Context, projectID string, req run.TriggerRequest) (*run.Run, error)
}

// RunReviewer applies a bulk decision to a run parked at review.
type RunReviewer interface {
	RunAction(ctx context.Context, projectID, runID string, action service.Action) (*run.Run, error)
}

// ServerDeps are the services the tools call. Any of them may be nil; the
// matching tools then answer with an error result.
type ServerDeps struct {
	Projects ProjectLister
	Runs     RunReader
	Trigger  RunTrigger
	Reviewer RunReviewer
}

// Server wraps an mcp-go server and its HTTP listener.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
}

// NewServer builds the MCP server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP handler guarded by the API key.
func (s *Server) Handler() http.Handler {
	return AuthMiddleware(s.cfg.APIKey, mcpserver.NewStreamableHTTPServer(s.mcpServer))
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("mcp listen %s: %w", s.cfg.Addr, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server error", "error", err)
		}
	}()
	slog.Info("mcp server started", "addr", ln.Addr().String())
	return nil
}

// Stop shuts the listener down. Stop on a server that never started is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("mcp shutdown: %w", err)
	}
	slog.Info("mcp server stopped")
	return nil
}

func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
