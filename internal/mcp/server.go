// Package mcp provides an MCP (Model Context Protocol) server that lets agents
// observe and drive a running strangeloop frame loop.
package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/strangeloop/internal/loop"
	"github.com/nvandessel/strangeloop/internal/ratelimit"
)

// Server wraps the MCP SDK server and routes tool calls to a frame loop.
type Server struct {
	server       *sdk.Server
	loop         *loop.Loop
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "strangeloop")
	Version string // Server version

	// Loop is the frame loop tools act on. It must be running for tools to return.
	Loop *loop.Loop

	// AuditDir is where audit.jsonl is written. Empty disables the audit log.
	AuditDir string

	Logger *slog.Logger
}

// NewServer creates a new MCP server with strangeloop tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Loop == nil {
		return nil, errors.New("mcp server requires a frame loop")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		loop:         cfg.Loop,
		toolLimiters: ratelimit.NewToolLimiters(),
		logger:       logger,
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &sdk.StdioTransport{})
}

// RunTransport serves over t until the client disconnects, the context is
// cancelled or the process receives an interrupt.
func (s *Server) RunTransport(ctx context.Context, t sdk.Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, t)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the audit log.
func (s *Server) Close() error {
	return s.auditLogger.Close()
}
