// Package mcpserver exposes the correction engine to agent tooling over the
// Model Context Protocol.
//
// The server registers four tools — correct_text, diff_spans, parse_markup,
// and align_spans — whose input and output schemas mirror the HTTP API
// payloads. It can serve over stdio (the default, for editor and agent
// integrations) or as a streamable HTTP endpoint.
package mcpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/redlinehq/redline/internal/corrector"
)

// version is the MCP server version reported during initialisation.
const version = "0.1.0"

// Server wraps an [mcp.Server] with the Redline tool set.
type Server struct {
	corrector *corrector.Corrector
	server    *mcp.Server
}

// New creates the MCP server. c may be nil, in which case the correct_text
// tool reports an error when invoked; the pure engine tools always work.
func New(c *corrector.Corrector) *Server {
	impl := &mcp.Implementation{
		Name:    "redline",
		Version: version,
	}

	s := &Server{
		corrector: c,
		server:    mcp.NewServer(impl, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio. It blocks until the context is cancelled or
// the transport fails.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves MCP as a streamable HTTP endpoint on addr. It blocks until
// the context is cancelled or the listener fails.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
