// Package mcpserver exposes the brokerage account to LLM clients over the
// Model Context Protocol.
package mcpserver

import (
	"context"
	"net/http"
	"time"

	"brokerage-mcp/internal/interfaces"
	"brokerage-mcp/internal/tradelog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	DefaultName    = "brokerage"
	DefaultVersion = "v1.0.0"
)

type Options struct {
	Name    string
	Version string
	// Mode is recorded on every journal entry (LIVE or DRY_RUN).
	Mode string
	// Journal receives one entry per placed order. Nil disables journaling
	// and the account history resource.
	Journal *tradelog.Journal
}

// Server binds broker operations to MCP tools, resources and prompts.
type Server struct {
	mcp     *mcp.Server
	broker  interfaces.Broker
	journal *tradelog.Journal
	mode    string
	now     func() time.Time
}

func New(broker interfaces.Broker, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}

	s := &Server{
		broker:  broker,
		journal: opts.Journal,
		mode:    opts.Mode,
		now:     time.Now,
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    opts.Name,
		Title:   "Brokerage trading server",
		Version: opts.Version,
	}, &mcp.ServerOptions{Instructions: Instructions})

	s.registerAuthTools()
	s.registerMarketTools()
	s.registerTradingTools()
	s.registerPortfolioTools()
	s.registerAnalysisTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// Run serves a single client over stdin/stdout until ctx is done or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
}
