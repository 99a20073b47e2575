// Package mcpserver exposes Jenkins operations as MCP tools over stdio, SSE
// and streamable HTTP.
package mcpserver

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rflorenc/jenkins-mcp-server/internal/config"
	"github.com/rflorenc/jenkins-mcp-server/internal/jenkins"
	"github.com/rflorenc/jenkins-mcp-server/internal/models"
	"github.com/rflorenc/jenkins-mcp-server/internal/observe"
)

// DefaultName is the implementation name reported to clients.
const DefaultName = "jenkins-mcp"

// Options configures a Server. Zero values fall back to sensible defaults.
type Options struct {
	Name    string
	Version string

	// ReadOnly hides the tools that change Jenkins state.
	ReadOnly bool

	// Connection is the fallback when a session sends no x-jenkins-* headers.
	Connection models.Connection

	// Singleton reuses the first Jenkins client of a session for all its calls.
	Singleton bool

	FolderDepthPerRequest int

	Factory  Factory
	Sessions *models.SessionStore
	Metrics  *observe.Metrics
}

// Server builds one MCP server per client session.
type Server struct {
	opts Options
}

// New returns a Server for opts.
func New(opts Options) *Server {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.FolderDepthPerRequest <= 0 {
		opts.FolderDepthPerRequest = jenkins.DefaultFolderDepthPerRequest
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	if opts.Factory == nil {
		opts.Factory = NewFactory(nil, opts.Metrics)
	}
	if opts.Sessions == nil {
		opts.Sessions = models.NewSessionStore()
	}
	return &Server{opts: opts}
}

// Sessions returns the store of initialized sessions.
func (s *Server) Sessions() *models.SessionStore { return s.opts.Sessions }

// NewSession returns an MCP server for a single client. header seeds the
// session's credentials on HTTP transports and may be nil.
func (s *Server) NewSession(transport string, header http.Header) *mcp.Server {
	sess := &session{
		srv:       s,
		transport: transport,
		runtime:   NewRuntime(s.opts.Connection, s.opts.Singleton, s.opts.Factory),
	}
	sess.runtime.SetHeaders(header)

	server := mcp.NewServer(&mcp.Implementation{Name: s.opts.Name, Version: s.opts.Version}, &mcp.ServerOptions{
		InitializedHandler: sess.initialized,
	})
	sess.registerTools(server)
	return server
}

// RunStdio serves a single session over stdin/stdout until ctx is done or
// the client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.NewSession(config.TransportStdio, nil).Run(ctx, &mcp.StdioTransport{})
}

// SSEHandler serves the SSE transport. GET opens a session and POST
// delivers client messages to it.
func (s *Server) SSEHandler() http.Handler {
	return mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return s.NewSession(config.TransportSSE, r.Header)
	}, nil)
}

// StreamableHandler serves the streamable HTTP transport.
func (s *Server) StreamableHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.NewSession(config.TransportStreamableHTTP, r.Header)
	}, nil)
}

type session struct {
	srv       *Server
	transport string
	runtime   *Runtime

	mu     sync.Mutex
	record *models.Session
}

func (s *session) current() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// initialized registers the session once the client completes the
// handshake and unregisters it when the connection ends.
func (s *session) initialized(ctx context.Context, req *mcp.InitializedRequest) {
	s.mu.Lock()
	if s.record != nil {
		s.mu.Unlock()
		return
	}
	rec := s.srv.opts.Sessions.Create(s.transport)
	s.record = rec
	s.mu.Unlock()

	s.srv.opts.Metrics.SessionOpened(ctx, s.transport)
	observe.Logger(ctx).Info("mcp session opened", "session", rec.ID, "transport", s.transport)

	if req == nil || req.Session == nil {
		return
	}
	go func() {
		_ = req.Session.Wait()
		rec.Close()
		s.srv.opts.Sessions.Remove(rec.ID)
		s.srv.opts.Metrics.SessionClosed(context.Background(), s.transport)
		slog.Info("mcp session closed", "session", rec.ID, "transport", s.transport)
	}()
}
