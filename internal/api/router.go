package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rflorenc/jenkins-mcp-server/internal/config"
	"github.com/rflorenc/jenkins-mcp-server/internal/jenkins"
	"github.com/rflorenc/jenkins-mcp-server/internal/mcpserver"
	"github.com/rflorenc/jenkins-mcp-server/internal/models"
	"github.com/rflorenc/jenkins-mcp-server/internal/observe"
)

// ConsoleSource reads a build's log incrementally.
type ConsoleSource interface {
	GetBuildConsoleProgressive(ctx context.Context, fullname string, number, start int64) (*jenkins.ConsoleChunk, error)
	GetBuild(ctx context.Context, fullname string, number int64, depth int) (*models.Build, error)
}

// Pinger checks that Jenkins answers with valid credentials.
type Pinger interface {
	Ping(ctx context.Context) (*jenkins.ServerInfo, error)
}

// Server holds shared state for all HTTP handlers.
type Server struct {
	MCP       *mcpserver.Server
	Transport string
	Metrics   *observe.Metrics

	// Pinger backs /readyz. Nil when no default credentials are configured.
	Pinger Pinger

	// Console resolves the Jenkins a console stream reads from, honouring
	// x-jenkins-* request headers.
	Console func(h http.Header) (ConsoleSource, error)

	// PollInterval paces progressive console reads.
	PollInterval time.Duration
}

// HeaderConsole returns a Console resolver that overlays request headers on base.
func HeaderConsole(base models.Connection, enumerator *jenkins.Enumerator) func(http.Header) (ConsoleSource, error) {
	return func(h http.Header) (ConsoleSource, error) {
		conn := base.WithHeaders(h)
		if !conn.Complete() {
			return nil, mcpserver.ErrMissingCredentials
		}
		return jenkins.New(&conn, enumerator), nil
	}
}

// NewRouter builds the chi router with the MCP endpoint for s.Transport and
// the operational routes.
func NewRouter(s *Server) http.Handler {
	if s.Metrics == nil {
		s.Metrics = observe.DefaultMetrics()
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(s.Metrics))
	r.Use(corsMiddleware)

	// MCP
	switch s.Transport {
	case config.TransportSSE:
		r.Handle("/sse", s.MCP.SSEHandler())
	case config.TransportStreamableHTTP:
		r.Handle("/mcp", s.MCP.StreamableHandler())
	}

	// Probes and metrics
	r.Get("/healthz", s.Healthz)
	r.Get("/readyz", s.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions", s.ListSessions)
	})

	// WebSocket (outside /api to avoid JSON content-type assumptions)
	r.Get("/ws/builds/*", s.StreamBuildConsole)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Authorization, Mcp-Session-Id, Mcp-Protocol-Version, "+
				"X-Jenkins-Url, X-Jenkins-Username, X-Jenkins-Password")
		w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
