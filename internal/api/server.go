// Package api exposes orchestration runs over a local HTTP API,
// including an SSE re-stream of run progress.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/swarmlink/orchestrate-go/internal/orchestrator"
)

// Server is the HTTP API server over the run registry.
type Server struct {
	registry *orchestrator.Registry
	mux      *http.ServeMux
	handler  http.Handler
}

// New creates a Server with the given registry and CORS origins.
func New(registry *orchestrator.Registry, corsOrigins []string) *Server {
	s := &Server{registry: registry, mux: http.NewServeMux()}
	s.routes()
	s.handler = requestID(logging(cors(corsOrigins, s.mux)))
	return s
}

// EnableOIDC wraps the server with Bearer-JWT verification against the
// given issuer. Must be called before serving.
func (s *Server) EnableOIDC(ctx context.Context, issuerURL, audience string) error {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return fmt.Errorf("api: oidc discovery: %w", err)
	}
	s.handler = requestID(logging(oidcAuth(provider, audience)(s.mux)))
	return nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/runs", s.handleListRuns)
	s.mux.HandleFunc("POST /api/v1/runs", s.handleStartRun)
	s.mux.HandleFunc("GET /api/v1/runs/{id}", s.handleGetRun)
	s.mux.HandleFunc("GET /api/v1/runs/{id}/graph", s.handleGetRunGraph)
	s.mux.HandleFunc("POST /api/v1/runs/{id}/cancel", s.handleCancelRun)
	s.mux.HandleFunc("GET /api/v1/runs/{id}/stream", s.handleStreamRun)
}
