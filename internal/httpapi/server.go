// Package httpapi implements the HTTP transport layer for the aipipe
// gateway: the route classifier, the gateway pipeline, admin
// operations, and the URL pass-through proxy.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	gateway "github.com/aipipe/gateway/internal"
	"github.com/aipipe/gateway/internal/ledger"
	"github.com/aipipe/gateway/internal/telemetry"
	"github.com/aipipe/gateway/internal/token"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Server holds every dependency the HTTP layer needs. All fields
// except Token, Ledger, Adapters, and UpstreamClient are optional.
type Server struct {
	Token          *token.Service
	Ledger         ledger.Ledger
	Adapters       map[string]gateway.Adapter
	UpstreamClient *http.Client

	Metrics        *telemetry.Metrics
	MetricsHandler http.Handler
	Tracer         trace.Tracer
	ReadyCheck     ReadyChecker
}

// New builds the chi router with every route and middleware wired.
func New(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(securityHeaders)
	r.Use(recovery)
	r.Use(requestID)
	r.Use(cors)
	r.Use(logging)
	if s.Metrics != nil {
		r.Use(metricsMiddleware(s.Metrics))
	}
	if s.Tracer != nil {
		r.Use(tracingMiddleware(s.Tracer))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.MetricsHandler != nil {
		r.Handle("/metrics", s.MetricsHandler)
	}

	r.Get("/token", s.handleMintToken)
	r.Get("/usage", s.handleUsage)

	r.Get("/admin/usage", s.handleAdminUsage)
	r.Get("/admin/token", s.handleAdminToken)
	r.HandleFunc("/admin/cost", s.handleAdminCost)

	r.HandleFunc("/proxy/*", s.handleURLProxy)

	r.HandleFunc("/{provider}/*", s.handleProvider)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Unknown provider")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
