package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/incident-tracker-service/internal/store"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresher reloads the feed on demand and gates /readyz.
type Refresher interface {
	sharedobs.ReadinessChecker
	Refresh(ctx context.Context) (store.Snapshot, error)
}

// SnapshotSource returns the collection currently served.
type SnapshotSource interface {
	Current() store.Snapshot
}

// Options tunes the query API.
type Options struct {
	TopN        int
	RecentLimit int
	Clock       clockwork.Clock
}

// Server exposes health, readiness and metrics endpoints plus the read-only
// incident query API.
type Server struct {
	httpServer *http.Server
	refresher  Refresher
	snapshots  SnapshotSource
	opts       Options
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and /api routes.
func NewServer(addr string, refresher Refresher, snapshots SnapshotSource, opts Options, logger *slog.Logger) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		refresher: refresher,
		snapshots: snapshots,
		opts:      opts,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(refresher))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/incidents", s.handleIncidents)
	mux.HandleFunc("GET /api/incidents/{id}", s.handleIncident)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/distributions/{dimension}", s.handleDistribution)
	mux.HandleFunc("GET /api/facets", s.handleFacets)
	mux.HandleFunc("GET /api/map", s.handleMap)
	mux.HandleFunc("GET /api/recent", s.handleRecent)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// errorBody is the JSON shape of every API error.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	sharedobs.WriteJSON(w, status, errorBody{Error: kind, Message: message})
}
