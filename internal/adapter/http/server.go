package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/snow-removal-info-service/internal/clientaddr"
	"github.com/couchcryptid/snow-removal-info-service/internal/domain"
	"github.com/couchcryptid/snow-removal-info-service/internal/observability"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker = sharedobs.ReadinessChecker

// Checks reports ready only when every component does. An empty Checks is
// always ready.
type Checks []ReadinessChecker

func (c Checks) CheckReadiness(ctx context.Context) error {
	for _, rc := range c {
		if err := rc.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ReportStore persists and queries snow reports.
type ReportStore interface {
	Create(ctx context.Context, r domain.SnowReport) (domain.SnowReport, error)
	Get(ctx context.Context, id int64) (domain.SnowReport, error)
	List(ctx context.Context, f domain.ReportFilter) ([]domain.SnowReport, error)
}

// Options carries the collaborators of the HTTP server.
type Options struct {
	Resolver *clientaddr.Resolver
	Reports  ReportStore
	Ready    ReadinessChecker
	Metrics  *observability.Metrics // required

	// RootRedirect is the target for requests to "/". Empty disables the rule.
	RootRedirect string

	// OnReportCreated is called after a report has been stored.
	OnReportCreated func(domain.SnowReport)
}

// Server exposes the public API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	opts       Options
}

// NewServer creates an HTTP server with the API, /healthz, /readyz, and /metrics routes.
// A nil Resolver means clientaddr.New(); a nil Ready checker always reports ready.
func NewServer(addr string, opts Options, logger *slog.Logger) *Server {
	if opts.Resolver == nil {
		opts.Resolver = clientaddr.New()
	}
	if opts.Ready == nil {
		opts.Ready = Checks{}
	}

	mux := http.NewServeMux()

	s := &Server{
		logger: logger,
		opts:   opts,
	}

	mux.HandleFunc("GET /api/ip", s.handleIP)
	mux.HandleFunc("GET /api/areas", s.handleAreas)
	mux.HandleFunc("GET /api/reports", s.handleListReports)
	mux.HandleFunc("POST /api/reports", s.handleCreateReport)
	mux.HandleFunc("GET /api/reports/{id}", s.handleGetReport)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(opts.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	chain := alice.New(
		s.logRequests,
		s.recoverPanics,
		rootRedirect(opts.RootRedirect),
	)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      chain.Then(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

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
