package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"raincheck/internal/config"
)

// Pinger reports database liveness for the health endpoint. Satisfied by
// *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server owns the router and the HTTP listener lifecycle.
type Server struct {
	cfg     config.ServerConfig
	handler *Handler
	pinger  Pinger
	logger  *slog.Logger
	http    *http.Server
}

// NewServer builds the middleware chain and routes and wraps them in an
// http.Server configured from ServerConfig.
func NewServer(cfg config.ServerConfig, handler *Handler, pinger Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		handler: handler,
		pinger:  pinger,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(Recoverer(logger))
	r.Use(RequestID)
	r.Use(RequestLogger(logger))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", handler.RegisterRoutes)

	s.http = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// ListenAndServe starts the listener and blocks until it stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests within the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// handleHealth handles GET /healthz. Reports degraded (503) when the
// database does not answer a short ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK
	if err := s.pinger.Ping(ctx); err != nil {
		s.logger.WarnContext(r.Context(), "health check database ping failed", "error", err)
		resp = healthResponse{Status: "degraded", Database: "unreachable"}
		status = http.StatusServiceUnavailable
	}

	JSON(w, r, status, APIResponse{Data: resp})
}
