package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"amc-subscription/internal/config"
	"amc-subscription/internal/infra/api/apiv1"
)

// Pinger is a dependency probed by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Server owns the HTTP listener: payment routes, /health and /metrics.
type Server struct {
	cfg    config.ServerConfig
	v1     *apiv1.Server
	checks map[string]Pinger
	log    *zerolog.Logger
	srv    *http.Server
}

func NewServer(cfg config.ServerConfig, v1 *apiv1.Server, checks map[string]Pinger, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	s := &Server{cfg: cfg, v1: v1, checks: checks, log: &l}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(TraceID())
	r.Use(Recover(s.log))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(RequestLog(s.log))
		r.Use(CORS())
		r.Use(Timeout(s.cfg.RequestTimeout))
		apiv1.RegisterAPIV1(r, s.v1)
	})
	return r
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	res := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			s.log.Warn().Err(err).Str("check", name).Msg("health check failed")
			res.Checks[name] = "down"
			res.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[name] = "ok"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}
