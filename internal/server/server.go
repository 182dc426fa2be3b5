// Package server exposes the scoring engine and the run store over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cascade-backflow/leadroute/internal/config"
	"github.com/cascade-backflow/leadroute/internal/scorer"
	"github.com/cascade-backflow/leadroute/internal/store"
)

const (
	maxBodyBytes    = 16 << 20
	shutdownTimeout = 10 * time.Second
)

// Server holds the HTTP dependencies. The store is optional; without it
// the run endpoints are not mounted and save requests are rejected.
type Server struct {
	engine   *scorer.Engine
	store    store.Store
	cfg      config.ServerConfig
	validate *validator.Validate
}

// New creates a Server.
func New(engine *scorer.Engine, st store.Store, cfg config.ServerConfig) *Server {
	return &Server{
		engine:   engine,
		store:    st,
		cfg:      cfg,
		validate: newValidator(),
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(newIPRateLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.Burst).middleware)
		}
		r.Use(middleware.RequestSize(maxBodyBytes))

		r.Post("/leads/score-batch", s.handleScoreBatch)
		r.Post("/leads/score", s.handleScore)

		if s.store != nil {
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{id}", s.handleGetRun)
			r.Get("/runs/{id}/leads", s.handleListRunLeads)
		}
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server: listening", zap.Int("port", s.cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}
