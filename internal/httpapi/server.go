// Package httpapi serves the transcoder over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eleven-am/transcoder"
	"github.com/eleven-am/transcoder/internal/config"
)

// Server routes requests to a transcoder.Controller.
type Server struct {
	cfg        config.ServerConfig
	ctrl       *transcoder.Controller
	router     *chi.Mux
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(cfg config.ServerConfig, ctrl *transcoder.Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:    cfg,
		ctrl:   ctrl,
		router: chi.NewRouter(),
		logger: logger.With(slog.String("component", "http")),
	}

	s.router.Use(chimiddleware.RealIP)
	s.router.Use(RequestID(s.logger))
	s.router.Use(Logging)
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/transcodes", func(r chi.Router) {
		r.Get("/", s.listTranscodes)
		r.Route("/{clientID}/{transcodeID}", func(r chi.Router) {
			r.Post("/", s.createTranscode)
			r.Get("/", s.getTranscode)
			r.Delete("/", s.stopTranscode)
			r.Post("/master.m3u8", s.masterPlaylist)
			r.Get("/stream", s.stream)
			r.Get("/index.m3u8", s.playlist)
			r.Get("/subtitles/{name}", s.subtitle)
			r.Get("/{segment}", s.segment)
		})
	})

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", slog.String("address", s.cfg.Address))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("starting server: %w", err)
			return
		}
		errChan <- nil
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server", slog.Duration("timeout", s.cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return <-errChan
}
