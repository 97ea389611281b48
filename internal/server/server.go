package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talkdataco/financial-assistant/apimodels"
	"github.com/talkdataco/financial-assistant/internal/config"
	"github.com/talkdataco/financial-assistant/internal/history"
)

// Assistant answers queries. Satisfied by *assistant.Assistant.
type Assistant interface {
	Answer(ctx context.Context, req apimodels.QueryRequest) (*apimodels.QueryResponse, error)
}

type Server struct {
	cfg       config.ServerConfig
	router    *chi.Mux
	server    *http.Server
	assistant Assistant

	// history is nil when query history is disabled
	history *history.Store
}

func New(cfg config.ServerConfig, assistant Assistant, hist *history.Store) *Server {
	s := &Server{
		cfg:       cfg,
		router:    chi.NewRouter(),
		assistant: assistant,
		history:   hist,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Get("/health", s.handleHealth)
		if s.history != nil {
			r.Get("/history", s.handleHistory)
		}
	})
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run() error {
	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("starting server", "address", s.server.Addr)
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info("starting shutdown", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	return nil
}
