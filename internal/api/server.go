package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xtding233/marble-bag/internal/registry"
)

// Server represents the API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	bags       *registry.Registry
	log        *zap.Logger
}

// NewServer creates a new API server
func NewServer(bags *registry.Registry, bindAddr string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		router: chi.NewRouter(),
		bags:   bags,
		log:    log,
	}

	s.router.Use(Recovery(log))
	s.router.Use(Logger(log))
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         bindAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/bags", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Get("/{bag_name}", s.handleStatus)
			r.Post("/{bag_name}/draw", s.handleDraw)
			r.Post("/{bag_name}/reset", s.handleReset)
			r.Get("/{bag_name}/usage", s.handleExport)
			r.Put("/{bag_name}/usage", s.handleImport)
		})
		r.Get("/simulate", s.handleSimulate)
	})

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.log.Info("api listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("api shutting down")
	return s.httpServer.Shutdown(ctx)
}
