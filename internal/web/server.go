package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/metrics"
	"github.com/kozaktomas/attendance-kiosk/internal/web/handlers"
	"github.com/kozaktomas/attendance-kiosk/internal/web/middleware"
)

// requestTimeout bounds every route except the event stream.
const requestTimeout = 30 * time.Second

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	sessions   *handlers.SessionsHandler
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, sessions *handlers.SessionsHandler) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:   cfg,
		router:   r,
		sessions: sessions,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: SSE streams stay open for the life of a session.
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown tears down all sessions, which ends their event streams, then
// drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down web server")

	if err := s.sessions.CloseAll(ctx); err != nil {
		slog.Warn("sessions did not stop cleanly", "error", err)
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
