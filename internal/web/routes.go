package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/attendance-kiosk/internal/metrics"
	"github.com/kozaktomas/attendance-kiosk/internal/web/handlers"
	"github.com/kozaktomas/attendance-kiosk/internal/web/middleware"
	"github.com/kozaktomas/attendance-kiosk/internal/web/static"
)

func (s *Server) setupRoutes() {
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		// Event streams live as long as the session.
		r.Get("/sessions/{id}/events", s.sessions.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			r.Get("/config", configHandler.Get)

			r.Get("/sessions", s.sessions.List)
			r.Post("/sessions", s.sessions.Create)
			r.Get("/sessions/{id}", s.sessions.Get)
			r.Delete("/sessions/{id}", s.sessions.Delete)
			r.Post("/sessions/{id}/start", s.sessions.Start)
			r.Post("/sessions/{id}/arm", s.sessions.Arm)
			r.Post("/sessions/{id}/stop", s.sessions.Stop)
			r.Post("/sessions/{id}/frames", s.sessions.PushFrame)
		})
	})

	// Kiosk page
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.SecurityHeaders())
		r.Handle("/*", http.FileServerFS(static.FS()))
	})
}
