package rest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/JoeBashe/stl-scraper/internal/core/port"
)

// Server is the HTTP trigger surface: scrape runs are started remotely
// instead of over SSH with the CLI.
type Server struct {
	httpServer *http.Server
}

func NewServer(port string, handlers *ScrapeHandlers, logger port.LoggerPort) *Server {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", handlers.Healthz)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", handlers.Search)
		r.Post("/refresh", handlers.Refresh)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:    ":" + port,
			Handler: r,
		},
	}
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
