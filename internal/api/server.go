// Package api provides the HTTP API server and handlers for the BookEX application.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bookexapp/bookex-server/internal/http/response"
	"github.com/bookexapp/bookex-server/internal/ingest"
	"github.com/bookexapp/bookex-server/internal/ratelimit"
	"github.com/bookexapp/bookex-server/internal/service"
	"github.com/bookexapp/bookex-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	library   *service.LibraryService
	pipeline  *ingest.Pipeline
	validator *validation.Validator
	limiter   *ratelimit.KeyedRateLimiter
	router    *chi.Mux
	logger    *slog.Logger

	tempPath       string
	maxUploadBytes int64
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(library *service.LibraryService, pipeline *ingest.Pipeline, limiter *ratelimit.KeyedRateLimiter, tempPath string, maxUploadBytes int64, logger *slog.Logger) *Server {
	s := &Server{
		library:        library,
		pipeline:       pipeline,
		validator:      validation.New(),
		limiter:        limiter,
		router:         chi.NewRouter(),
		logger:         logger,
		tempPath:       tempPath,
		maxUploadBytes: maxUploadBytes,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// API v1.
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/series", func(r chi.Router) {
			r.Post("/", s.handleCreateSeries)
			r.Get("/{id}", s.handleGetSeries)
			r.Patch("/{id}", s.handleUpdateSeries)
			r.Post("/search", s.handleSearchSeries)
			r.Post("/delete", s.handleDeleteSeries)
		})

		r.Route("/books", func(r chi.Router) {
			// Upload is the expensive endpoint; rate limited per client IP.
			r.With(s.rateLimit).Post("/", s.handleUploadBooks)
			r.Patch("/{id}", s.handleUpdateBook)
			r.Post("/search", s.handleSearchBooks)
			r.Post("/delete", s.handleDeleteBooks)
		})

		r.Get("/jobs/{id}", s.handleGetJob)
	})
}

// handleHealthCheck responds to health probes.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{"status": "ok"}, s.logger)
}

// rateLimit rejects requests exceeding the per-IP upload budget.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RealIP middleware has already resolved the client address.
		key := r.RemoteAddr
		if !s.limiter.Allow(key) {
			s.logger.Warn("rate limit exceeded", "ip", key, "path", r.URL.Path)
			response.TooManyRequests(w, "Too many requests. Please try again later.", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}
