// Package api provides the HTTP API server and handlers for the Tartil server.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tartilapp/tartil-server/internal/catalog"
	"github.com/tartilapp/tartil-server/internal/http/response"
	"github.com/tartilapp/tartil-server/internal/ratelimit"
	"github.com/tartilapp/tartil-server/internal/session"
	"github.com/tartilapp/tartil-server/internal/store"
	"github.com/tartilapp/tartil-server/internal/timing"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store          *store.Store
	catalogService *catalog.Service
	timingIndex    *timing.Index
	sessionService *session.Service
	hub            *session.Hub
	streamHandler  *session.StreamHandler
	limiter        *ratelimit.KeyedRateLimiter
	router         *chi.Mux
	logger         *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(store *store.Store, catalogService *catalog.Service, timingIndex *timing.Index, sessionService *session.Service, hub *session.Hub, streamHandler *session.StreamHandler, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) *Server {
	s := &Server{
		store:          store,
		catalogService: catalogService,
		timingIndex:    timingIndex,
		sessionService: sessionService,
		hub:            hub,
		streamHandler:  streamHandler,
		limiter:        limiter,
		router:         chi.NewRouter(),
		logger:         logger,
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
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
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
		// Chapter metadata.
		r.Route("/chapters", func(r chi.Router) {
			r.Get("/", s.handleListChapters)
			r.Get("/{number}", s.handleGetChapter)
		})

		// Reciter catalog.
		r.Route("/reciters", func(r chi.Router) {
			r.Get("/", s.handleListReciters)
			r.Get("/selection", s.handleGetSelection)
			r.Put("/selection", s.handleSetSelection)
			r.Get("/{id}", s.handleGetReciter)
		})

		// Timing index.
		r.Route("/timings", func(r chi.Router) {
			r.Delete("/cache", s.handleClearTimingCache)
			r.Get("/{reciterID}/chapters/{chapter}", s.handleGetChapterTiming)
			r.Post("/{reciterID}/preload", s.handlePreloadTimings)
		})

		// Playback session.
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Get("/stream", s.streamHandler.ServeHTTP)
			r.With(s.commandRateLimit).Post("/commands", s.handleCommand)
			r.Get("/resume", s.handleGetResumePoint)

			r.Route("/verse", func(r chi.Router) {
				r.Use(s.commandRateLimit)
				r.Post("/seek", s.handleSeekVerse)
				r.Post("/next", s.handleNextVerse)
				r.Post("/previous", s.handlePreviousVerse)
			})
		})
	})
}

// commandRateLimit protects the command endpoint from runaway clients,
// keyed by remote address.
func (s *Server) commandRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(r.RemoteAddr) {
			response.Error(w, http.StatusTooManyRequests, "too many commands", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealthCheck returns server health status.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{
		"status": "healthy",
	}, s.logger)
}
