// Package api provides the HTTP API server and handlers for Nibble.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nibbleapp/nibble-server/internal/auth"
	"github.com/nibbleapp/nibble-server/internal/metrics"
	"github.com/nibbleapp/nibble-server/internal/ratelimit"
	"github.com/nibbleapp/nibble-server/internal/sse"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins    []string
	RateLimitRPS   float64 // Write requests per second per client IP
	RateLimitBurst int
	Checks         map[string]HealthCheck
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services     *Services
	tokens       *auth.TokenService
	sseManager   *sse.Manager
	metrics      *metrics.Collector
	writeLimiter *ratelimit.KeyedRateLimiter
	checks       map[string]HealthCheck
	router       *chi.Mux
	api          huma.API
	logger       *slog.Logger
	now          func() time.Time
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	services *Services,
	tokens *auth.TokenService,
	sseManager *sse.Manager,
	m *metrics.Collector,
	opts Options,
	logger *slog.Logger,
) *Server {
	s := &Server{
		services:   services,
		tokens:     tokens,
		sseManager: sseManager,
		metrics:    m,
		checks:     opts.Checks,
		router:     chi.NewRouter(),
		logger:     logger,
		now:        time.Now,
	}
	if opts.RateLimitRPS > 0 {
		s.writeLimiter = ratelimit.New(opts.RateLimitRPS, max(opts.RateLimitBurst, 1))
	}

	s.setupMiddleware(opts.CORSOrigins)

	humaConfig := huma.DefaultConfig("Nibble API", Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
		"guest": {
			Type: "apiKey",
			In:   "header",
			Name: GuestSessionHeader,
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerFoodRoutes()
	s.registerGuestRoutes()
	s.registerEntryRoutes()
	s.registerDiaryRoutes()
	s.registerAllergenRoutes()

	if sseManager != nil {
		s.router.Get("/api/v1/events", sse.NewHandler(sseManager, s.sessionKeyFromRequest, logger).ServeHTTP)
	}
	if m != nil {
		s.router.Handle("/metrics", m.Handler())
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources.
func (s *Server) Close() {
	if s.writeLimiter != nil {
		s.writeLimiter.Stop()
	}
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", GuestSessionHeader},
		MaxAge:         300,
	}))
	if s.metrics != nil {
		s.router.Use(s.recordMetrics)
	}
	if s.writeLimiter != nil {
		s.router.Use(RateLimitMiddleware(s.writeLimiter, s.logger))
	}
}
