package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"pixelplace/internal/canvas"
	"pixelplace/internal/identity"
)

// RouterConfig contains all dependencies needed to construct the HTTP
// router. Designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Canvas:   c,
//	    Stats:    stats,
//	    Roles:    roles,
//	    Resolver: fakeResolver,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Canvas is the placement engine (required)
	Canvas *canvas.Canvas

	// Stats is the aggregation engine (required)
	Stats *canvas.Stats

	// Roles answers privilege/ban checks (required)
	Roles identity.RoleProvider

	// Resolver maps user IDs to display names for /api/placer (required)
	Resolver canvas.Resolver

	// ConnectedCount samples the live connected-user count.
	// If nil, stats report zero connected users.
	ConnectedCount func() int

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses the default production origins.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for tests).
	DisableLogging bool
}

// routerHandlers holds the handler dependencies for the router.
type routerHandlers struct {
	canvas    *canvas.Canvas
	stats     *canvas.Stats
	roles     identity.RoleProvider
	resolver  canvas.Resolver
	connected func() int
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function starts no goroutines and opens no listeners
// (the rate limiter, if created here, runs only its cleanup timer).
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	connected := cfg.ConnectedCount
	if connected == nil {
		connected = func() int { return 0 }
	}

	h := &routerHandlers{
		canvas:    cfg.Canvas,
		stats:     cfg.Stats,
		roles:     cfg.Roles,
		resolver:  cfg.Resolver,
		connected: connected,
	}

	r.Route("/api", func(r chi.Router) {
		// Client bootstrap and canvas state
		r.Get("/initialize", h.handleInitialize)
		r.Get("/canvas", h.handleGetCanvas)
		r.Get("/canvas.png", h.handleGetCanvasPNG)
		r.Get("/cooldown", h.handleCooldown)

		// Placement
		r.Post("/place", h.handlePlace)
		r.Post("/placer", h.handlePlacer)

		// Stats
		r.Get("/stats", h.handleGetStats)
	})

	return r
}
