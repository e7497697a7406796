package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pixelplace/internal/canvas"
	"pixelplace/internal/identity"
)

// ServerConfig bundles the dependencies the full HTTP server needs.
type ServerConfig struct {
	Canvas          *canvas.Canvas
	Stats           *canvas.Stats
	Roles           identity.RoleProvider
	Resolver        canvas.Resolver
	CORSOrigins     []string
	RateLimitConfig *RateLimitConfig
	DisableLogging  bool
}

// Server ties the HTTP router and the WebSocket hub together. The hub
// is registered as a canvas listener before the canvas starts, so every
// accepted placement is pushed to connected clients as a 7-byte frame.
type Server struct {
	router      *chi.Mux
	hub         *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer wires the hub into the canvas and builds the router.
// It starts no goroutines; call Start to begin serving.
func NewServer(cfg ServerConfig) *Server {
	hub := NewWebSocketHub(cfg.CORSOrigins)
	cfg.Canvas.RegisterListener(hub.BroadcastPixel)

	rateLimitCfg := DefaultRateLimitConfig
	if cfg.RateLimitConfig != nil {
		rateLimitCfg = *cfg.RateLimitConfig
	}
	rateLimiter := NewIPRateLimiter(rateLimitCfg)

	router := NewRouter(RouterConfig{
		Canvas:         cfg.Canvas,
		Stats:          cfg.Stats,
		Roles:          cfg.Roles,
		Resolver:       cfg.Resolver,
		ConnectedCount: hub.ClientCount,
		RateLimiter:    rateLimiter,
		CORSOrigins:    cfg.CORSOrigins,
		DisableLogging: cfg.DisableLogging,
	})
	router.Get("/ws", hub.HandleWebSocket)

	return &Server{
		router:      router,
		hub:         hub,
		rateLimiter: rateLimiter,
	}
}

// Router exposes the mux for tests (httptest.NewServer).
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Hub exposes the WebSocket hub, mainly for the connected-user sample.
func (s *Server) Hub() *WebSocketHub {
	return s.hub
}

// Start runs the hub loop and blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Printf("🌐 HTTP server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop shuts down the listener, the hub loop and the rate limiter
// cleanup loop.
func (s *Server) Stop() error {
	s.hub.Stop()
	s.rateLimiter.Stop()
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}
