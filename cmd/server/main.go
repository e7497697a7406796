package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"pixelplace/internal/api"
	"pixelplace/internal/canvas"
	"pixelplace/internal/config"
	"pixelplace/internal/identity"
)

func main() {
	// Load .env file if present (optional in production)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, using environment variables")
	}

	cfg := config.Load()

	log.Printf("🎨 Canvas %dx%d, %d-color palette, %d-tick cooldown",
		cfg.Canvas.Width, cfg.Canvas.Height, len(cfg.Canvas.Palette), cfg.Canvas.MaxCooldownTicks)

	if err := run(cfg); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(cfg config.AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Log.Path), 0755); err != nil {
		return errors.Wrap(err, "creating log directory")
	}

	eventLog, err := canvas.OpenEventLog(cfg.Log.Path)
	if err != nil {
		return errors.Wrap(err, "opening event log")
	}
	defer eventLog.Close()

	events, err := eventLog.Replay()
	if err != nil {
		if !errors.Is(err, canvas.ErrCorruptLog) {
			return errors.Wrap(err, "replaying event log")
		}
		// A torn tail from a crash mid-write is survivable. The valid
		// prefix is authoritative; new appends continue after it.
		log.Printf("⚠️ Event log has a corrupt tail, continuing with %d valid events: %v", len(events), err)
	}

	c := canvas.New(canvas.Settings{
		Width:            cfg.Canvas.Width,
		Height:           cfg.Canvas.Height,
		MaxCooldownTicks: cfg.Canvas.MaxCooldownTicks,
		Palette:          cfg.Canvas.Palette,
	}, eventLog)
	c.Restore(events)
	log.Printf("📼 Restored %d placements from %s", len(events), cfg.Log.Path)

	var resolver canvas.Resolver
	if cfg.Identity.Endpoint != "" {
		resolver = identity.NewHTTPResolver(cfg.Identity.Endpoint, cfg.Identity.CacheTTL)
		log.Printf("👤 Identity resolution via %s", cfg.Identity.Endpoint)
	} else {
		resolver = identity.NoopResolver{}
		log.Println("👤 Identity resolution disabled, leaderboards show raw IDs")
	}

	roles := identity.NewStaticRoles(cfg.Roles.Moderators, cfg.Roles.Banned)

	// The connected-user sample comes from the WebSocket hub, which is
	// built by the server, which in turn serves the stats. Bind late.
	var connectedFn func() int
	connected := func() int {
		if connectedFn == nil {
			return 0
		}
		return connectedFn()
	}

	stats := canvas.NewStats(c, resolver, connected, canvas.StatsOptions{
		Interval:       cfg.Stats.Interval,
		Retention:      cfg.Stats.Retention,
		TopN:           cfg.Stats.TopN,
		SeriesPath:     cfg.Stats.SeriesPath,
		ResolveTimeout: cfg.Identity.Timeout,
	})
	if err := stats.LoadSeries(); err != nil {
		log.Printf("⚠️ Could not load user-count series: %v", err)
	}
	stats.Seed(events)
	c.RegisterListener(stats.Observe)

	server := api.NewServer(api.ServerConfig{
		Canvas:   c,
		Stats:    stats,
		Roles:    roles,
		Resolver: resolver,
	})
	connectedFn = server.Hub().ClientCount

	// Debug server (pprof + Prometheus metrics) on localhost only
	if err := api.StartDebugServer(api.DefaultObservabilityConfig()); err != nil {
		log.Printf("⚠️ Debug server not started: %v", err)
	}

	c.Start()
	stats.Start()
	defer func() {
		stats.Stop()
		c.Stop()
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(fmt.Sprintf(":%d", cfg.Server.Port))
	}()

	select {
	case sig := <-sigChan:
		log.Printf("🛑 Received %v, shutting down", sig)
		return server.Stop()
	case err := <-errChan:
		return errors.Wrap(err, "http server")
	}
}
