// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all canvas and server settings.
//
// IMPORTANT: When changing defaults, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// CANVAS CONFIGURATION
// =============================================================================

// CanvasConfig holds the raster dimensions, the closed palette and the
// placement cooldown. These values are immutable after startup.
type CanvasConfig struct {
	Width            int      // Raster width in cells
	Height           int      // Raster height in cells
	MaxCooldownTicks int      // Ticks (1s each) a user waits between placements
	Palette          []uint32 // Closed set of accepted 24-bit RGB values
}

// defaultPalette is the 32-color palette the canvas launched with.
var defaultPalette = []string{
	"#6d001a", "#be0039", "#ff4500", "#ffa800",
	"#ffd635", "#fff8b8", "#00a368", "#00cc78",
	"#7eed56", "#00756f", "#009eaa", "#00ccc0",
	"#2450a4", "#3690ea", "#51e9f4", "#493ac1",
	"#6a5cff", "#94b3ff", "#811e9f", "#b44ac0",
	"#e4abff", "#de107f", "#ff3881", "#ff99aa",
	"#6d482f", "#9c6926", "#ffb470", "#000000",
	"#515252", "#898d90", "#d4d7d9", "#ffffff",
}

// DefaultCanvas returns the default canvas configuration.
func DefaultCanvas() CanvasConfig {
	return CanvasConfig{
		Width:            500,
		Height:           500,
		MaxCooldownTicks: 120,
		Palette:          ParsePalette(defaultPalette),
	}
}

// CanvasFromEnv returns canvas configuration with environment overrides.
// CANVAS_PALETTE is a comma-separated list of #rrggbb values.
func CanvasFromEnv() CanvasConfig {
	cfg := DefaultCanvas()

	if w := getEnvInt("CANVAS_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("CANVAS_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if cd := getEnvInt("CANVAS_COOLDOWN_TICKS", 0); cd > 0 {
		cfg.MaxCooldownTicks = cd
	}
	if p := os.Getenv("CANVAS_PALETTE"); p != "" {
		if colors := ParsePalette(strings.Split(p, ",")); len(colors) > 0 {
			cfg.Palette = colors
		}
	}

	return cfg
}

// ParseColor converts a "#rrggbb" or "rrggbb" string to a packed 24-bit value.
// Returns (0, false) on malformed input.
func ParseColor(s string) (uint32, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// ParsePalette converts hex color strings, silently dropping malformed entries.
func ParsePalette(hex []string) []uint32 {
	colors := make([]uint32, 0, len(hex))
	for _, h := range hex {
		if c, ok := ParseColor(h); ok {
			colors = append(colors, c)
		}
	}
	return colors
}

// =============================================================================
// EVENT LOG CONFIGURATION
// =============================================================================

// LogConfig holds the durable event log location.
type LogConfig struct {
	Path string // Append-only binary event log file
}

// DefaultLog returns the default event log configuration.
func DefaultLog() LogConfig {
	return LogConfig{Path: "canvas/current.hst"}
}

// LogFromEnv returns log configuration with environment overrides.
func LogFromEnv() LogConfig {
	cfg := DefaultLog()
	if p := os.Getenv("EVENT_LOG_PATH"); p != "" {
		cfg.Path = p
	}
	return cfg
}

// =============================================================================
// STATS CONFIGURATION
// =============================================================================

// StatsConfig controls the periodic aggregation engine.
type StatsConfig struct {
	Interval   time.Duration // Recompute period, also the time-series bucket width
	Retention  time.Duration // Rolling window for both time series
	TopN       int           // Leaderboard length
	SeriesPath string        // Persisted connected-user-count series (JSON)
}

// DefaultStats returns the default stats configuration.
func DefaultStats() StatsConfig {
	return StatsConfig{
		Interval:   10 * time.Minute,
		Retention:  24 * time.Hour,
		TopN:       30,
		SeriesPath: "canvas/userCountOverTime.json",
	}
}

// StatsFromEnv returns stats configuration with environment overrides.
func StatsFromEnv() StatsConfig {
	cfg := DefaultStats()

	if v := getEnvInt("STATS_INTERVAL_SECONDS", 0); v > 0 {
		cfg.Interval = time.Duration(v) * time.Second
	}
	if v := getEnvInt("STATS_RETENTION_SECONDS", 0); v > 0 {
		cfg.Retention = time.Duration(v) * time.Second
	}
	if v := getEnvInt("STATS_TOP_N", 0); v > 0 {
		cfg.TopN = v
	}
	if p := os.Getenv("STATS_SERIES_PATH"); p != "" {
		cfg.SeriesPath = p
	}

	return cfg
}

// =============================================================================
// IDENTITY CONFIGURATION
// =============================================================================

// IdentityConfig holds the external identity-resolution endpoint.
type IdentityConfig struct {
	Endpoint string        // POST {userId} -> {username}; empty disables resolution
	CacheTTL time.Duration // Display-name cache lifetime
	Timeout  time.Duration // Per-lookup timeout
}

// DefaultIdentity returns the default identity configuration.
func DefaultIdentity() IdentityConfig {
	return IdentityConfig{
		CacheTTL: 30 * time.Minute,
		Timeout:  5 * time.Second,
	}
}

// IdentityFromEnv returns identity configuration with environment overrides.
func IdentityFromEnv() IdentityConfig {
	cfg := DefaultIdentity()
	if e := os.Getenv("IDENTITY_ENDPOINT"); e != "" {
		cfg.Endpoint = e
	}
	if v := getEnvInt("IDENTITY_CACHE_TTL_SECONDS", 0); v > 0 {
		cfg.CacheTTL = time.Duration(v) * time.Second
	}
	return cfg
}

// =============================================================================
// ROLES CONFIGURATION
// =============================================================================

// RolesConfig lists privileged (moderator) and banned user IDs.
// Role membership is owned by an external collaborator; these env-supplied
// sets are the default in-process implementation of that interface.
type RolesConfig struct {
	Moderators []uint64
	Banned     []uint64
}

// RolesFromEnv reads MODERATOR_IDS / BANNED_IDS (comma-separated decimal IDs).
func RolesFromEnv() RolesConfig {
	return RolesConfig{
		Moderators: parseIDList(os.Getenv("MODERATOR_IDS")),
		Banned:     parseIDList(os.Getenv("BANNED_IDS")),
	}
}

func parseIDList(s string) []uint64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		if id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{Port: 3000}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Canvas   CanvasConfig
	Log      LogConfig
	Stats    StatsConfig
	Identity IdentityConfig
	Roles    RolesConfig
	Server   ServerConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Canvas:   CanvasFromEnv(),
		Log:      LogFromEnv(),
		Stats:    StatsFromEnv(),
		Identity: IdentityFromEnv(),
		Roles:    RolesFromEnv(),
		Server:   ServerFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
