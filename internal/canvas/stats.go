package canvas

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Resolver maps a user ID to a display name. Lookups may fail per call;
// a failure degrades one leaderboard entry and never aborts a stats tick.
type Resolver interface {
	Resolve(ctx context.Context, userID uint64) (string, error)
}

// LeaderboardEntry is one row of a recomputed leaderboard.
type LeaderboardEntry struct {
	UserID uint64 `json:"userId,string"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}

// Snapshot is the derived, rebuildable aggregate state. Everything here
// is reconstructable from the event log except UserCountOverTime, which
// samples live connection counts and is persisted separately.
type Snapshot struct {
	UniqueUserCount    int                `json:"uniqueUserCount"`
	ColorCounts        map[uint32]int     `json:"colorCounts"`
	TopPlacers         []LeaderboardEntry `json:"topPlacers"`
	TopPlacersDay      []LeaderboardEntry `json:"topPlacersDay"`
	UserCountOverTime  map[int64]int      `json:"userCountOverTime"`
	PixelCountOverTime map[int64]int      `json:"pixelCountOverTime"`
}

// StatsOptions configures the aggregation engine.
type StatsOptions struct {
	Interval       time.Duration // Recompute period and bucket width
	Retention      time.Duration // Rolling window for both time series
	TopN           int           // Leaderboard length
	SeriesPath     string        // Persisted user-count series; empty disables persistence
	ResolveTimeout time.Duration // Per-ID identity lookup timeout
}

// Stats is the aggregation engine. The real-time path (Observe) runs
// synchronously on each placement; the periodic path (Recompute)
// rebuilds leaderboards and time series wholesale off the placement
// critical path and swaps the result in under a brief lock.
type Stats struct {
	canvas    *Canvas
	resolver  Resolver
	connected func() int
	opts      StatsOptions

	rtMu        sync.Mutex
	colorCounts map[uint32]int
	personal    map[uint64][]PixelEvent

	snapMu        sync.RWMutex
	uniqueUsers   int
	topPlacers    []LeaderboardEntry
	topPlacersDay []LeaderboardEntry
	userSeries    map[int64]int
	pixelSeries   map[int64]int

	running  bool
	runMu    sync.Mutex
	ticker   *time.Ticker
	stopChan chan struct{}
}

// NewStats creates the aggregation engine. connected samples the live
// connected-user count; resolver may be nil, in which case leaderboard
// names fall back to raw decimal IDs.
func NewStats(c *Canvas, resolver Resolver, connected func() int, opts StatsOptions) *Stats {
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = 5 * time.Second
	}
	return &Stats{
		canvas:      c,
		resolver:    resolver,
		connected:   connected,
		opts:        opts,
		colorCounts: make(map[uint32]int),
		personal:    make(map[uint64][]PixelEvent),
		userSeries:  make(map[int64]int),
		pixelSeries: make(map[int64]int),
		stopChan:    make(chan struct{}),
	}
}

// Observe is the synchronous real-time path, registered as a canvas
// placement listener.
func (s *Stats) Observe(ev PixelEvent) {
	s.rtMu.Lock()
	defer s.rtMu.Unlock()
	s.observeLocked(ev)
}

func (s *Stats) observeLocked(ev PixelEvent) {
	s.colorCounts[ev.Color]++
	s.personal[ev.UserID] = append(s.personal[ev.UserID], ev)
}

// Seed applies a replayed history to the real-time aggregates. Called
// once at startup with the events the canvas was restored from.
func (s *Stats) Seed(events []PixelEvent) {
	s.rtMu.Lock()
	defer s.rtMu.Unlock()
	for _, ev := range events {
		s.observeLocked(ev)
	}
}

// PersonalHistory returns a copy of one user's placement history.
func (s *Stats) PersonalHistory(userID uint64) []PixelEvent {
	s.rtMu.Lock()
	defer s.rtMu.Unlock()

	history := s.personal[userID]
	out := make([]PixelEvent, len(history))
	copy(out, history)
	return out
}

// Recompute rebuilds every derived aggregate for the given instant.
// Exported so the replay tool and tests can drive it directly.
func (s *Stats) Recompute(now time.Time) {
	started := time.Now()
	events := s.canvas.HistorySnapshot()

	top := s.resolveNames(topPlacers(events, s.opts.TopN))

	dayEvents := make([]PixelEvent, 0, len(events))
	for _, ev := range events {
		if sameLocalDay(ev.TimestampMs, now) {
			dayEvents = append(dayEvents, ev)
		}
	}
	topDay := s.resolveNames(topPlacers(dayEvents, s.opts.TopN))

	unique := make(map[uint64]struct{}, len(events))
	for _, ev := range events {
		unique[ev.UserID] = struct{}{}
	}

	pixelSeries := bucketCounts(events, now, s.opts.Retention, s.opts.Interval)

	userSeries := s.sampleUserCount(now)

	s.snapMu.Lock()
	s.topPlacers = top
	s.topPlacersDay = topDay
	s.uniqueUsers = len(unique)
	s.pixelSeries = pixelSeries
	s.userSeries = userSeries
	s.snapMu.Unlock()

	log.Printf("📊 Stats recomputed: %d events, %d users, %d buckets in %v",
		len(events), len(unique), len(pixelSeries), time.Since(started).Round(time.Millisecond))
}

// sampleUserCount appends the live connected-user count to the series,
// prunes entries outside the retention window and persists the result.
// Persistence failures are logged, never fatal to the tick.
func (s *Stats) sampleUserCount(now time.Time) map[int64]int {
	cutoff := now.UnixMilli() - s.opts.Retention.Milliseconds()

	s.snapMu.RLock()
	series := make(map[int64]int, len(s.userSeries)+1)
	for ts, count := range s.userSeries {
		if ts >= cutoff {
			series[ts] = count
		}
	}
	s.snapMu.RUnlock()

	if s.connected != nil {
		series[now.UnixMilli()] = s.connected()
	}

	if s.opts.SeriesPath != "" {
		if err := writeSeries(s.opts.SeriesPath, series); err != nil {
			log.Printf("⚠️ Failed to persist user-count series: %v", err)
		}
	}
	return series
}

// LoadSeries restores the persisted user-count series if the file
// exists. The series is the one piece of derived state not recoverable
// from the event log.
func (s *Stats) LoadSeries() error {
	if s.opts.SeriesPath == "" {
		return nil
	}
	data, err := os.ReadFile(s.opts.SeriesPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	series := make(map[int64]int, len(raw))
	for key, count := range raw {
		if ts, err := strconv.ParseInt(key, 10, 64); err == nil {
			series[ts] = count
		}
	}

	s.snapMu.Lock()
	s.userSeries = series
	s.snapMu.Unlock()
	return nil
}

func writeSeries(path string, series map[int64]int) error {
	raw := make(map[string]int, len(series))
	for ts, count := range series {
		raw[strconv.FormatInt(ts, 10)] = count
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Snapshot returns a copy of the current derived aggregates.
func (s *Stats) Snapshot() Snapshot {
	s.rtMu.Lock()
	colors := make(map[uint32]int, len(s.colorCounts))
	for c, n := range s.colorCounts {
		colors[c] = n
	}
	s.rtMu.Unlock()

	s.snapMu.RLock()
	defer s.snapMu.RUnlock()

	snap := Snapshot{
		UniqueUserCount:    s.uniqueUsers,
		ColorCounts:        colors,
		TopPlacers:         append([]LeaderboardEntry(nil), s.topPlacers...),
		TopPlacersDay:      append([]LeaderboardEntry(nil), s.topPlacersDay...),
		UserCountOverTime:  make(map[int64]int, len(s.userSeries)),
		PixelCountOverTime: make(map[int64]int, len(s.pixelSeries)),
	}
	for ts, count := range s.userSeries {
		snap.UserCountOverTime[ts] = count
	}
	for ts, count := range s.pixelSeries {
		snap.PixelCountOverTime[ts] = count
	}
	return snap
}

// resolveNames fills display names, one lookup per ID with its own
// timeout. A failed lookup surfaces as the raw decimal identifier.
func (s *Stats) resolveNames(entries []LeaderboardEntry) []LeaderboardEntry {
	for i := range entries {
		entries[i].Name = s.displayName(entries[i].UserID)
	}
	return entries
}

func (s *Stats) displayName(userID uint64) string {
	fallback := strconv.FormatUint(userID, 10)
	if s.resolver == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ResolveTimeout)
	defer cancel()

	name, err := s.resolver.Resolve(ctx, userID)
	if err != nil || name == "" {
		return fallback
	}
	return name
}

// Start begins the periodic recompute loop.
func (s *Stats) Start() {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return
	}
	s.running = true
	s.runMu.Unlock()

	s.ticker = time.NewTicker(s.opts.Interval)

	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.Recompute(time.Now())
			case <-s.stopChan:
				return
			}
		}
	}()

	log.Printf("📊 Stats recording every %v over a %v window", s.opts.Interval, s.opts.Retention)
}

// Stop stops the recompute loop.
func (s *Stats) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopChan)
}

// topPlacers counts placements per user and returns the top n, sorted
// by count descending. Ties break by first placement order, which the
// stable sort preserves.
func topPlacers(events []PixelEvent, n int) []LeaderboardEntry {
	counts := make(map[uint64]int)
	order := make([]uint64, 0)
	for _, ev := range events {
		if _, seen := counts[ev.UserID]; !seen {
			order = append(order, ev.UserID)
		}
		counts[ev.UserID]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}

	entries := make([]LeaderboardEntry, len(order))
	for i, id := range order {
		entries[i] = LeaderboardEntry{UserID: id, Count: counts[id]}
	}
	return entries
}

// sameLocalDay reports whether the millisecond timestamp falls on the
// same server-local calendar date as now.
func sameLocalDay(tsMs uint64, now time.Time) bool {
	y1, m1, d1 := time.UnixMilli(int64(tsMs)).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// bucketCounts partitions [now-retention, now] into fixed-width buckets
// and counts in-window events per bucket start time. Every in-window
// event lands in exactly one bucket; events outside are excluded.
func bucketCounts(events []PixelEvent, now time.Time, retention, width time.Duration) map[int64]int {
	nowMs := now.UnixMilli()
	windowStart := nowMs - retention.Milliseconds()
	widthMs := width.Milliseconds()

	buckets := make(map[int64]int)
	for _, ev := range events {
		ts := int64(ev.TimestampMs)
		if ts < windowStart || ts > nowMs {
			continue
		}
		bucket := (ts-windowStart)/widthMs*widthMs + windowStart
		buckets[bucket]++
	}
	return buckets
}
