package canvas

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// fakeResolver resolves only the IDs it knows; everything else errors,
// exercising the raw-ID fallback.
type fakeResolver struct {
	names map[uint64]string
}

func (r *fakeResolver) Resolve(_ context.Context, userID uint64) (string, error) {
	if name, ok := r.names[userID]; ok {
		return name, nil
	}
	return "", errors.New("unknown user")
}

func testStatsOptions() StatsOptions {
	return StatsOptions{
		Interval:       10 * time.Minute,
		Retention:      24 * time.Hour,
		TopN:           30,
		ResolveTimeout: time.Second,
	}
}

// TestTopPlacersOrdering tests count ordering with first-seen tiebreak
func TestTopPlacersOrdering(t *testing.T) {
	events := []PixelEvent{
		{UserID: 1},
		{UserID: 2}, {UserID: 2}, {UserID: 2},
		{UserID: 3}, {UserID: 3},
		{UserID: 1}, // 1 and 3 tie at two placements each
	}

	top := topPlacers(events, 10)
	if len(top) != 3 {
		t.Fatalf("Should have 3 entries, got %d", len(top))
	}
	if top[0].UserID != 2 || top[0].Count != 3 {
		t.Errorf("First entry should be user 2 with 3, got %+v", top[0])
	}
	// Users 1 and 3 both have 2; user 1 placed first
	if top[1].UserID != 1 || top[2].UserID != 3 {
		t.Errorf("Ties should break by first placement order, got %+v", top[1:])
	}
}

// TestTopPlacersTruncation tests the topN cutoff
func TestTopPlacersTruncation(t *testing.T) {
	var events []PixelEvent
	for id := uint64(1); id <= 5; id++ {
		for n := uint64(0); n < id; n++ {
			events = append(events, PixelEvent{UserID: id})
		}
	}

	top := topPlacers(events, 2)
	if len(top) != 2 {
		t.Fatalf("Should truncate to 2 entries, got %d", len(top))
	}
	if top[0].UserID != 5 || top[1].UserID != 4 {
		t.Errorf("Should keep the two highest counts, got %+v", top)
	}
}

// TestTopPlacersEmpty tests the no-events case
func TestTopPlacersEmpty(t *testing.T) {
	if top := topPlacers(nil, 30); len(top) != 0 {
		t.Errorf("No events should yield an empty leaderboard, got %+v", top)
	}
}

// TestSameLocalDay tests calendar-date comparison
func TestSameLocalDay(t *testing.T) {
	now := time.Date(2026, 9, 1, 15, 0, 0, 0, time.Local)

	morning := time.Date(2026, 9, 1, 0, 0, 1, 0, time.Local)
	if !sameLocalDay(uint64(morning.UnixMilli()), now) {
		t.Error("Same calendar date should match regardless of hour")
	}

	yesterday := time.Date(2026, 8, 31, 23, 59, 59, 0, time.Local)
	if sameLocalDay(uint64(yesterday.UnixMilli()), now) {
		t.Error("The previous date should not match")
	}
}

// TestBucketCounts tests bucket alignment and the counting law: every
// in-window event lands in exactly one bucket
func TestBucketCounts(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	retention := 100 * time.Second // window start at 900_000
	width := 10 * time.Second

	events := []PixelEvent{
		{TimestampMs: 900_000},   // exactly at window start, first bucket
		{TimestampMs: 905_000},   // same bucket
		{TimestampMs: 910_000},   // second bucket boundary
		{TimestampMs: 999_999},   // last bucket
		{TimestampMs: 1_000_000}, // exactly now, still in window
		{TimestampMs: 899_999},   // before window, excluded
		{TimestampMs: 1_000_001}, // after now, excluded
	}

	buckets := bucketCounts(events, now, retention, width)

	if c := buckets[900_000]; c != 2 {
		t.Errorf("First bucket should count 2, got %d", c)
	}
	if c := buckets[910_000]; c != 1 {
		t.Errorf("Bucket at 910000 should count 1, got %d", c)
	}
	if c := buckets[990_000]; c != 1 {
		t.Errorf("Last bucket should count 1, got %d", c)
	}
	if c := buckets[1_000_000]; c != 1 {
		t.Errorf("Bucket starting at now should count 1, got %d", c)
	}

	total := 0
	for _, c := range buckets {
		total += c
	}
	if total != 5 {
		t.Errorf("Bucket totals should equal the 5 in-window events, got %d", total)
	}

	// All bucket keys align to windowStart + k*width
	for ts := range buckets {
		if (ts-900_000)%10_000 != 0 {
			t.Errorf("Bucket key %d should align to the bucket grid", ts)
		}
	}
}

// TestRecomputeSnapshot tests the full periodic rebuild
func TestRecomputeSnapshot(t *testing.T) {
	c := testCanvas(t)
	now := time.Now()
	nowMs := uint64(now.UnixMilli())

	c.Restore([]PixelEvent{
		{X: 0, Y: 0, Color: 0xff0000, UserID: 1, TimestampMs: nowMs - 3000},
		{X: 1, Y: 0, Color: 0xff0000, UserID: 1, TimestampMs: nowMs - 2000},
		{X: 2, Y: 0, Color: 0x00ff00, UserID: 2, TimestampMs: nowMs - 1000},
	})

	resolver := &fakeResolver{names: map[uint64]string{1: "alice"}}
	s := NewStats(c, resolver, func() int { return 7 }, testStatsOptions())
	s.Seed(c.HistorySnapshot())

	s.Recompute(now)
	snap := s.Snapshot()

	if snap.UniqueUserCount != 2 {
		t.Errorf("Should count 2 unique users, got %d", snap.UniqueUserCount)
	}
	if len(snap.TopPlacers) != 2 {
		t.Fatalf("Should have 2 leaderboard entries, got %d", len(snap.TopPlacers))
	}
	if snap.TopPlacers[0].UserID != 1 || snap.TopPlacers[0].Name != "alice" {
		t.Errorf("Top placer should be alice, got %+v", snap.TopPlacers[0])
	}
	// User 2 is unknown to the resolver and falls back to the raw ID
	if snap.TopPlacers[1].Name != "2" {
		t.Errorf("Unresolved user should show the raw decimal ID, got %q", snap.TopPlacers[1].Name)
	}

	if snap.ColorCounts[0xff0000] != 2 || snap.ColorCounts[0x00ff00] != 1 {
		t.Errorf("Color counts should be 2 red / 1 green, got %+v", snap.ColorCounts)
	}

	total := 0
	for _, n := range snap.PixelCountOverTime {
		total += n
	}
	if total != 3 {
		t.Errorf("Pixel series should cover all 3 events, got %d", total)
	}

	// One user-count sample at recompute time, value from connected()
	if len(snap.UserCountOverTime) != 1 {
		t.Fatalf("Should have 1 user-count sample, got %d", len(snap.UserCountOverTime))
	}
	if n := snap.UserCountOverTime[now.UnixMilli()]; n != 7 {
		t.Errorf("Sample should record 7 connected users, got %d", n)
	}
}

// TestRecomputeDayLeaderboard tests the current-day filter
func TestRecomputeDayLeaderboard(t *testing.T) {
	c := testCanvas(t)
	now := time.Now()
	nowMs := uint64(now.UnixMilli())
	twoDaysAgo := uint64(now.AddDate(0, 0, -2).UnixMilli())

	c.Restore([]PixelEvent{
		{X: 0, Y: 0, Color: 0xff0000, UserID: 1, TimestampMs: twoDaysAgo},
		{X: 1, Y: 0, Color: 0xff0000, UserID: 1, TimestampMs: twoDaysAgo},
		{X: 2, Y: 0, Color: 0x00ff00, UserID: 2, TimestampMs: nowMs - 1000},
	})

	s := NewStats(c, nil, nil, testStatsOptions())
	s.Recompute(now)
	snap := s.Snapshot()

	if len(snap.TopPlacers) != 2 || snap.TopPlacers[0].UserID != 1 {
		t.Errorf("All-time leaderboard should lead with user 1, got %+v", snap.TopPlacers)
	}
	if len(snap.TopPlacersDay) != 1 || snap.TopPlacersDay[0].UserID != 2 {
		t.Errorf("Daily leaderboard should only contain user 2, got %+v", snap.TopPlacersDay)
	}
}

// TestObservePersonalHistory tests the real-time per-user trail
func TestObservePersonalHistory(t *testing.T) {
	c := testCanvas(t)
	s := NewStats(c, nil, nil, testStatsOptions())

	ev1 := PixelEvent{X: 0, Y: 0, Color: 0xff0000, UserID: 5, TimestampMs: 100}
	ev2 := PixelEvent{X: 1, Y: 1, Color: 0x00ff00, UserID: 5, TimestampMs: 200}
	s.Observe(ev1)
	s.Observe(ev2)
	s.Observe(PixelEvent{X: 2, Y: 2, Color: 0xff0000, UserID: 9, TimestampMs: 300})

	history := s.PersonalHistory(5)
	if len(history) != 2 || history[0] != ev1 || history[1] != ev2 {
		t.Errorf("Personal history should hold user 5's events in order, got %+v", history)
	}

	// Returned slice is a copy
	history[0].Color = 0
	if s.PersonalHistory(5)[0].Color != 0xff0000 {
		t.Error("PersonalHistory should return a copy")
	}

	if got := s.PersonalHistory(42); len(got) != 0 {
		t.Errorf("Unknown user should have empty history, got %+v", got)
	}
}

// TestSeriesPersistLoad tests the user-count series round trip and
// retention pruning
func TestSeriesPersistLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "userCountOverTime.json")
	now := time.Now()

	// Preload a file with one stale and one fresh sample, keyed by
	// millisecond strings
	fresh := now.Add(-time.Hour).UnixMilli()
	stale := now.Add(-48 * time.Hour).UnixMilli()
	raw := map[string]int{
		jsonKey(fresh): 12,
		jsonKey(stale): 99,
	}
	data, _ := json.Marshal(raw)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Seed write failed: %v", err)
	}

	c := testCanvas(t)
	opts := testStatsOptions()
	opts.SeriesPath = path
	s := NewStats(c, nil, func() int { return 3 }, opts)

	if err := s.LoadSeries(); err != nil {
		t.Fatalf("LoadSeries failed: %v", err)
	}
	if got := s.Snapshot().UserCountOverTime[fresh]; got != 12 {
		t.Errorf("Loaded series should hold the fresh sample, got %d", got)
	}

	s.Recompute(now)
	snap := s.Snapshot()

	if _, ok := snap.UserCountOverTime[stale]; ok {
		t.Error("Samples beyond retention should be pruned")
	}
	if got := snap.UserCountOverTime[fresh]; got != 12 {
		t.Errorf("In-window sample should survive, got %d", got)
	}
	if got := snap.UserCountOverTime[now.UnixMilli()]; got != 3 {
		t.Errorf("New sample should record 3 connected users, got %d", got)
	}

	// The recompute also persisted the pruned series
	persisted, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Reading persisted series failed: %v", err)
	}
	var onDisk map[string]int
	if err := json.Unmarshal(persisted, &onDisk); err != nil {
		t.Fatalf("Persisted series should be valid JSON: %v", err)
	}
	if _, ok := onDisk[jsonKey(stale)]; ok {
		t.Error("Persisted series should not contain pruned samples")
	}
	if onDisk[jsonKey(now.UnixMilli())] != 3 {
		t.Error("Persisted series should contain the new sample")
	}
}

// TestLoadSeriesMissingFile tests that a missing series file is not an error
func TestLoadSeriesMissingFile(t *testing.T) {
	c := testCanvas(t)
	opts := testStatsOptions()
	opts.SeriesPath = filepath.Join(t.TempDir(), "absent.json")

	s := NewStats(c, nil, nil, opts)
	if err := s.LoadSeries(); err != nil {
		t.Errorf("Missing series file should load as empty, got %v", err)
	}
}

func jsonKey(ts int64) string {
	return strconv.FormatInt(ts, 10)
}
