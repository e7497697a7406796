// Package canvas implements the collaborative pixel-canvas state
// machine: the raster, per-user cooldowns, the placement protocol, the
// durable event log and the stats aggregation engine.
package canvas

import (
	"log"
	"sync"
	"time"
)

// CooldownTickInterval is the fixed period of cooldown decay.
const CooldownTickInterval = time.Second

// Settings are the immutable canvas parameters fixed at initialization.
type Settings struct {
	Width            int      `json:"sizeX"`
	Height           int      `json:"sizeY"`
	MaxCooldownTicks int      `json:"maxCooldown"`
	Palette          []uint32 `json:"colors"`
}

// Listener receives every successful placement, synchronously, in
// placement order. Listeners must be fast and must not call back into
// the Canvas.
type Listener func(ev PixelEvent)

// Canvas is the single-writer placement engine. All mutations to the
// grid, the cooldown store and the event log are serialized through its
// lock; raster and stats reads take the read side.
type Canvas struct {
	mu        sync.RWMutex
	settings  Settings
	palette   map[uint32]struct{}
	grid      *PixelGrid
	cooldowns *CooldownStore
	eventLog  *EventLog
	history   []PixelEvent
	listeners []Listener

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
}

// New creates a canvas over the given durable event log.
func New(settings Settings, eventLog *EventLog) *Canvas {
	palette := make(map[uint32]struct{}, len(settings.Palette))
	for _, c := range settings.Palette {
		palette[c] = struct{}{}
	}

	return &Canvas{
		settings:  settings,
		palette:   palette,
		grid:      NewPixelGrid(settings.Width, settings.Height),
		cooldowns: NewCooldownStore(),
		eventLog:  eventLog,
		stopChan:  make(chan struct{}),
	}
}

// Settings returns the immutable canvas parameters.
func (c *Canvas) Settings() Settings {
	return c.settings
}

// RegisterListener adds a synchronous placement observer. Register all
// listeners before Start; registration is not safe against concurrent
// placements.
func (c *Canvas) RegisterListener(fn Listener) {
	c.listeners = append(c.listeners, fn)
}

// InBounds reports whether (x, y) addresses a cell.
func (c *Canvas) InBounds(x, y int) bool {
	return x >= 0 && x < c.settings.Width && y >= 0 && y < c.settings.Height
}

// Place runs the placement protocol for one pixel.
//
// Validation short-circuits at the first failure and returns
// (false, nil): bounds, then exact palette membership, then cooldown.
// Privileged callers bypass only the cooldown check.
//
// On success the event is appended to the durable log first - a failed
// append returns (false, err) with no state mutated, so memory never
// diverges from the log - then the grid, history and cooldown are
// updated and listeners are notified in placement order.
func (c *Canvas) Place(x, y int, color uint32, userID uint64, privileged bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.InBounds(x, y) {
		return false, nil
	}
	if _, ok := c.palette[color]; !ok {
		return false, nil
	}
	if !privileged && c.cooldowns.Get(userID).RemainingTicks > 0 {
		return false, nil
	}

	ev := PixelEvent{
		X:           uint16(x),
		Y:           uint16(y),
		Color:       color,
		UserID:      userID,
		TimestampMs: uint64(time.Now().UnixMilli()),
	}

	if err := c.eventLog.Append(ev); err != nil {
		return false, err
	}

	c.grid.Set(x, y, color, userID, ev.TimestampMs)
	c.history = append(c.history, ev)
	c.cooldowns.Reset(userID, c.settings.MaxCooldownTicks)

	for _, fn := range c.listeners {
		fn(ev)
	}

	return true, nil
}

// Restore applies an ordered event sequence to the grid and history
// without notifying listeners. Used at startup with the replayed log;
// last writer per cell wins by event order. Events outside the current
// bounds (a log recorded under larger dimensions) are skipped entirely.
func (c *Canvas) Restore(events []PixelEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	skipped := 0
	for _, ev := range events {
		if !c.InBounds(int(ev.X), int(ev.Y)) {
			skipped++
			continue
		}
		c.grid.Set(int(ev.X), int(ev.Y), ev.Color, ev.UserID, ev.TimestampMs)
		c.history = append(c.history, ev)
	}
	if skipped > 0 {
		log.Printf("⚠️ Skipped %d replayed events outside the %dx%d canvas",
			skipped, c.settings.Width, c.settings.Height)
	}
}

// Export returns the externally visible raster, 3 bytes per cell.
func (c *Canvas) Export() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.grid.Export()
}

// CellInfo returns the placement metadata for a cell.
// Out-of-range coordinates report a zero CellInfo.
func (c *Canvas) CellInfo(x, y int) CellInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.InBounds(x, y) {
		return CellInfo{}
	}
	return c.grid.Info(x, y)
}

// Cooldown returns the user's remaining cooldown ticks.
func (c *Canvas) Cooldown(userID uint64) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cooldowns.Remaining(userID)
}

// HistoryLen returns the number of recorded placements.
func (c *Canvas) HistoryLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.history)
}

// HistorySnapshot returns a copy of the full in-memory event history.
func (c *Canvas) HistorySnapshot() []PixelEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]PixelEvent, len(c.history))
	copy(out, c.history)
	return out
}

// TickCooldowns performs one cooldown decay step.
func (c *Canvas) TickCooldowns() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cooldowns.Tick()
}

// Start begins the cooldown tick loop.
func (c *Canvas) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.ticker = time.NewTicker(CooldownTickInterval)

	go func() {
		for {
			select {
			case <-c.ticker.C:
				c.TickCooldowns()
			case <-c.stopChan:
				return
			}
		}
	}()

	log.Printf("🎨 Canvas started: %dx%d, %d colors, %d tick cooldown",
		c.settings.Width, c.settings.Height, len(c.settings.Palette), c.settings.MaxCooldownTicks)
}

// Stop stops the tick loop.
func (c *Canvas) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	if c.ticker != nil {
		c.ticker.Stop()
	}
	close(c.stopChan)
	log.Println("🛑 Canvas stopped")
}
