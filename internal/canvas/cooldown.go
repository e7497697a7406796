package canvas

// CooldownEntry is the per-user rate-limit state.
type CooldownEntry struct {
	RemainingTicks int
}

// CooldownStore holds per-user cooldown entries, created lazily on first
// access and never evicted (cardinality is bounded by participating
// users). It is not independently locked; the owning Canvas serializes
// all access through its own mutation discipline.
type CooldownStore struct {
	entries map[uint64]*CooldownEntry
}

// NewCooldownStore creates an empty store.
func NewCooldownStore() *CooldownStore {
	return &CooldownStore{entries: make(map[uint64]*CooldownEntry)}
}

// Get returns the user's entry, materializing a fresh one with zero
// remaining ticks on first access. The insert is explicit here so no
// other read path mutates the map.
func (s *CooldownStore) Get(userID uint64) *CooldownEntry {
	entry, ok := s.entries[userID]
	if !ok {
		entry = &CooldownEntry{}
		s.entries[userID] = entry
	}
	return entry
}

// Remaining returns the user's remaining ticks without materializing an
// entry. Unknown users report zero.
func (s *CooldownStore) Remaining(userID uint64) int {
	if entry, ok := s.entries[userID]; ok {
		return entry.RemainingTicks
	}
	return 0
}

// Tick decrements every entry by one, floored at zero.
// Called once per second by the canvas tick loop.
func (s *CooldownStore) Tick() {
	for _, entry := range s.entries {
		if entry.RemainingTicks > 0 {
			entry.RemainingTicks--
		}
	}
}

// Reset sets the user's remaining ticks, materializing the entry if needed.
func (s *CooldownStore) Reset(userID uint64, ticks int) {
	s.Get(userID).RemainingTicks = ticks
}
