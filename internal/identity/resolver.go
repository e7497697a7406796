// Package identity adapts the external collaborators the canvas core
// consumes: display-name resolution and privilege/ban lookups.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultCacheTTL bounds how long a resolved name is reused.
	DefaultCacheTTL = 30 * time.Minute

	// MaxConcurrentLookups caps in-flight resolution requests.
	MaxConcurrentLookups = 3
)

// HTTPResolver resolves display names against an external identity
// service: POST {"userId":"<decimal>"} returns {"username":"<name>"}.
// Resolved names are cached with a TTL so leaderboard recomputation
// does not hammer the service.
type HTTPResolver struct {
	endpoint string
	client   *http.Client
	ttl      time.Duration
	sem      chan struct{}

	mu    sync.RWMutex
	cache map[uint64]cachedName
}

type cachedName struct {
	name      string
	fetchedAt time.Time
}

// NewHTTPResolver creates a resolver for the given endpoint.
// A ttl of 0 uses DefaultCacheTTL.
func NewHTTPResolver(endpoint string, ttl time.Duration) *HTTPResolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &HTTPResolver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		ttl:      ttl,
		sem:      make(chan struct{}, MaxConcurrentLookups),
		cache:    make(map[uint64]cachedName),
	}
}

// Resolve returns the display name for a user ID, from cache when fresh.
func (r *HTTPResolver) Resolve(ctx context.Context, userID uint64) (string, error) {
	r.mu.RLock()
	entry, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < r.ttl {
		return entry.name, nil
	}

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	name, err := r.fetch(ctx, userID)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache[userID] = cachedName{name: name, fetchedAt: time.Now()}
	r.mu.Unlock()
	return name, nil
}

func (r *HTTPResolver) fetch(ctx context.Context, userID uint64) (string, error) {
	body, err := json.Marshal(map[string]string{
		"userId": strconv.FormatUint(userID, 10),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identity service returned %d", resp.StatusCode)
	}

	var result struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Username, nil
}

// NoopResolver always fails, forcing callers onto their raw-ID
// fallback. Used when no identity endpoint is configured.
type NoopResolver struct{}

// Resolve always reports the resolver as unconfigured.
func (NoopResolver) Resolve(context.Context, uint64) (string, error) {
	return "", fmt.Errorf("identity resolution not configured")
}
