package suggest

import (
	"sync"

	"github.com/binaryash/code-editor/pkg/inference"
)

// Cache holds the most recent accepted suggestion and exposes it to both
// delivery paths. Responses are applied only when they answer the most
// recently issued request, closing the reordering race between slow and
// fast completion calls.
type Cache struct {
	mu         sync.RWMutex
	threshold  float64
	current    *inference.Suggestion
	lastIssued uint64
}

// NewCache creates a cache with the given confidence threshold. A
// suggestion becomes visible only when its confidence is strictly above it.
func NewCache(threshold float64) *Cache {
	return &Cache{threshold: threshold}
}

// TrackRequest records that a completion request with this token is now the
// latest in flight. Called at debounce firing time, before the call goes out.
func (c *Cache) TrackRequest(token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token > c.lastIssued {
		c.lastIssued = token
	}
}

// Accept applies a completion response. Stale tokens are discarded without
// touching the cache. Responses that pass the token gate either store the
// suggestion (confidence above threshold, non-empty text) or clear the
// cache. Returns whether the suggestion was stored.
func (c *Cache) Accept(token uint64, s *inference.Suggestion) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.lastIssued {
		return false
	}

	if s == nil || s.Text == "" || s.Confidence <= c.threshold {
		c.current = nil
		return false
	}

	copied := *s
	c.current = &copied
	return true
}

// Clear drops the cached suggestion. Called the moment new local input
// invalidates it, ahead of whatever the next request returns.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
}

// Current returns the cached suggestion, if any.
func (c *Cache) Current() (inference.Suggestion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return inference.Suggestion{}, false
	}
	return *c.current, true
}

// Threshold returns the confidence gate shared by both delivery paths.
func (c *Cache) Threshold() float64 {
	return c.threshold
}
