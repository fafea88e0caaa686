package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binaryash/code-editor/pkg/inference"
)

func TestCacheConfidenceGate(t *testing.T) {
	c := NewCache(0.5)
	c.TrackRequest(1)

	// At the threshold is not enough; the gate is strict.
	stored := c.Accept(1, &inference.Suggestion{Text: "x", Confidence: 0.5})
	assert.False(t, stored)
	_, ok := c.Current()
	assert.False(t, ok)

	c.TrackRequest(2)
	stored = c.Accept(2, &inference.Suggestion{Text: "function_name():", Confidence: 0.85})
	require.True(t, stored)
	got, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "function_name():", got.Text)
}

func TestCacheLowConfidenceClearsPreviousValue(t *testing.T) {
	c := NewCache(0.5)
	c.TrackRequest(1)
	require.True(t, c.Accept(1, &inference.Suggestion{Text: "keep", Confidence: 0.9}))

	c.TrackRequest(2)
	assert.False(t, c.Accept(2, &inference.Suggestion{Text: "weak", Confidence: 0.3}))

	_, ok := c.Current()
	assert.False(t, ok, "a gated response must clear the cache, not leave the old value")
}

func TestCacheEmptySuggestionClears(t *testing.T) {
	c := NewCache(0.5)
	c.TrackRequest(1)
	require.True(t, c.Accept(1, &inference.Suggestion{Text: "keep", Confidence: 0.9}))

	c.TrackRequest(2)
	assert.False(t, c.Accept(2, &inference.Suggestion{Text: "", Confidence: 0.9}))
	_, ok := c.Current()
	assert.False(t, ok)
}

func TestCacheDiscardsStaleResponses(t *testing.T) {
	c := NewCache(0.5)

	// Request 1 goes out, then request 2 supersedes it.
	c.TrackRequest(1)
	c.TrackRequest(2)

	// Request 2's answer lands first.
	require.True(t, c.Accept(2, &inference.Suggestion{Text: "newer", Confidence: 0.9}))

	// Request 1's answer arrives late and must not overwrite.
	assert.False(t, c.Accept(1, &inference.Suggestion{Text: "older", Confidence: 0.99}))

	got, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "newer", got.Text)
}

func TestCacheClear(t *testing.T) {
	c := NewCache(0.5)
	c.TrackRequest(1)
	require.True(t, c.Accept(1, &inference.Suggestion{Text: "x", Confidence: 0.9}))

	c.Clear()
	_, ok := c.Current()
	assert.False(t, ok)
}

func TestCacheCopiesStoredSuggestion(t *testing.T) {
	c := NewCache(0.5)
	c.TrackRequest(1)

	s := &inference.Suggestion{Text: "original", Confidence: 0.9}
	require.True(t, c.Accept(1, s))
	s.Text = "mutated"

	got, _ := c.Current()
	assert.Equal(t, "original", got.Text)
}
