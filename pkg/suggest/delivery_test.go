package suggest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binaryash/code-editor/pkg/inference"
)

func TestPullDeliveryReturnsSingleCandidate(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{suggestion: &inference.Suggestion{Text: "numpy as np", Confidence: 0.75}},
	}}
	pull := NewPullDelivery(client, "python", 0.5, nil)

	items, err := pull.ProvideCompletions(context.Background(), "import ", 7)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "numpy as np", items[0].Label)
	assert.Equal(t, "numpy as np", items[0].InsertText)
	assert.Equal(t, "AI Suggestion (75% confidence)", items[0].Detail)
	assert.Equal(t, "0", items[0].SortText)

	// The pull path makes its own call; it never reads the debounced cache.
	req := client.lastRequest()
	assert.Equal(t, "import ", req.Code)
	assert.Equal(t, 7, req.CursorPosition)
}

func TestPullDeliveryGatesLowConfidence(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{suggestion: &inference.Suggestion{Text: "weak", Confidence: 0.5}},
	}}
	pull := NewPullDelivery(client, "python", 0.5, nil)

	items, err := pull.ProvideCompletions(context.Background(), "x", 1)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPullDeliverySwallowsFailures(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: errors.New("inference down")},
	}}
	pull := NewPullDelivery(client, "python", 0.5, nil)

	items, err := pull.ProvideCompletions(context.Background(), "x", 1)
	require.NoError(t, err, "inference failures surface as no candidates, not as errors")
	assert.Empty(t, items)
}

func TestInlineDeliveryReadsCache(t *testing.T) {
	cache := NewCache(0.5)
	inline := NewInlineDelivery(cache)

	// Empty cache: nothing to show.
	ghost, err := inline.ProvideInline(context.Background(), "x=1", 3)
	require.NoError(t, err)
	assert.Nil(t, ghost)

	cache.TrackRequest(1)
	require.True(t, cache.Accept(1, &inference.Suggestion{Text: "= 42", Confidence: 0.9}))

	ghost, err = inline.ProvideInline(context.Background(), "x ", 2)
	require.NoError(t, err)
	require.NotNil(t, ghost)
	assert.Equal(t, "= 42", ghost.InsertText)
	assert.Equal(t, 2, ghost.Offset, "ghost text anchors at the current cursor")
}

func TestDeliveryPathsCanDivergeTransiently(t *testing.T) {
	// The pull path answers from a live call while the cache still holds an
	// older debounced value. Both are individually gated; equality between
	// them is not guaranteed and not required.
	cache := NewCache(0.5)
	cache.TrackRequest(1)
	require.True(t, cache.Accept(1, &inference.Suggestion{Text: "debounced", Confidence: 0.9}))

	client := &fakeClient{responses: []fakeResponse{
		{suggestion: &inference.Suggestion{Text: "fresh", Confidence: 0.9}},
	}}
	pull := NewPullDelivery(client, "python", 0.5, nil)
	inline := NewInlineDelivery(cache)

	items, err := pull.ProvideCompletions(context.Background(), "doc", 3)
	require.NoError(t, err)
	require.Len(t, items, 1)

	ghost, err := inline.ProvideInline(context.Background(), "doc", 3)
	require.NoError(t, err)
	require.NotNil(t, ghost)

	assert.Equal(t, "fresh", items[0].InsertText)
	assert.Equal(t, "debounced", ghost.InsertText)
}
