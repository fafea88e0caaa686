package suggest

import (
	"context"
	"fmt"
	"math"

	"github.com/binaryash/code-editor/pkg/editor"
	"github.com/binaryash/code-editor/pkg/inference"
	"github.com/binaryash/code-editor/pkg/logging"
)

// The two delivery paths read from different cadences: the pull path makes
// its own completion call per request, the inline path polls the debounced
// cache. They can disagree for up to one debounce window plus one completion
// round-trip; that divergence is accepted and bounded, not eliminated.

// PullDelivery serves explicit completion-list requests with a fresh
// inference call each time.
type PullDelivery struct {
	client    CompletionClient
	language  string
	threshold float64
	logger    *logging.Logger
}

// NewPullDelivery creates the on-demand delivery path.
func NewPullDelivery(client CompletionClient, language string, threshold float64, logger *logging.Logger) *PullDelivery {
	return &PullDelivery{client: client, language: language, threshold: threshold, logger: logger}
}

// ProvideCompletions implements editor.PullProvider: one ranked candidate if
// the service is confident, else an empty list. Failures are logged and
// reported as no candidates.
func (d *PullDelivery) ProvideCompletions(ctx context.Context, document string, offset int) ([]editor.CompletionItem, error) {
	suggestion, err := d.client.Complete(ctx, inference.CompletionRequest{
		Code:           document,
		CursorPosition: offset,
		Language:       d.language,
	})
	if err != nil {
		d.logger.Warn(logging.CategoryInference, "complete_failed", "pull completion failed", map[string]any{
			"error": err.Error(),
		})
		return nil, nil
	}

	if suggestion == nil || suggestion.Text == "" || suggestion.Confidence <= d.threshold {
		return nil, nil
	}

	return []editor.CompletionItem{{
		Label:      suggestion.Text,
		InsertText: suggestion.Text,
		Detail:     fmt.Sprintf("AI Suggestion (%d%% confidence)", int(math.Round(suggestion.Confidence*100))),
		SortText:   "0",
	}}, nil
}

// InlineDelivery serves the continuously polled ghost-text path from the
// shared cache.
type InlineDelivery struct {
	cache *Cache
}

// NewInlineDelivery creates the passive delivery path over the cache.
func NewInlineDelivery(cache *Cache) *InlineDelivery {
	return &InlineDelivery{cache: cache}
}

// ProvideInline implements editor.InlineProvider: whatever the cache holds,
// anchored at the current cursor, or nothing.
func (d *InlineDelivery) ProvideInline(ctx context.Context, document string, offset int) (*editor.InlineCompletion, error) {
	suggestion, ok := d.cache.Current()
	if !ok {
		return nil, nil
	}
	return &editor.InlineCompletion{
		InsertText: suggestion.Text,
		Offset:     offset,
	}, nil
}
