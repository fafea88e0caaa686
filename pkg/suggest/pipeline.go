package suggest

import (
	"context"
	"time"

	"github.com/binaryash/code-editor/pkg/inference"
	"github.com/binaryash/code-editor/pkg/logging"
)

// CompletionClient is the slice of the inference client the pipeline needs.
type CompletionClient interface {
	Complete(ctx context.Context, req inference.CompletionRequest) (*inference.Suggestion, error)
}

// PipelineConfig configures one session's suggestion pipeline.
type PipelineConfig struct {
	Language            string
	DebounceWindow      time.Duration
	ConfidenceThreshold float64

	// RequestTimeout bounds each debounced completion call.
	RequestTimeout time.Duration

	Client CompletionClient
	Logger *logging.Logger
}

// Pipeline connects the debouncer to the inference client and the cache.
// One pipeline exists per session.
type Pipeline struct {
	debouncer *Debouncer
	cache     *Cache
	client    CompletionClient
	language  string
	timeout   time.Duration
	logger    *logging.Logger
}

// NewPipeline creates the pipeline and arms its debouncer.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	p := &Pipeline{
		cache:    NewCache(cfg.ConfidenceThreshold),
		client:   cfg.Client,
		language: cfg.Language,
		timeout:  timeout,
		logger:   cfg.Logger,
	}
	p.debouncer = NewDebouncer(cfg.DebounceWindow, p.fireCompletion)
	return p
}

// Notify records a local edit: the cached suggestion is invalidated right
// away and the debounce window restarts with this snapshot.
func (p *Pipeline) Notify(document string, cursor int) {
	p.cache.Clear()
	p.debouncer.Notify(document, cursor)
}

// Cache exposes the shared suggestion cache for the delivery paths.
func (p *Pipeline) Cache() *Cache {
	return p.cache
}

// Close cancels any pending firing. In-flight completion calls are not
// cancelled; their responses fail the token gate once a newer request fires.
func (p *Pipeline) Close() {
	p.debouncer.Stop()
}

func (p *Pipeline) fireCompletion(token uint64, document string, cursor int) {
	p.cache.TrackRequest(token)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		suggestion, err := p.client.Complete(ctx, inference.CompletionRequest{
			Code:           document,
			CursorPosition: cursor,
			Language:       p.language,
		})
		if err != nil {
			// Inference failures mean "no suggestion", never a user-facing error.
			p.logger.Warn(logging.CategoryInference, "complete_failed", "debounced completion failed", map[string]any{
				"error": err.Error(),
			})
			return
		}

		if p.cache.Accept(token, suggestion) {
			p.logger.Debug(logging.CategorySuggest, "cache_update", "stored debounced suggestion", map[string]any{
				"confidence": suggestion.Confidence,
			})
		}
	}()
}
