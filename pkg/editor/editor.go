// Package editor defines the boundary consumed from the text-editor widget:
// cursor-to-offset translation and the two completion capabilities a session
// registers against it. The widget's rendering and layout are external; this
// package only carries the contracts the session core depends on.
package editor

import (
	"context"
	"strings"
	"sync"
)

// CompletionItem is a single candidate in the pull-based completion list.
type CompletionItem struct {
	Label      string `json:"label"`
	InsertText string `json:"insertText"`
	Detail     string `json:"detail,omitempty"`
	SortText   string `json:"sortText,omitempty"`
}

// InlineCompletion is zero-or-one ghost text item at the current cursor.
type InlineCompletion struct {
	InsertText string `json:"insertText"`
	Offset     int    `json:"offset"`
}

// PullProvider serves explicit completion requests at a position.
type PullProvider interface {
	ProvideCompletions(ctx context.Context, document string, offset int) ([]CompletionItem, error)
}

// InlineProvider serves the continuously polled ghost-text path.
type InlineProvider interface {
	ProvideInline(ctx context.Context, document string, offset int) (*InlineCompletion, error)
}

// Registration holds a registered capability for later cleanup.
type Registration struct {
	unregister func()
	once       sync.Once
}

// Unregister removes the capability. Safe to call more than once.
func (r *Registration) Unregister() {
	if r == nil {
		return
	}
	r.once.Do(r.unregister)
}

// Registry holds completion capabilities keyed by language tag. One registry
// is shared per widget; each session registers its providers on open and
// unregisters them on close.
type Registry struct {
	mu      sync.RWMutex
	pull    map[string]pullEntry
	inline  map[string]InlineProvider
	counter int
}

type pullEntry struct {
	provider PullProvider
	triggers []rune
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{
		pull:   make(map[string]pullEntry),
		inline: make(map[string]InlineProvider),
	}
}

// RegisterPull registers a pull-based provider for a language, replacing any
// existing one. Trigger characters control when the widget asks for a list.
func (r *Registry) RegisterPull(language string, provider PullProvider, triggers ...rune) *Registration {
	r.mu.Lock()
	r.pull[language] = pullEntry{provider: provider, triggers: triggers}
	r.mu.Unlock()

	return &Registration{unregister: func() {
		r.mu.Lock()
		if cur, ok := r.pull[language]; ok && cur.provider == provider {
			delete(r.pull, language)
		}
		r.mu.Unlock()
	}}
}

// RegisterInline registers an inline ghost-text provider for a language.
func (r *Registry) RegisterInline(language string, provider InlineProvider) *Registration {
	r.mu.Lock()
	r.inline[language] = provider
	r.mu.Unlock()

	return &Registration{unregister: func() {
		r.mu.Lock()
		if cur, ok := r.inline[language]; ok && cur == provider {
			delete(r.inline, language)
		}
		r.mu.Unlock()
	}}
}

// Completions asks the registered pull provider for candidates. A language
// with no provider yields an empty list.
func (r *Registry) Completions(ctx context.Context, language, document string, offset int) ([]CompletionItem, error) {
	r.mu.RLock()
	entry, ok := r.pull[language]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return entry.provider.ProvideCompletions(ctx, document, offset)
}

// Inline asks the registered inline provider for ghost text.
func (r *Registry) Inline(ctx context.Context, language, document string, offset int) (*InlineCompletion, error) {
	r.mu.RLock()
	provider, ok := r.inline[language]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return provider.ProvideInline(ctx, document, offset)
}

// TriggersFor returns the trigger characters of the pull provider for a
// language, if any.
func (r *Registry) TriggersFor(language string) []rune {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.pull[language]
	if !ok {
		return nil
	}
	return append([]rune(nil), entry.triggers...)
}

// OffsetAt translates a 1-based line/column cursor position into a byte
// offset against the document text, clamping out-of-range positions.
func OffsetAt(document string, line, column int) int {
	if line < 1 {
		line = 1
	}
	if column < 1 {
		column = 1
	}

	offset := 0
	rest := document
	for l := 1; l < line; l++ {
		idx := strings.IndexByte(rest, '\n')
		if idx < 0 {
			return len(document)
		}
		offset += idx + 1
		rest = rest[idx+1:]
	}

	lineLen := len(rest)
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		lineLen = idx
	}
	col := column - 1
	if col > lineLen {
		col = lineLen
	}
	return offset + col
}

// PositionAt is the inverse of OffsetAt: byte offset to 1-based line/column.
func PositionAt(document string, offset int) (line, column int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(document) {
		offset = len(document)
	}

	line, column = 1, 1
	for i := 0; i < offset; i++ {
		if document[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}
