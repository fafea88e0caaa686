// Package session carries the per-session orchestration: one Session owns
// the shared document, the presence directory, the channel, and the
// suggestion pipeline for a single open document. Multiple sessions can run
// in one process; no state is shared between them.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/binaryash/code-editor/pkg/channel"
	"github.com/binaryash/code-editor/pkg/editor"
	cperrors "github.com/binaryash/code-editor/pkg/errors"
	"github.com/binaryash/code-editor/pkg/logging"
	"github.com/binaryash/code-editor/pkg/protocol"
	"github.com/binaryash/code-editor/pkg/roomdir"
	"github.com/binaryash/code-editor/pkg/suggest"
)

const (
	defaultDebounceWindow      = 600 * time.Millisecond
	defaultConfidenceThreshold = 0.5
	rejoinTimeout              = time.Minute
)

// Directory is the room lookup the orchestrator performs before joining.
type Directory interface {
	GetRoom(ctx context.Context, roomID string) (*roomdir.Room, error)
}

// DialFunc establishes the session channel. Production wiring dials a
// websocket (with or without retry); tests substitute in-memory transports.
type DialFunc func(ctx context.Context, roomID, identity string) (channel.Transport, error)

// Hooks are optional observer callbacks. They run on the session's receive
// goroutine and must not block.
type Hooks struct {
	// DocumentReplaced fires after a remote envelope replaced the document.
	// The author is empty for the initial snapshot.
	DocumentReplaced func(code, author string)

	// RosterChanged fires after any envelope rebuilt the presence directory.
	RosterChanged func(users []string)

	// Disconnected fires when the channel is lost other than by Close.
	Disconnected func()
}

// Config wires one session's collaborators.
type Config struct {
	Directory Directory
	Dial      DialFunc

	// Client feeds the suggestion pipeline and the pull delivery path.
	// Nil disables suggestions for the session.
	Client suggest.CompletionClient

	// Registry receives the session's completion providers. Nil skips
	// editor registration.
	Registry *editor.Registry

	DebounceWindow      time.Duration
	ConfidenceThreshold float64
	RequestTimeout      time.Duration

	// Reconnect redials through Dial after an abnormal transport loss.
	// Off by default: a lost channel ends the session, matching the
	// observed behavior. Rejoining replays a fresh init envelope, which
	// is the resync.
	Reconnect bool

	Logger *logging.Logger
	Hooks  Hooks
}

// Session is the orchestrator for one open document. It is the sole writer
// of the document and the presence directory.
type Session struct {
	roomID   string
	identity string
	language string

	dial      DialFunc
	reconnect bool
	logger    *logging.Logger
	hooks     Hooks

	pipeline      *suggest.Pipeline
	registrations []*editor.Registration

	mu        sync.RWMutex
	transport channel.Transport
	code      string
	presence  *Presence
	ready     bool

	closed atomic.Bool
	done   chan struct{}
}

// Open joins an existing room as the given identity. The room must exist in
// the directory; a missing room fails with SESSION_NOT_FOUND, which callers
// surface as a redirect back to the landing view. The document and presence
// directory stay empty until the init envelope arrives.
func Open(ctx context.Context, roomID, identity string, cfg Config) (*Session, error) {
	if cfg.Directory == nil || cfg.Dial == nil {
		return nil, cperrors.New(cperrors.ErrCodeInvalidInput, "session config needs a directory and a dial function")
	}
	if identity == "" {
		return nil, cperrors.New(cperrors.ErrCodeInvalidInput, "identity must not be empty")
	}

	room, err := cfg.Directory.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	transport, err := cfg.Dial(ctx, roomID, identity)
	if err != nil {
		return nil, err
	}

	s := &Session{
		roomID:    roomID,
		identity:  identity,
		language:  room.Language,
		dial:      cfg.Dial,
		reconnect: cfg.Reconnect,
		logger:    cfg.Logger,
		hooks:     cfg.Hooks,
		transport: transport,
		presence:  newPresence(),
		done:      make(chan struct{}),
	}

	if cfg.Client != nil {
		window := cfg.DebounceWindow
		if window <= 0 {
			window = defaultDebounceWindow
		}
		threshold := cfg.ConfidenceThreshold
		if threshold <= 0 {
			threshold = defaultConfidenceThreshold
		}

		s.pipeline = suggest.NewPipeline(suggest.PipelineConfig{
			Language:            room.Language,
			DebounceWindow:      window,
			ConfidenceThreshold: threshold,
			RequestTimeout:      cfg.RequestTimeout,
			Client:              cfg.Client,
			Logger:              cfg.Logger,
		})

		if cfg.Registry != nil {
			pull := suggest.NewPullDelivery(cfg.Client, room.Language, threshold, cfg.Logger)
			inline := suggest.NewInlineDelivery(s.pipeline.Cache())
			s.registrations = append(s.registrations,
				cfg.Registry.RegisterPull(room.Language, pull, '.', ' '),
				cfg.Registry.RegisterInline(room.Language, inline),
			)
		}
	}

	s.logger.Info(logging.CategorySession, "session_open", "joined collaborative session", map[string]any{
		"room":     roomID,
		"user":     identity,
		"language": room.Language,
	})

	go s.run()
	return s, nil
}

// RoomID returns the session's room identifier.
func (s *Session) RoomID() string { return s.roomID }

// Identity returns the local participant identity.
func (s *Session) Identity() string { return s.identity }

// Language returns the room's language tag.
func (s *Session) Language() string { return s.language }

// Document returns the current shared document text.
func (s *Session) Document() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code
}

// Participants returns the current roster.
func (s *Session) Participants() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presence.Participants()
}

// Ready reports whether the init envelope has arrived.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Connected reports the channel's connectivity flag.
func (s *Session) Connected() bool {
	s.mu.RLock()
	transport := s.transport
	s.mu.RUnlock()
	return !s.closed.Load() && transport.Connected()
}

// ApplyLocal applies a local edit: the document is replaced optimistically,
// the edit is broadcast tagged with the local identity, and the suggestion
// debounce window restarts from this snapshot.
func (s *Session) ApplyLocal(ctx context.Context, code string, cursor int) error {
	if s.closed.Load() {
		return cperrors.New(cperrors.ErrCodeSessionClosed, "session is closed").WithContext("room", s.roomID)
	}

	s.mu.Lock()
	s.code = code
	transport := s.transport
	s.mu.Unlock()

	err := transport.Send(ctx, protocol.NewCodeChange(code, s.identity))
	if err != nil {
		s.logger.Error(logging.CategorySession, "broadcast_failed", "local edit not broadcast", map[string]any{
			"room":  s.roomID,
			"error": err.Error(),
		})
	}

	if s.pipeline != nil {
		s.pipeline.Notify(code, cursor)
	}
	return err
}

// Close tears the session down: completion providers are unregistered, the
// pipeline stops, and the channel is released. Safe on every exit path and
// idempotent.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		<-s.done
		return nil
	}

	for _, reg := range s.registrations {
		reg.Unregister()
	}
	if s.pipeline != nil {
		s.pipeline.Close()
	}

	s.mu.Lock()
	transport := s.transport
	s.mu.Unlock()
	err := transport.Close()

	<-s.done
	s.logger.Info(logging.CategorySession, "session_close", "session released", map[string]any{"room": s.roomID})
	return err
}

func (s *Session) run() {
	defer close(s.done)

	for {
		s.mu.RLock()
		transport := s.transport
		s.mu.RUnlock()

		for env := range transport.Receive() {
			s.applyRemote(env)
		}

		if s.closed.Load() {
			return
		}

		s.logger.Warn(logging.CategorySession, "channel_lost", "session channel disconnected", map[string]any{"room": s.roomID})
		if s.hooks.Disconnected != nil {
			s.hooks.Disconnected()
		}

		if !s.reconnect {
			return
		}
		if !s.rejoin() {
			return
		}
	}
}

func (s *Session) rejoin() bool {
	ctx, cancel := context.WithTimeout(context.Background(), rejoinTimeout)
	transport, err := s.dial(ctx, s.roomID, s.identity)
	cancel()
	if err != nil {
		s.logger.Error(logging.CategorySession, "rejoin_failed", "could not re-establish session channel", map[string]any{
			"room":  s.roomID,
			"error": err.Error(),
		})
		return false
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		transport.Close()
		return false
	}
	s.transport = transport
	s.ready = false
	s.mu.Unlock()

	s.logger.Info(logging.CategorySession, "session_rejoin", "channel re-established, awaiting resync", map[string]any{"room": s.roomID})
	return true
}

// applyRemote is the echo-filter gate and the only remote mutation path for
// the document and the presence directory. The document always reflects the
// last locally applied edit or the last non-echo remote edit, whichever was
// later in receipt order.
func (s *Session) applyRemote(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeInit:
		s.mu.Lock()
		s.code = env.Code
		s.presence.Replace(env.Users)
		s.ready = true
		s.mu.Unlock()

		s.logger.Info(logging.CategorySession, "session_init", "received initial snapshot", map[string]any{
			"room":         s.roomID,
			"participants": len(env.Users),
		})
		if s.hooks.RosterChanged != nil {
			s.hooks.RosterChanged(append([]string(nil), env.Users...))
		}
		if s.hooks.DocumentReplaced != nil {
			s.hooks.DocumentReplaced(env.Code, "")
		}

	case protocol.TypeCodeUpdate:
		if env.UserID == s.identity {
			// Reflection of an edit this client already applied optimistically.
			s.logger.Debug(logging.CategorySession, "echo_dropped", "discarded reflected local edit", map[string]any{"room": s.roomID})
			return
		}

		s.mu.Lock()
		s.code = env.Code
		s.mu.Unlock()

		if s.hooks.DocumentReplaced != nil {
			s.hooks.DocumentReplaced(env.Code, env.UserID)
		}

	case protocol.TypeUserJoined, protocol.TypeUserLeft:
		s.mu.Lock()
		s.presence.Replace(env.Users)
		s.mu.Unlock()

		s.logger.Info(logging.CategoryPresence, "roster_replaced", "presence directory rebuilt", map[string]any{
			"room":         s.roomID,
			"event":        string(env.Type),
			"participants": len(env.Users),
		})
		if s.hooks.RosterChanged != nil {
			s.hooks.RosterChanged(append([]string(nil), env.Users...))
		}

	default:
		s.logger.Warn(logging.CategorySession, "envelope_ignored", "unexpected inbound envelope type", map[string]any{
			"room": s.roomID,
			"type": string(env.Type),
		})
	}
}
