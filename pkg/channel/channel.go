// Package channel owns one persistent bidirectional transport to a session
// endpoint. A channel is not restartable: after it closes, a new one must be
// dialed to rejoin, which also resyncs state through a fresh init envelope.
package channel

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	cperrors "github.com/binaryash/code-editor/pkg/errors"
	"github.com/binaryash/code-editor/pkg/logging"
	"github.com/binaryash/code-editor/pkg/protocol"
)

const (
	defaultDialTimeout = 10 * time.Second
	receiveBuffer      = 64

	pingInterval = 20 * time.Second
	pingTimeout  = 5 * time.Second
)

// Transport is the contract the session core holds on its channel. The
// concrete implementation is a websocket; tests substitute in-memory fakes.
type Transport interface {
	// Send writes one envelope to the session endpoint.
	Send(ctx context.Context, env protocol.Envelope) error

	// Receive returns the inbound envelope stream. The channel is closed
	// when the transport disconnects; it never reopens.
	Receive() <-chan protocol.Envelope

	// Connected reports the observable connectivity flag.
	Connected() bool

	// Close releases the transport.
	Close() error
}

// Options configures dialing.
type Options struct {
	// BaseURL is the ws:// or wss:// server root.
	BaseURL string

	// DialTimeout bounds the websocket handshake. Zero means the default.
	DialTimeout time.Duration

	Logger *logging.Logger
}

// Channel is a websocket-backed Transport scoped to one (room, identity).
type Channel struct {
	conn      *websocket.Conn
	recv      chan protocol.Envelope
	connected atomic.Bool
	logger    *logging.Logger

	cancel context.CancelFunc

	mu      sync.Mutex
	readErr error
	closed  bool
}

// Dial opens a channel to the session endpoint for (roomID, identity).
func Dial(ctx context.Context, roomID, identity string, opts Options) (*Channel, error) {
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	endpoint, err := sessionURL(opts.BaseURL, roomID, identity)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, endpoint, nil)
	if err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeTransport, "channel open failed").
			WithContext("room", roomID).
			WithRetryable(true)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	ch := &Channel{
		conn:   conn,
		recv:   make(chan protocol.Envelope, receiveBuffer),
		logger: opts.Logger,
		cancel: runCancel,
	}
	ch.connected.Store(true)
	ch.logger.Info(logging.CategoryChannel, "channel_open", "connected to session endpoint", map[string]any{"room": roomID, "user": identity})

	go ch.readLoop(runCtx)
	go ch.pingLoop(runCtx)

	return ch, nil
}

func sessionURL(baseURL, roomID, identity string) (string, error) {
	base := strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return "", cperrors.New(cperrors.ErrCodeInvalidInput, "channel base URL must not be empty")
	}
	if roomID == "" {
		return "", cperrors.New(cperrors.ErrCodeInvalidInput, "room id must not be empty")
	}
	if identity == "" {
		return "", cperrors.New(cperrors.ErrCodeInvalidInput, "identity must not be empty")
	}
	return fmt.Sprintf("%s/ws/%s?user_id=%s", base, url.PathEscape(roomID), url.QueryEscape(identity)), nil
}

func (c *Channel) readLoop(ctx context.Context) {
	defer close(c.recv)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			if !closed {
				c.readErr = cperrors.Wrap(err, cperrors.ErrCodeTransport, "channel read failed")
			}
			c.mu.Unlock()

			c.connected.Store(false)
			if !closed {
				c.logger.Error(logging.CategoryChannel, "channel_lost", "transport error on receive", map[string]any{"error": err.Error()})
			}
			return
		}

		env, err := protocol.Parse(data)
		if err != nil {
			c.logger.Warn(logging.CategoryChannel, "envelope_dropped", "discarding malformed envelope", map[string]any{"error": err.Error()})
			continue
		}

		select {
		case c.recv <- env:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Channel) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}

// Send writes one envelope to the session endpoint.
func (c *Channel) Send(ctx context.Context, env protocol.Envelope) error {
	if !c.connected.Load() {
		return cperrors.New(cperrors.ErrCodeTransportClosed, "channel is disconnected")
	}

	data, err := env.Marshal()
	if err != nil {
		return cperrors.Wrap(err, cperrors.ErrCodeInvalidInput, "encoding envelope")
	}

	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		c.connected.Store(false)
		return cperrors.Wrap(err, cperrors.ErrCodeTransport, "channel write failed")
	}
	return nil
}

// Receive returns the inbound envelope stream.
func (c *Channel) Receive() <-chan protocol.Envelope {
	return c.recv
}

// Connected reports whether the transport is still up.
func (c *Channel) Connected() bool {
	return c.connected.Load()
}

// Err returns the terminal read error, if the channel failed rather than
// being closed locally.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Close releases the transport. Safe to call on every exit path.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.connected.Store(false)
	c.cancel()
	err := c.conn.Close(websocket.StatusNormalClosure, "session closed")
	c.logger.Info(logging.CategoryChannel, "channel_close", "channel released", nil)
	if err != nil && c.Err() == nil {
		return cperrors.Wrap(err, cperrors.ErrCodeTransport, "closing channel")
	}
	return nil
}
