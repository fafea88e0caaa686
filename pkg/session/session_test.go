package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binaryash/code-editor/pkg/channel"
	"github.com/binaryash/code-editor/pkg/editor"
	cperrors "github.com/binaryash/code-editor/pkg/errors"
	"github.com/binaryash/code-editor/pkg/inference"
	"github.com/binaryash/code-editor/pkg/protocol"
	"github.com/binaryash/code-editor/pkg/roomdir"
)

type fakeTransport struct {
	mu        sync.Mutex
	recv      chan protocol.Envelope
	sent      []protocol.Envelope
	connected bool
	recvOnce  sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		recv:      make(chan protocol.Envelope, 16),
		connected: true,
	}
}

func (f *fakeTransport) Send(ctx context.Context, env protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return cperrors.New(cperrors.ErrCodeTransportClosed, "transport closed")
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeTransport) Receive() <-chan protocol.Envelope { return f.recv }

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.recvOnce.Do(func() { close(f.recv) })
	return nil
}

// drop simulates a transport loss without a local Close.
func (f *fakeTransport) drop() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.recvOnce.Do(func() { close(f.recv) })
}

func (f *fakeTransport) deliver(env protocol.Envelope) {
	f.recv <- env
}

func (f *fakeTransport) sentEnvelopes() []protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Envelope(nil), f.sent...)
}

type fakeDirectory struct {
	rooms map[string]*roomdir.Room
}

func (d *fakeDirectory) GetRoom(ctx context.Context, roomID string) (*roomdir.Room, error) {
	room, ok := d.rooms[roomID]
	if !ok {
		return nil, cperrors.New(cperrors.ErrCodeSessionNotFound, "room not found")
	}
	return room, nil
}

func pythonDirectory(roomID string) *fakeDirectory {
	return &fakeDirectory{rooms: map[string]*roomdir.Room{
		roomID: {RoomID: roomID, Code: "", Language: "python"},
	}}
}

func dialTo(transport channel.Transport) DialFunc {
	return func(ctx context.Context, roomID, identity string) (channel.Transport, error) {
		return transport, nil
	}
}

func openSession(t *testing.T, roomID, identity string, transport *fakeTransport, mutate func(*Config)) *Session {
	t.Helper()

	cfg := Config{
		Directory: pythonDirectory(roomID),
		Dial:      dialTo(transport),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := Open(context.Background(), roomID, identity, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func waitForDocument(t *testing.T, s *Session, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Document() == want
	}, time.Second, 5*time.Millisecond)
}

func TestOpenUnknownRoomFails(t *testing.T) {
	dialed := false
	_, err := Open(context.Background(), "missing", "user_a", Config{
		Directory: pythonDirectory("other"),
		Dial: func(ctx context.Context, roomID, identity string) (channel.Transport, error) {
			dialed = true
			return newFakeTransport(), nil
		},
	})
	require.Error(t, err)
	assert.True(t, cperrors.IsCode(err, cperrors.ErrCodeSessionNotFound))
	assert.False(t, dialed, "dial must not happen when the room lookup fails")
}

func TestOpenRequiresCollaborators(t *testing.T) {
	_, err := Open(context.Background(), "r1", "user_a", Config{})
	require.Error(t, err)
	assert.True(t, cperrors.IsCode(err, cperrors.ErrCodeInvalidInput))
}

func TestInitAppliesSnapshotWholesale(t *testing.T) {
	transport := newFakeTransport()
	s := openSession(t, "r1", "user_a", transport, nil)

	assert.Empty(t, s.Document())
	assert.False(t, s.Ready())

	transport.deliver(protocol.NewInit("print('hi')", []string{"user_a", "user_b"}))

	waitForDocument(t, s, "print('hi')")
	assert.True(t, s.Ready())
	assert.Equal(t, []string{"user_a", "user_b"}, s.Participants())
}

func TestEchoSuppression(t *testing.T) {
	transport := newFakeTransport()
	s := openSession(t, "r1", "user_a", transport, nil)

	require.NoError(t, s.ApplyLocal(context.Background(), "x = 1", 5))

	transport.deliver(protocol.NewCodeUpdate("stale reflection", "user_a"))
	transport.deliver(protocol.NewCodeUpdate("y = 2", "user_b"))

	waitForDocument(t, s, "y = 2")
}

func TestLastWriterWinsBothOrders(t *testing.T) {
	t.Run("remote after local", func(t *testing.T) {
		transport := newFakeTransport()
		s := openSession(t, "r1", "user_a", transport, nil)

		require.NoError(t, s.ApplyLocal(context.Background(), "local", 5))
		transport.deliver(protocol.NewCodeUpdate("remote", "user_b"))

		waitForDocument(t, s, "remote")
	})

	t.Run("local after remote", func(t *testing.T) {
		transport := newFakeTransport()
		s := openSession(t, "r1", "user_a", transport, nil)

		transport.deliver(protocol.NewCodeUpdate("remote", "user_b"))
		waitForDocument(t, s, "remote")

		require.NoError(t, s.ApplyLocal(context.Background(), "local", 5))
		assert.Equal(t, "local", s.Document())
	})
}

func TestPresenceReplacedWholesale(t *testing.T) {
	transport := newFakeTransport()
	s := openSession(t, "r1", "user_a", transport, nil)

	transport.deliver(protocol.NewInit("", []string{"user_a"}))
	transport.deliver(protocol.NewRosterChange(protocol.TypeUserJoined, "user_b", []string{"user_a", "user_b"}))

	require.Eventually(t, func() bool {
		return len(s.Participants()) == 2
	}, time.Second, 5*time.Millisecond)

	transport.deliver(protocol.NewRosterChange(protocol.TypeUserLeft, "user_a", []string{"user_b"}))

	require.Eventually(t, func() bool {
		participants := s.Participants()
		return len(participants) == 1 && participants[0] == "user_b"
	}, time.Second, 5*time.Millisecond)
}

func TestApplyLocalBroadcastsTaggedEdit(t *testing.T) {
	transport := newFakeTransport()
	s := openSession(t, "r1", "user_a", transport, nil)

	require.NoError(t, s.ApplyLocal(context.Background(), "x = 1", 5))

	sent := transport.sentEnvelopes()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.TypeCodeChange, sent[0].Type)
	assert.Equal(t, "x = 1", sent[0].Code)
	assert.Equal(t, "user_a", sent[0].UserID)
}

func TestCloseReleasesEverything(t *testing.T) {
	transport := newFakeTransport()
	registry := editor.NewRegistry()
	client := &staticClient{suggestion: inference.Suggestion{Text: "pass", Confidence: 0.9}}

	s := openSession(t, "r1", "user_a", transport, func(cfg *Config) {
		cfg.Client = client
		cfg.Registry = registry
		cfg.DebounceWindow = 10 * time.Millisecond
	})

	require.NotNil(t, registry.TriggersFor("python"))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.False(t, transport.Connected())
	assert.Nil(t, registry.TriggersFor("python"))

	err := s.ApplyLocal(context.Background(), "late", 4)
	require.Error(t, err)
	assert.True(t, cperrors.IsCode(err, cperrors.ErrCodeSessionClosed))
}

func TestSuggestionProvidersServeSession(t *testing.T) {
	transport := newFakeTransport()
	registry := editor.NewRegistry()
	client := &staticClient{suggestion: inference.Suggestion{Text: "import numpy", Confidence: 0.75}}

	s := openSession(t, "r1", "user_a", transport, func(cfg *Config) {
		cfg.Client = client
		cfg.Registry = registry
		cfg.DebounceWindow = 10 * time.Millisecond
	})

	require.NoError(t, s.ApplyLocal(context.Background(), "import ", 7))

	// The inline path fills from the debounced pipeline.
	require.Eventually(t, func() bool {
		ghost, err := registry.Inline(context.Background(), "python", "import ", 7)
		return err == nil && ghost != nil && ghost.InsertText == "import numpy"
	}, time.Second, 5*time.Millisecond)

	// The pull path calls the service fresh.
	items, err := registry.Completions(context.Background(), "python", "import ", 7)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "import numpy", items[0].InsertText)
	assert.True(t, strings.Contains(items[0].Detail, "75% confidence"))
}

func TestTransportLossWithoutReconnectEndsSession(t *testing.T) {
	transport := newFakeTransport()
	disconnected := make(chan struct{})

	s := openSession(t, "r1", "user_a", transport, func(cfg *Config) {
		cfg.Hooks = Hooks{Disconnected: func() { close(disconnected) }}
	})

	transport.drop()

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("disconnect hook never fired")
	}
	assert.False(t, s.Connected())
}

func TestReconnectResyncsThroughFreshInit(t *testing.T) {
	first := newFakeTransport()
	second := newFakeTransport()
	transports := []*fakeTransport{first, second}

	var mu sync.Mutex
	dials := 0
	dial := func(ctx context.Context, roomID, identity string) (channel.Transport, error) {
		mu.Lock()
		defer mu.Unlock()
		transport := transports[dials]
		dials++
		return transport, nil
	}

	s, err := Open(context.Background(), "r1", "user_a", Config{
		Directory: pythonDirectory("r1"),
		Dial:      dial,
		Reconnect: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	first.deliver(protocol.NewInit("before", []string{"user_a"}))
	waitForDocument(t, s, "before")

	first.drop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dials == 2
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return !s.Ready() }, time.Second, 5*time.Millisecond)

	second.deliver(protocol.NewInit("after", []string{"user_a", "user_b"}))
	waitForDocument(t, s, "after")
	assert.True(t, s.Ready())
	assert.Equal(t, []string{"user_a", "user_b"}, s.Participants())
}

// TestTwoClientConvergence walks the canonical two-participant exchange: B
// joins A's room, B types, A converges, and B never re-applies its own echo.
func TestTwoClientConvergence(t *testing.T) {
	transportA := newFakeTransport()
	transportB := newFakeTransport()

	directory := &fakeDirectory{rooms: map[string]*roomdir.Room{
		"r1": {RoomID: "r1", Code: "", Language: "python"},
	}}

	open := func(identity string, transport *fakeTransport) *Session {
		s, err := Open(context.Background(), "r1", identity, Config{
			Directory: directory,
			Dial:      dialTo(transport),
		})
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}

	clientA := open("A", transportA)
	transportA.deliver(protocol.NewInit("", []string{"A"}))

	clientB := open("B", transportB)
	transportB.deliver(protocol.NewInit("", []string{"A", "B"}))
	transportA.deliver(protocol.NewRosterChange(protocol.TypeUserJoined, "B", []string{"A", "B"}))

	require.Eventually(t, func() bool {
		return clientB.Ready() && len(clientA.Participants()) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, clientB.ApplyLocal(context.Background(), "x=1", 3))

	// The server broadcasts B's edit to A; B gets a reflected copy. The
	// reflection carries mangled content so a wrongly applied echo is
	// observable.
	transportA.deliver(protocol.NewCodeUpdate("x=1", "B"))
	transportB.deliver(protocol.NewCodeUpdate("mangled echo", "B"))

	waitForDocument(t, clientA, "x=1")

	require.Never(t, func() bool {
		return clientB.Document() != "x=1"
	}, 100*time.Millisecond, 5*time.Millisecond)
}

type staticClient struct {
	suggestion inference.Suggestion
}

func (c *staticClient) Complete(ctx context.Context, req inference.CompletionRequest) (*inference.Suggestion, error) {
	s := c.suggestion
	return &s, nil
}

func TestNewIdentityShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewIdentity()
		if !strings.HasPrefix(id, "user_") {
			t.Fatalf("identity %q missing user_ prefix", id)
		}
		if len(id) != len("user_")+8 {
			t.Fatalf("identity %q has unexpected length", id)
		}
		seen[id] = true
	}
	if len(seen) != 100 {
		t.Fatalf("expected 100 distinct identities, got %d", len(seen))
	}
}
