// Package hub is the server's per-room fan-out: it tracks who is connected
// to each room, holds the room's live document, and broadcasts envelopes.
// Rooms exist in memory only while occupied; the document is persisted
// through the room store on every change.
package hub

import (
	"sync"

	"github.com/binaryash/code-editor/pkg/logging"
	"github.com/binaryash/code-editor/pkg/protocol"
	"github.com/binaryash/code-editor/pkg/storage"
)

// Conn is one participant's sending half. Implementations must bound their
// writes; a send error drops the member rather than blocking the room.
type Conn interface {
	Send(env protocol.Envelope) error
	Close() error
}

// RoomStore is the slice of the persistence layer the hub uses to seed and
// checkpoint room documents.
type RoomStore interface {
	GetRoom(roomID string) (*storage.Room, error)
	UpdateRoomCode(roomID, code string) error
}

type member struct {
	userID string
	conn   Conn
}

type room struct {
	code    string
	members []*member
}

func (r *room) roster() []string {
	users := make([]string, len(r.members))
	for i, m := range r.members {
		users[i] = m.userID
	}
	return users
}

// Hub fans envelopes out to room members.
type Hub struct {
	store  RoomStore
	logger *logging.Logger

	mu    sync.Mutex
	rooms map[string]*room
}

// New creates an empty hub. The store may be nil; rooms then live purely in
// memory.
func New(store RoomStore, logger *logging.Logger) *Hub {
	return &Hub{
		store:  store,
		logger: logger,
		rooms:  make(map[string]*room),
	}
}

// Join adds a connection to a room. The newcomer receives an init envelope
// with the room's current document and full roster; everyone else receives
// user_joined with the post-join roster.
func (h *Hub) Join(roomID, userID string, conn Conn) error {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	if !ok {
		code := ""
		if h.store != nil {
			if stored, err := h.store.GetRoom(roomID); err == nil {
				code = stored.Code
			}
		}
		r = &room{code: code}
		h.rooms[roomID] = r
	}

	m := &member{userID: userID, conn: conn}
	r.members = append(r.members, m)
	init := protocol.NewInit(r.code, r.roster())
	joined := protocol.NewRosterChange(protocol.TypeUserJoined, userID, r.roster())
	others := h.membersExcept(r, m)
	h.mu.Unlock()

	h.logger.Info(logging.CategoryRoom, "member_joined", "participant joined room", map[string]any{
		"room": roomID,
		"user": userID,
	})

	if err := conn.Send(init); err != nil {
		h.Leave(roomID, conn)
		return err
	}
	h.deliver(roomID, others, joined)
	return nil
}

// Leave removes a connection from a room. Remaining members receive
// user_left with the post-leave roster; an emptied room releases its
// in-memory state.
func (h *Hub) Leave(roomID string, conn Conn) {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}

	userID, removed := r.remove(conn)
	if !removed {
		h.mu.Unlock()
		return
	}

	if len(r.members) == 0 {
		delete(h.rooms, roomID)
		h.mu.Unlock()
		h.logger.Info(logging.CategoryRoom, "room_emptied", "last participant left, room state released", map[string]any{"room": roomID})
		return
	}

	left := protocol.NewRosterChange(protocol.TypeUserLeft, userID, r.roster())
	remaining := h.membersExcept(r, nil)
	h.mu.Unlock()

	h.logger.Info(logging.CategoryRoom, "member_left", "participant left room", map[string]any{
		"room": roomID,
		"user": userID,
	})
	h.deliver(roomID, remaining, left)
}

// CodeChange replaces the room's document and broadcasts code_update to
// every member except the author's connection. The new document is also
// checkpointed to the store.
func (h *Hub) CodeChange(roomID string, from Conn, code string) {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}

	r.code = code
	userID := "unknown"
	var author *member
	for _, m := range r.members {
		if m.conn == from {
			userID = m.userID
			author = m
			break
		}
	}
	update := protocol.NewCodeUpdate(code, userID)
	targets := h.membersExcept(r, author)
	h.mu.Unlock()

	h.deliver(roomID, targets, update)

	if h.store != nil {
		if err := h.store.UpdateRoomCode(roomID, code); err != nil {
			h.logger.Error(logging.CategoryRoom, "persist_failed", "room document not checkpointed", map[string]any{
				"room":  roomID,
				"error": err.Error(),
			})
		}
	}
}

// Users returns the roster of a room, empty when the room is unoccupied.
func (h *Hub) Users(roomID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	return r.roster()
}

func (r *room) remove(conn Conn) (string, bool) {
	for i, m := range r.members {
		if m.conn == conn {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return m.userID, true
		}
	}
	return "", false
}

func (h *Hub) membersExcept(r *room, exclude *member) []*member {
	targets := make([]*member, 0, len(r.members))
	for _, m := range r.members {
		if m == exclude {
			continue
		}
		targets = append(targets, m)
	}
	return targets
}

// deliver sends an envelope to each target, dropping members whose
// connection fails rather than letting one slow consumer stall the room.
func (h *Hub) deliver(roomID string, targets []*member, env protocol.Envelope) {
	for _, m := range targets {
		if err := m.conn.Send(env); err != nil {
			h.logger.Warn(logging.CategoryRoom, "member_dropped", "send failed, dropping participant", map[string]any{
				"room":  roomID,
				"user":  m.userID,
				"error": err.Error(),
			})
			m.conn.Close()
			h.Leave(roomID, m.conn)
		}
	}
}
