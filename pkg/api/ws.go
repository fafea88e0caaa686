package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	cperrors "github.com/binaryash/code-editor/pkg/errors"
	"github.com/binaryash/code-editor/pkg/logging"
	"github.com/binaryash/code-editor/pkg/protocol"
)

const (
	// Close code sent when a client joins a room that does not exist.
	statusRoomNotFound = websocket.StatusCode(4004)

	wsWriteTimeout = 5 * time.Second
	wsReadLimit    = 1 << 20
)

// wsConn adapts one websocket to the hub's sending half. Writes are
// bounded so a stalled client gets dropped instead of blocking the room.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Send(env protocol.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusPolicyViolation, "connection dropped")
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "anonymous"
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     s.origins,
		InsecureSkipVerify: len(s.origins) == 0,
	})
	if err != nil {
		s.logger.Warn(logging.CategoryRoom, "ws_accept_failed", "websocket handshake failed", map[string]any{
			"room":  roomID,
			"error": err.Error(),
		})
		return
	}
	conn.SetReadLimit(wsReadLimit)

	if _, err := s.store.GetRoom(roomID); err != nil {
		if cperrors.IsCode(err, cperrors.ErrCodeSessionNotFound) {
			conn.Close(statusRoomNotFound, "room not found")
		} else {
			conn.Close(websocket.StatusInternalError, "room lookup failed")
		}
		return
	}

	metricSessionConnections.Inc()
	defer metricSessionConnections.Dec()

	wc := &wsConn{conn: conn}
	if err := s.hub.Join(roomID, userID, wc); err != nil {
		conn.Close(websocket.StatusInternalError, "join failed")
		return
	}
	defer s.hub.Leave(roomID, wc)

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}

		env, err := protocol.Parse(data)
		if err != nil {
			s.logger.Warn(logging.CategoryRoom, "envelope_dropped", "discarding malformed client envelope", map[string]any{
				"room":  roomID,
				"user":  userID,
				"error": err.Error(),
			})
			continue
		}

		// Only code_change is meaningful inbound; anything else is noise.
		if env.Type == protocol.TypeCodeChange {
			s.hub.CodeChange(roomID, wc, env.Code)
		}
	}

	conn.Close(websocket.StatusNormalClosure, "")
}
