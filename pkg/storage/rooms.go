package storage

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	cperrors "github.com/binaryash/code-editor/pkg/errors"
)

const defaultLanguage = "python"

// Room is one persisted collaborative session.
type Room struct {
	RoomID    string    `json:"roomId"`
	Code      string    `json:"code"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// newRoomID allocates a short shareable room identifier.
func newRoomID() string {
	return uuid.NewString()[:8]
}

// CreateRoom allocates a room with an empty document in the given language.
func (s *Store) CreateRoom(language string) (*Room, error) {
	language = strings.TrimSpace(language)
	if language == "" {
		language = defaultLanguage
	}

	now := time.Now().UTC()
	room := &Room{
		RoomID:    newRoomID(),
		Code:      "",
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(
		`INSERT INTO rooms (room_id, code, language, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		room.RoomID, room.Code, room.Language, room.CreatedAt, room.UpdatedAt,
	)
	if err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeStorageWrite, "creating room").WithContext("room", room.RoomID)
	}
	return room, nil
}

// GetRoom retrieves a room by its identifier. A missing room is a
// SESSION_NOT_FOUND error.
func (s *Store) GetRoom(roomID string) (*Room, error) {
	var room Room
	err := s.db.QueryRow(
		`SELECT room_id, code, language, created_at, updated_at FROM rooms WHERE room_id = ?`,
		roomID,
	).Scan(&room.RoomID, &room.Code, &room.Language, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cperrors.New(cperrors.ErrCodeSessionNotFound, "room not found").WithContext("room", roomID)
	}
	if err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeStorageRead, "loading room").WithContext("room", roomID)
	}
	return &room, nil
}

// UpdateRoomCode replaces a room's stored document wholesale.
func (s *Store) UpdateRoomCode(roomID, code string) error {
	result, err := s.db.Exec(
		`UPDATE rooms SET code = ?, updated_at = ? WHERE room_id = ?`,
		code, time.Now().UTC(), roomID,
	)
	if err != nil {
		return cperrors.Wrap(err, cperrors.ErrCodeStorageWrite, "updating room code").WithContext("room", roomID)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return cperrors.New(cperrors.ErrCodeSessionNotFound, "room not found").WithContext("room", roomID)
	}
	return nil
}
