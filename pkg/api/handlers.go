package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	cperrors "github.com/binaryash/code-editor/pkg/errors"
	"github.com/binaryash/code-editor/pkg/logging"
)

type createRoomRequest struct {
	Language string `json:"language"`
}

type roomResponse struct {
	RoomID   string `json:"roomId"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

type autocompleteRequest struct {
	Code           string `json:"code"`
	CursorPosition int    `json:"cursorPosition"`
	Language       string `json:"language"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := s.store.CreateRoom(req.Language)
	if err != nil {
		s.logger.Error(logging.CategoryRoom, "room_create_failed", "could not create room", map[string]any{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "could not create room")
		return
	}

	metricRoomsCreated.Inc()
	s.logger.Info(logging.CategoryRoom, "room_created", "allocated new room", map[string]any{
		"room":     room.RoomID,
		"language": room.Language,
	})
	respondJSON(w, http.StatusOK, roomResponse{RoomID: room.RoomID, Code: room.Code, Language: room.Language})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	room, err := s.store.GetRoom(roomID)
	if err != nil {
		if cperrors.IsCode(err, cperrors.ErrCodeSessionNotFound) {
			respondError(w, http.StatusNotFound, "room not found")
			return
		}
		s.logger.Error(logging.CategoryRoom, "room_lookup_failed", "could not load room", map[string]any{
			"room":  roomID,
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "could not load room")
		return
	}

	respondJSON(w, http.StatusOK, roomResponse{RoomID: room.RoomID, Code: room.Code, Language: room.Language})
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	var req autocompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := s.engine.Suggest(req.Code, req.CursorPosition, req.Language)
	metricAutocompleteRequests.WithLabelValues(req.Language).Inc()

	respondJSON(w, http.StatusOK, result)
}
