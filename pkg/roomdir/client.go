// Package roomdir is the client side of the room directory: session lookup
// and creation against the collaboration server's HTTP API.
package roomdir

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	cperrors "github.com/binaryash/code-editor/pkg/errors"
)

const defaultTimeout = 10 * time.Second

// Room is the directory's record of one collaborative session.
type Room struct {
	RoomID   string `json:"roomId"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

// CreateRoomRequest asks the directory for a new session.
type CreateRoomRequest struct {
	Language string `json:"language"`
}

// Client talks to the room directory.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a directory client for the given server base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// CreateRoom allocates a new room for the given language.
func (c *Client) CreateRoom(ctx context.Context, language string) (*Room, error) {
	body, err := json.Marshal(CreateRoomRequest{Language: language})
	if err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeInvalidInput, "encoding create-room request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rooms", bytes.NewReader(body))
	if err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeInternal, "building create-room request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeTransport, "room directory unreachable").WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, directoryError(resp)
	}

	var room Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeTransport, "decoding create-room response")
	}
	return &room, nil
}

// GetRoom looks up an existing room. A missing room is a SESSION_NOT_FOUND
// error, which callers surface as a redirect back to the landing view.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rooms/"+roomID, nil)
	if err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeInternal, "building room lookup request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeTransport, "room directory unreachable").WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, cperrors.New(cperrors.ErrCodeSessionNotFound, "room not found").WithContext("room", roomID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, directoryError(resp)
	}

	var room Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeTransport, "decoding room lookup response")
	}
	return &room, nil
}

func directoryError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return cperrors.New(cperrors.ErrCodeTransport, "room directory returned non-success status").
		WithContext("status", resp.StatusCode).
		WithContext("body", string(payload)).
		WithRetryable(resp.StatusCode >= 500)
}
