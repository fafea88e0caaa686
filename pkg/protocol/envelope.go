// Package protocol defines the JSON envelopes exchanged over a session
// channel. The wire format is shared by the client core and the server hub.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// EnvelopeType identifies the kind of envelope.
type EnvelopeType string

const (
	// TypeInit carries the initial document and full roster to a joiner.
	TypeInit EnvelopeType = "init"

	// TypeCodeUpdate carries a whole-document snapshot authored by a peer.
	TypeCodeUpdate EnvelopeType = "code_update"

	// TypeUserJoined and TypeUserLeft carry the full post-event roster.
	TypeUserJoined EnvelopeType = "user_joined"
	TypeUserLeft   EnvelopeType = "user_left"

	// TypeCodeChange is the outgoing-only variant carrying a local edit.
	TypeCodeChange EnvelopeType = "code_change"
)

// Envelope is a tagged message on the session channel. Documents are
// replaced wholesale: there is no per-character operation log.
type Envelope struct {
	Type      EnvelopeType `json:"type"`
	Code      string       `json:"code,omitempty"`
	UserID    string       `json:"userId,omitempty"`
	Users     []string     `json:"users,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
}

// NewCodeChange builds the outgoing envelope for a local edit.
func NewCodeChange(code, userID string) Envelope {
	return Envelope{
		Type:   TypeCodeChange,
		Code:   code,
		UserID: userID,
	}
}

// NewCodeUpdate builds the broadcast envelope for a peer edit.
func NewCodeUpdate(code, userID string) Envelope {
	return Envelope{
		Type:      TypeCodeUpdate,
		Code:      code,
		UserID:    userID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NewInit builds the first envelope sent to a joining participant.
func NewInit(code string, users []string) Envelope {
	return Envelope{
		Type:  TypeInit,
		Code:  code,
		Users: users,
	}
}

// NewRosterChange builds a join/leave envelope carrying the full roster.
func NewRosterChange(typ EnvelopeType, userID string, users []string) Envelope {
	return Envelope{
		Type:   typ,
		UserID: userID,
		Users:  users,
	}
}

// Marshal encodes the envelope as JSON.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Parse decodes and validates a raw envelope.
func Parse(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Validate checks the envelope carries the fields its type requires.
func (e Envelope) Validate() error {
	switch e.Type {
	case TypeInit:
		if e.Users == nil {
			return fmt.Errorf("init envelope missing roster")
		}
	case TypeCodeUpdate, TypeCodeChange:
		if e.UserID == "" {
			return fmt.Errorf("%s envelope missing author", e.Type)
		}
	case TypeUserJoined, TypeUserLeft:
		if e.Users == nil {
			return fmt.Errorf("%s envelope missing roster", e.Type)
		}
	case "":
		return fmt.Errorf("envelope missing type")
	default:
		return fmt.Errorf("unknown envelope type %q", e.Type)
	}
	return nil
}
