// Package session persists chat sessions and their ordered messages.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the session does not exist.
var ErrNotFound = errors.New("session not found")

// Role identifies a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is one conversation with a persona.
type Session struct {
	ID           uuid.UUID `json:"id"`
	PersonaID    uuid.UUID `json:"persona_id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is one turn inside a session. SequenceNumber is strictly
// increasing per session and assigned by the store.
type Message struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"session_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Provider       string    `json:"provider,omitempty"` // which provider produced an assistant turn
	SequenceNumber int64     `json:"sequence_number"`
	CreatedAt      time.Time `json:"created_at"`
}

// Exchange is one user turn and the assistant reply appended together.
type Exchange struct {
	UserContent      string
	AssistantContent string
	Provider         string
}
