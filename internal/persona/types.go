// Package persona manages persona profiles: named system-prompt
// configurations with model settings and a decaying vitality score.
package persona

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the persona does not exist or is inactive.
var ErrNotFound = errors.New("persona not found")

// ErrNameTaken indicates a persona with the same name already exists.
var ErrNameTaken = errors.New("persona name already taken")

// VitalityFloor is the minimum vitality. Decay never drops a persona
// below it; a persona fades but is never fully gone.
const VitalityFloor = 0.1

// Persona is one profile row.
type Persona struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	DisplayName       string    `json:"display_name"`
	SystemPrompt      string    `json:"system_prompt"`
	Traits            []string  `json:"traits"`
	Model             string    `json:"model,omitempty"`       // provider model override, empty uses config default
	Temperature       *float32  `json:"temperature,omitempty"` // nil uses config default
	Vitality          float64   `json:"vitality"`
	Active            bool      `json:"active"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CreateParams holds the fields settable on creation.
type CreateParams struct {
	Name         string
	DisplayName  string
	SystemPrompt string
	Traits       []string
	Model        string
	Temperature  *float32
}

// ClearTemperature as an Update temperature removes the override; the
// persona falls back to the configured default.
const ClearTemperature float32 = -1

// UpdateParams holds the fields settable on update. Nil pointers leave
// the column unchanged. An empty Model or a negative Temperature clears
// the respective override.
type UpdateParams struct {
	DisplayName  *string
	SystemPrompt *string
	Traits       []string
	Model        *string
	Temperature  *float32
}
