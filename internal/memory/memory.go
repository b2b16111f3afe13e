// Package memory stores what a persona knows: canonical memories that
// persist until deactivated, and working memories that decay and expire.
//
// Both tiers carry pgvector embeddings for similarity search plus a
// full-text column for keyword search; retrieval combines the two with
// a freshness score.
package memory

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the memory does not exist.
var ErrNotFound = errors.New("memory not found")

// Search tuning.
const (
	MaxTopK           = 20
	MaxSearchQueryLen = 2000

	// Composite relevance weights for HybridSearch. Must sum to 1.0.
	searchWeightVector = 0.6
	searchWeightText   = 0.2
	searchWeightDecay  = 0.2

	// EmbedTimeout bounds the embedding call inside search; a slow
	// embedding service must not stall chat.
	EmbedTimeout = 10 * time.Second

	// MaxCanonicalPerPersona caps active canonical memories. Eviction
	// removes the least important, oldest rows beyond the cap.
	MaxCanonicalPerPersona = 500
)

// workingDecayLambda makes a working memory's decay score halve in
// roughly 12 hours.
const workingDecayLambda = 0.0578

// Memory is a canonical, persona-scoped fact.
type Memory struct {
	ID         uuid.UUID `json:"id"`
	PersonaID  uuid.UUID `json:"persona_id"`
	Content    string    `json:"content"`
	Importance int       `json:"importance"` // 1-10, default 5
	Active     bool      `json:"active"`
	Score      float64   `json:"score,omitempty"` // composite relevance, set by searches
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// WorkingMemory is a short-lived, session-flavored fact with a decay
// score and an expiry.
type WorkingMemory struct {
	ID         uuid.UUID  `json:"id"`
	PersonaID  uuid.UUID  `json:"persona_id"`
	SessionID  *uuid.UUID `json:"session_id,omitempty"`
	Content    string     `json:"content"`
	DecayScore float64    `json:"decay_score"`
	Score      float64    `json:"score,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Retrieved is a memory line ready for prompt assembly, from either
// tier.
type Retrieved struct {
	Content string
	Score   float64
	Working bool
}

// FormatRetrieved renders retrieved memories into a prompt-ready block
// under a character budget. Content is sanitized first; lines that
// would blow the budget are dropped.
func FormatRetrieved(memories []Retrieved, maxChars int) string {
	if len(memories) == 0 {
		return ""
	}

	var b strings.Builder
	for _, m := range memories {
		line := "- " + sanitizeContent(m.Content) + "\n"
		if b.Len()+len(line) > maxChars {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

// sanitizeContent prevents prompt injection when memory content is
// injected into the live chat prompt. Strips angle brackets and
// backticks, collapses newlines to spaces. The prompt-side section
// boundary is the primary containment; this is a second layer.
func sanitizeContent(s string) string {
	return strings.NewReplacer(
		"<", "",
		">", "",
		"`", "",
		"\n", " ",
		"\r", " ",
	).Replace(s)
}
