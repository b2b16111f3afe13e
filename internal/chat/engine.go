// Package chat orchestrates one conversation turn: persona resolution,
// history and memory retrieval, the provider cascade call, and
// persistence of the exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/anima-sh/anima/internal/memory"
	"github.com/anima-sh/anima/internal/persona"
	"github.com/anima-sh/anima/internal/provider"
	"github.com/anima-sh/anima/internal/session"
)

// ErrEmptyMessage indicates the user message was empty.
var ErrEmptyMessage = errors.New("message is empty")

// Completer is the provider cascade surface the engine needs.
type Completer interface {
	Complete(ctx context.Context, req provider.Request) (*provider.Result, error)
}

type personaStore interface {
	Get(ctx context.Context, id uuid.UUID) (*persona.Persona, error)
	GetByName(ctx context.Context, name string) (*persona.Persona, error)
	RefreshVitality(ctx context.Context, id uuid.UUID) error
}

type sessionStore interface {
	Create(ctx context.Context, personaID uuid.UUID, title string) (*session.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	RecentMessages(ctx context.Context, sessionID uuid.UUID, n int32) ([]*session.Message, error)
	AppendExchange(ctx context.Context, sessionID uuid.UUID, ex session.Exchange) error
}

type memoryStore interface {
	Retrieve(ctx context.Context, personaID uuid.UUID, query string, topK int) ([]memory.Retrieved, error)
	Capture(ctx context.Context, personaID uuid.UUID, sessionID *uuid.UUID, content string) error
}

// Config tunes the engine.
type Config struct {
	Temperature   float32
	MaxTokens     int
	HistoryWindow int32 // recent messages loaded per turn
	MemoryTopK    int
	MemoryBudget  int // prompt budget for the memory block, tokens
}

// Engine runs chat turns.
type Engine struct {
	personas personaStore
	sessions sessionStore
	memories memoryStore
	cascade  Completer
	cfg      Config
	logger   *slog.Logger
}

// NewEngine wires the engine.
func NewEngine(personas personaStore, sessions sessionStore, memories memoryStore,
	cascade Completer, cfg Config, logger *slog.Logger) *Engine {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 20
	}
	if cfg.MemoryTopK <= 0 {
		cfg.MemoryTopK = 5
	}
	if cfg.MemoryBudget <= 0 {
		cfg.MemoryBudget = 800
	}
	return &Engine{
		personas: personas,
		sessions: sessions,
		memories: memories,
		cascade:  cascade,
		cfg:      cfg,
		logger:   logger.With("component", "chat"),
	}
}

// Input identifies the persona (by id or name), an optional existing
// session, and the user message.
type Input struct {
	PersonaID   uuid.UUID // zero when PersonaName is used
	PersonaName string
	SessionID   *uuid.UUID // nil starts a new session
	Message     string
}

// Output is one completed chat turn.
type Output struct {
	Reply     string    `json:"reply"`
	SessionID uuid.UUID `json:"session_id"`
	Provider  string    `json:"provider"`
	Degraded  bool      `json:"degraded"`  // static fallback was served
	Persisted bool      `json:"persisted"` // false when the reply could not be saved
}

// Respond runs one chat turn. Once a reply exists, persistence errors
// never lose it: they are logged and surfaced as Persisted=false.
func (e *Engine) Respond(ctx context.Context, in Input) (*Output, error) {
	if in.Message == "" {
		return nil, ErrEmptyMessage
	}

	p, err := e.resolvePersona(ctx, in)
	if err != nil {
		return nil, err
	}

	sess, err := e.resolveSession(ctx, p, in.SessionID)
	if err != nil {
		return nil, err
	}

	history, err := e.sessions.RecentMessages(ctx, sess.ID, e.cfg.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	// Memory retrieval is best-effort: a degraded memory layer must not
	// block the conversation.
	retrieved, err := e.memories.Retrieve(ctx, p.ID, in.Message, e.cfg.MemoryTopK)
	if err != nil {
		e.logger.Warn("memory retrieval failed", "error", err, "persona_id", p.ID)
		retrieved = nil
	}

	req := e.buildRequest(p, retrieved, history, in.Message)

	result, err := e.cascade.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("completing: %w", err)
	}

	out := &Output{
		Reply:     result.Text,
		SessionID: sess.ID,
		Provider:  result.Provider,
		Degraded:  result.Degraded,
		Persisted: true,
	}

	if err := e.sessions.AppendExchange(ctx, sess.ID, session.Exchange{
		UserContent:      in.Message,
		AssistantContent: result.Text,
		Provider:         result.Provider,
	}); err != nil {
		e.logger.Error("persisting exchange failed", "error", err, "session_id", sess.ID)
		out.Persisted = false
		return out, nil
	}

	if err := e.personas.RefreshVitality(ctx, p.ID); err != nil {
		e.logger.Warn("vitality refresh failed", "error", err, "persona_id", p.ID)
	}

	// Degraded turns carry no real model output worth remembering.
	if !result.Degraded {
		sessID := sess.ID
		capture := fmt.Sprintf("user: %s\nassistant: %s", in.Message, result.Text)
		if err := e.memories.Capture(ctx, p.ID, &sessID, capture); err != nil {
			e.logger.Warn("working-memory capture failed", "error", err, "session_id", sess.ID)
		}
	}

	return out, nil
}

func (e *Engine) resolvePersona(ctx context.Context, in Input) (*persona.Persona, error) {
	if in.PersonaID != uuid.Nil {
		return e.personas.Get(ctx, in.PersonaID)
	}
	if in.PersonaName != "" {
		return e.personas.GetByName(ctx, in.PersonaName)
	}
	return nil, persona.ErrNotFound
}

func (e *Engine) resolveSession(ctx context.Context, p *persona.Persona, sessionID *uuid.UUID) (*session.Session, error) {
	if sessionID == nil {
		sess, err := e.sessions.Create(ctx, p.ID, "")
		if err != nil {
			return nil, fmt.Errorf("creating session: %w", err)
		}
		return sess, nil
	}

	sess, err := e.sessions.Get(ctx, *sessionID)
	if err != nil {
		return nil, err
	}
	if sess.PersonaID != p.ID {
		// A session belongs to one persona for its whole life.
		return nil, session.ErrNotFound
	}
	return sess, nil
}
