package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/anima-sh/anima/internal/chat"
	"github.com/anima-sh/anima/internal/persona"
	"github.com/anima-sh/anima/internal/session"
)

type chatHandler struct {
	engine *chat.Engine
	logger *slog.Logger
}

type chatRequest struct {
	Persona   string  `json:"persona"`              // name or UUID
	SessionID *string `json:"session_id,omitempty"` // omit to start a new session
	Message   string  `json:"message"`
}

// send handles POST /api/v1/chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message_required", "message is required")
		return
	}
	if req.Persona == "" {
		writeError(w, http.StatusBadRequest, "persona_required", "persona is required")
		return
	}

	in := chat.Input{Message: req.Message}

	// Persona may be referenced by UUID or by name.
	if id, err := uuid.Parse(req.Persona); err == nil {
		in.PersonaID = id
	} else {
		in.PersonaName = req.Persona
	}

	if req.SessionID != nil {
		id, err := uuid.Parse(*req.SessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "session_id must be a UUID")
			return
		}
		in.SessionID = &id
	}

	out, err := h.engine.Respond(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, persona.ErrNotFound):
			writeError(w, http.StatusNotFound, "persona_not_found", "persona not found")
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "session_not_found", "session not found")
		case errors.Is(err, chat.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "message_required", "message is required")
		default:
			h.logger.Error("chat turn failed", "error", err)
			writeError(w, http.StatusInternalServerError, "chat_failed", "failed to generate a reply")
		}
		return
	}

	writeData(w, http.StatusOK, out)
}
