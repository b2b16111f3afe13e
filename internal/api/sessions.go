package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/anima-sh/anima/internal/session"
)

type sessionHandler struct {
	store  *session.Store
	logger *slog.Logger
}

// list handles GET /api/v1/sessions with optional persona_id, limit,
// offset query parameters.
func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var personaID *uuid.UUID
	if raw := q.Get("persona_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_persona_id", "persona_id must be a UUID")
			return
		}
		personaID = &id
	}

	limit := queryInt(q.Get("limit"), 50)
	offset := queryInt(q.Get("offset"), 0)

	sessions, err := h.store.List(r.Context(), personaID, limit, offset)
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}
	writeData(w, http.StatusOK, sessions)
}

// get handles GET /api/v1/sessions/{id}.
func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	sess, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", "session not found")
			return
		}
		h.logger.Error("getting session", "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to get session")
		return
	}
	writeData(w, http.StatusOK, sess)
}

// messages handles GET /api/v1/sessions/{id}/messages.
func (h *sessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	// Session existence check first, so an unknown id is a 404 rather
	// than an empty list.
	if _, err := h.store.Get(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", "session not found")
			return
		}
		h.logger.Error("getting session", "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to get session")
		return
	}

	limit := queryInt(r.URL.Query().Get("limit"), 0)
	msgs, err := h.store.Messages(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("listing messages", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list messages")
		return
	}
	if msgs == nil {
		msgs = []*session.Message{}
	}
	writeData(w, http.StatusOK, msgs)
}

// remove handles DELETE /api/v1/sessions/{id}.
func (h *sessionHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", "session not found")
			return
		}
		h.logger.Error("deleting session", "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryInt parses a query integer, falling back on bad input.
func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
