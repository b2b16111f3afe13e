package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/anima-sh/anima/internal/memory"
)

type memoryHandler struct {
	store  *memory.Store
	logger *slog.Logger
}

type createMemoryRequest struct {
	PersonaID  string `json:"persona_id"`
	Content    string `json:"content"`
	Importance int    `json:"importance,omitempty"` // 1-10, defaults to 5
}

// create handles POST /api/v1/memories. Canonical memories only;
// working memory is captured by the chat engine, not over the API.
func (h *memoryHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createMemoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	personaID, err := uuid.Parse(req.PersonaID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_persona_id", "persona_id must be a UUID")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content_required", "content is required")
		return
	}

	if err := h.store.Remember(r.Context(), personaID, req.Content, req.Importance); err != nil {
		h.logger.Error("creating memory", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "failed to create memory")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// list handles GET /api/v1/memories?persona_id=...
func (h *memoryHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	personaID, err := uuid.Parse(q.Get("persona_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_persona_id", "persona_id query parameter is required")
		return
	}

	limit := queryInt(q.Get("limit"), 50)
	offset := queryInt(q.Get("offset"), 0)

	memories, err := h.store.List(r.Context(), personaID, limit, offset)
	if err != nil {
		h.logger.Error("listing memories", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list memories")
		return
	}
	if memories == nil {
		memories = []*memory.Memory{}
	}
	writeData(w, http.StatusOK, memories)
}

// search handles GET /api/v1/memories/search?persona_id=...&q=...
// mode=vector|keyword|hybrid selects the ranking; hybrid is default.
func (h *memoryHandler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	personaID, err := uuid.Parse(q.Get("persona_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_persona_id", "persona_id query parameter is required")
		return
	}

	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query_required", "q query parameter is required")
		return
	}

	topK := queryInt(q.Get("top_k"), 5)

	var results []*memory.Memory
	switch q.Get("mode") {
	case "vector":
		results, err = h.store.Search(r.Context(), personaID, query, topK)
	case "keyword":
		results, err = h.store.KeywordSearch(r.Context(), personaID, query, topK)
	case "", "hybrid":
		results, err = h.store.HybridSearch(r.Context(), personaID, query, topK)
	default:
		writeError(w, http.StatusBadRequest, "invalid_mode", "mode must be vector, keyword, or hybrid")
		return
	}
	if err != nil {
		h.logger.Error("searching memories", "error", err)
		writeError(w, http.StatusInternalServerError, "search_failed", "failed to search memories")
		return
	}
	if results == nil {
		results = []*memory.Memory{}
	}
	writeData(w, http.StatusOK, results)
}

// remove handles DELETE /api/v1/memories/{id}.
func (h *memoryHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			writeError(w, http.StatusNotFound, "memory_not_found", "memory not found")
			return
		}
		h.logger.Error("deleting memory", "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete memory")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
