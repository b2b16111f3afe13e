package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/anima-sh/anima/internal/persona"
)

type personaHandler struct {
	store  *persona.Store
	logger *slog.Logger
}

type createPersonaRequest struct {
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	SystemPrompt string   `json:"system_prompt"`
	Traits       []string `json:"traits,omitempty"`
	Model        string   `json:"model,omitempty"`
	Temperature  *float32 `json:"temperature,omitempty"`
}

// updatePersonaRequest carries PATCH semantics: absent fields are left
// unchanged. An empty model or a temperature of -1 clears the override
// back to the config default.
type updatePersonaRequest struct {
	DisplayName  *string  `json:"display_name,omitempty"`
	SystemPrompt *string  `json:"system_prompt,omitempty"`
	Traits       []string `json:"traits,omitempty"`
	Model        *string  `json:"model,omitempty"`
	Temperature  *float32 `json:"temperature,omitempty"`
}

// list handles GET /api/v1/personas.
func (h *personaHandler) list(w http.ResponseWriter, r *http.Request) {
	personas, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("listing personas", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list personas")
		return
	}
	if personas == nil {
		personas = []*persona.Persona{}
	}
	writeData(w, http.StatusOK, personas)
}

// create handles POST /api/v1/personas.
func (h *personaHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPersonaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.SystemPrompt == "" {
		writeError(w, http.StatusBadRequest, "invalid_persona", "name and system_prompt are required")
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Name
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		writeError(w, http.StatusBadRequest, "invalid_temperature", "temperature must be between 0.0 and 2.0")
		return
	}

	p, err := h.store.Create(r.Context(), persona.CreateParams{
		Name:         req.Name,
		DisplayName:  req.DisplayName,
		SystemPrompt: req.SystemPrompt,
		Traits:       req.Traits,
		Model:        req.Model,
		Temperature:  req.Temperature,
	})
	if err != nil {
		if errors.Is(err, persona.ErrNameTaken) {
			writeError(w, http.StatusConflict, "name_taken", "a persona with that name already exists")
			return
		}
		h.logger.Error("creating persona", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "failed to create persona")
		return
	}

	writeData(w, http.StatusCreated, p)
}

// get handles GET /api/v1/personas/{id}.
func (h *personaHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			writeError(w, http.StatusNotFound, "persona_not_found", "persona not found")
			return
		}
		h.logger.Error("getting persona", "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to get persona")
		return
	}
	writeData(w, http.StatusOK, p)
}

// update handles PATCH /api/v1/personas/{id}.
func (h *personaHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req updatePersonaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Temperature != nil && *req.Temperature != persona.ClearTemperature &&
		(*req.Temperature < 0 || *req.Temperature > 2) {
		writeError(w, http.StatusBadRequest, "invalid_temperature", "temperature must be between 0.0 and 2.0, or -1 to clear")
		return
	}

	p, err := h.store.Update(r.Context(), id, persona.UpdateParams{
		DisplayName:  req.DisplayName,
		SystemPrompt: req.SystemPrompt,
		Traits:       req.Traits,
		Model:        req.Model,
		Temperature:  req.Temperature,
	})
	if err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			writeError(w, http.StatusNotFound, "persona_not_found", "persona not found")
			return
		}
		h.logger.Error("updating persona", "error", err)
		writeError(w, http.StatusInternalServerError, "update_failed", "failed to update persona")
		return
	}
	writeData(w, http.StatusOK, p)
}

// remove handles DELETE /api/v1/personas/{id}. Deactivation only:
// sessions keep their persona reference.
func (h *personaHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			writeError(w, http.StatusNotFound, "persona_not_found", "persona not found")
			return
		}
		h.logger.Error("deactivating persona", "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete persona")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathUUID parses a UUID path value, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
