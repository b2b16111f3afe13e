package api

import (
	"log/slog"
	"net/http"

	"github.com/anima-sh/anima/internal/config"
)

type configHandler struct {
	cfg    *config.Config
	logger *slog.Logger
}

// get handles GET /api/v1/config. Config.MarshalJSON masks secrets, so
// serving the struct directly never leaks credentials.
func (h *configHandler) get(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, h.cfg)
}
