package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/freshtrack/internal/assistant"
	"github.com/erazemk/freshtrack/internal/store"
)

// AssistantHandler answers pantry questions about the caller's items.
type AssistantHandler struct {
	DB *sql.DB
}

type askRequest struct {
	Message string `json:"message"`
}

type askResponse struct {
	Reply string `json:"reply"`
}

// Ask handles POST /api/assistant.
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		jsonError(w, http.StatusBadRequest, "message required")
		return
	}

	items, err := store.ListItemsByUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to list items for assistant", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to load items")
		return
	}

	jsonResponse(w, http.StatusOK, askResponse{Reply: assistant.Reply(req.Message, items, time.Now())})
}
