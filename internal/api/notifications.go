package api

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/freshtrack/internal/expiry"
	"github.com/erazemk/freshtrack/internal/model"
	"github.com/erazemk/freshtrack/internal/store"
)

// PassRunner runs one expiry notification pass.
type PassRunner interface {
	RunPass(ctx context.Context) (expiry.Result, error)
}

// NotificationsHandler serves the delivery log and on-demand passes.
type NotificationsHandler struct {
	DB     *sql.DB
	Passes PassRunner
}

type runResponse struct {
	Message string        `json:"message"`
	Result  expiry.Result `json:"result"`
}

// List handles GET /api/notifications.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	notifications, err := store.ListNotificationsByUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to list notifications", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	jsonResponse(w, http.StatusOK, notifications)
}

// Run handles POST /api/admin/notifications/run.
func (h *NotificationsHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.Passes == nil {
		jsonError(w, http.StatusServiceUnavailable, "notifications are not configured")
		return
	}

	result, err := h.Passes.RunPass(r.Context())
	switch {
	case errors.Is(err, expiry.ErrPassInProgress):
		jsonError(w, http.StatusConflict, "an expiry pass is already running")
		return
	case err != nil:
		slog.Error("on-demand expiry pass failed", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "expiry pass failed")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("on-demand expiry pass", "user", claims.Username, "sent", result.Sent, "failed", result.Failed)
	jsonResponse(w, http.StatusOK, runResponse{Message: "expiry pass complete", Result: result})
}
