package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/freshtrack/internal/model"
	"github.com/erazemk/freshtrack/internal/store"
)

// ItemsHandler handles the caller's pantry items.
type ItemsHandler struct {
	DB *sql.DB
}

type itemRequest struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	BatchNumber  string `json:"batch_number"`
	Quantity     int    `json:"quantity"`
	PurchaseDate string `json:"purchase_date"`
	ExpiryDate   string `json:"expiry_date"`
}

type useResponse struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
	Removed  bool  `json:"removed"`
}

// parse validates the request and returns its dates.
func (req *itemRequest) parse() (purchase, expiry time.Time, msg string) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return purchase, expiry, "name required"
	}
	if req.Quantity < 1 {
		return purchase, expiry, "quantity must be at least 1"
	}
	if req.ExpiryDate == "" {
		return purchase, expiry, "expiry_date required"
	}

	var err error
	if expiry, err = model.ParseDate(req.ExpiryDate); err != nil {
		return purchase, expiry, "expiry_date must be YYYY-MM-DD"
	}
	if req.PurchaseDate != "" {
		if purchase, err = model.ParseDate(req.PurchaseDate); err != nil {
			return purchase, expiry, "purchase_date must be YYYY-MM-DD"
		}
	}
	return purchase, expiry, ""
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	items, err := store.ListItemsByUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	purchase, expiry, msg := req.parse()
	if msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, store.NewItem{
		UserID:       claims.UserID,
		Name:         req.Name,
		Category:     req.Category,
		BatchNumber:  req.BatchNumber,
		Quantity:     req.Quantity,
		PurchaseDate: purchase,
		ExpiryDate:   expiry,
	})
	if err != nil {
		slog.Error("failed to create item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	slog.Info("item created", "user", claims.Username, "item", item.Name, "expiry", model.FormatDate(item.ExpiryDate))
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil || item.UserID != claims.UserID {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	_, expiry, msg := req.parse()
	if msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := store.UpdateItem(r.Context(), h.DB, id, claims.UserID, store.ItemUpdate{
		Name:        req.Name,
		Category:    req.Category,
		BatchNumber: req.BatchNumber,
		Quantity:    req.Quantity,
		ExpiryDate:  expiry,
	})
	if errors.Is(err, store.ErrItemNotFound) {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		slog.Error("failed to update item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	slog.Info("item updated", "user", claims.Username, "item", item.Name)
	jsonResponse(w, http.StatusOK, item)
}

// Use handles POST /api/items/{id}/use.
func (h *ItemsHandler) Use(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	remaining, err := store.UseItem(r.Context(), h.DB, id, claims.UserID)
	if errors.Is(err, store.ErrItemNotFound) {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		slog.Error("failed to use item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to use item")
		return
	}

	jsonResponse(w, http.StatusOK, useResponse{ID: id, Quantity: remaining, Removed: remaining == 0})
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	err = store.DeleteItem(r.Context(), h.DB, id, claims.UserID)
	if errors.Is(err, store.ErrItemNotFound) {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		slog.Error("failed to delete item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	slog.Info("item deleted", "user", claims.Username, "item_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}
