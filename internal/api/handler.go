// Package api provides HTTP handlers for the admin API.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ashureev/manolo/internal/feed"
	"github.com/ashureev/manolo/internal/store"
	"github.com/go-chi/chi/v5"
)

// Handler provides common handler utilities.
type Handler struct {
	repo store.Repository
	hub  *feed.Hub
	ws   *feed.Handler
}

// NewHandler creates a new Handler with common dependencies. hub and ws may
// be nil when the live feed is disabled.
func NewHandler(repo store.Repository, hub *feed.Hub, ws *feed.Handler) *Handler {
	return &Handler{repo: repo, hub: hub, ws: ws}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// chatIDParam parses the {chatID} URL parameter. Group chats have negative ids.
func chatIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
