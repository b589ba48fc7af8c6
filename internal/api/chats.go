package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/manolo/internal/domain"
	"github.com/ashureev/manolo/internal/feed"
	"github.com/go-chi/chi/v5"
)

// ChatView is the admin representation of one chat.
type ChatView struct {
	ChatID    int64         `json:"chat_id"`
	Messages  int           `json:"messages"`
	Frequency int           `json:"frequency"`
	Stickers  []StickerView `json:"stickers"`
}

// StickerView is one sticker of a chat and how often it was seen.
type StickerView struct {
	FileID string `json:"file_id"`
	Count  int    `json:"count"`
}

type frequencyRequest struct {
	Frequency *int `json:"frequency"`
}

// RegisterRoutes registers the chat admin routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chats/{chatID}", func(r chi.Router) {
		r.Get("/", h.GetChat)
		r.Put("/frequency", h.SetFrequency)
		r.Get("/feed", h.RecentFeed)
	})
	if h.ws != nil {
		r.Get("/ws/chats/{chatID}/feed", h.FeedSocket)
	}
}

// GetChat returns the learned message count, frequency and stickers of a chat.
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	ctx := r.Context()

	count, err := h.repo.CountMessages(ctx, chatID)
	if err != nil {
		slog.Error("Failed to count messages", "error", err, "chat_id", chatID)
		Error(w, http.StatusInternalServerError, "failed to load chat")
		return
	}
	freq, err := h.repo.Frequency(ctx, chatID)
	if err != nil {
		slog.Error("Failed to load frequency", "error", err, "chat_id", chatID)
		Error(w, http.StatusInternalServerError, "failed to load chat")
		return
	}
	stickers, err := h.repo.Stickers(ctx, chatID)
	if err != nil {
		slog.Error("Failed to list stickers", "error", err, "chat_id", chatID)
		Error(w, http.StatusInternalServerError, "failed to load chat")
		return
	}

	view := ChatView{ChatID: chatID, Messages: count, Frequency: freq, Stickers: make([]StickerView, 0, len(stickers))}
	for _, s := range stickers {
		view.Stickers = append(view.Stickers, StickerView{FileID: s.FileID, Count: s.Count})
	}
	JSON(w, http.StatusOK, view)
}

// SetFrequency updates a chat's speaking frequency.
func (h *Handler) SetFrequency(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid chat id")
		return
	}

	var req frequencyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil || req.Frequency == nil {
		Error(w, http.StatusBadRequest, "body must be {\"frequency\": <positive integer>}")
		return
	}

	if err := h.repo.SetFrequency(r.Context(), chatID, *req.Frequency); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			Error(w, http.StatusBadRequest, verr.Error())
			return
		}
		slog.Error("Failed to set frequency", "error", err, "chat_id", chatID)
		Error(w, http.StatusInternalServerError, "failed to set frequency")
		return
	}

	slog.Info("Frequency updated via admin API", "chat_id", chatID, "frequency", *req.Frequency)
	JSON(w, http.StatusOK, map[string]interface{}{"chat_id": chatID, "frequency": *req.Frequency})
}

// RecentFeed returns the retained backlog of a chat's outbound activity.
func (h *Handler) RecentFeed(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	items := []feed.Entry{}
	if h.hub != nil {
		items = append(items, h.hub.Recent(chatID)...)
	}
	JSON(w, http.StatusOK, map[string]interface{}{"chat_id": chatID, "items": items})
}

// FeedSocket streams a chat's outbound activity over a websocket.
func (h *Handler) FeedSocket(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	h.ws.ServeChat(w, r, chatID)
}
