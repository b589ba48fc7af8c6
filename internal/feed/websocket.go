package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// Handler streams a chat's feed over a websocket.
type Handler struct {
	hub           *Hub
	allowedOrigin string
}

// NewHandler creates a websocket handler. An allowedOrigin of "*" or "" accepts any origin.
func NewHandler(hub *Hub, allowedOrigin string) *Handler {
	return &Handler{hub: hub, allowedOrigin: allowedOrigin}
}

type wsMessage struct {
	Type  string  `json:"type"`
	Entry *Entry  `json:"entry,omitempty"`
	Items []Entry `json:"items,omitempty"`
}

// ServeChat upgrades the request and streams chatID's entries until either
// side closes.
func (h *Handler) ServeChat(w http.ResponseWriter, r *http.Request, chatID int64) {
	slog.Info("Feed connection request", "chat_id", chatID, "ip", r.RemoteAddr)
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "chat_id", chatID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "chat_id", chatID)
		}
	}()

	id, entries, backlog := h.hub.Subscribe(chatID)
	defer h.hub.Unsubscribe(chatID, id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeMu sync.Mutex
	write := func(v wsMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return ws.Write(ctx, websocket.MessageText, data)
	}

	if err := write(wsMessage{Type: "backlog", Items: backlog}); err != nil {
		slog.Debug("Failed to send backlog", "error", err, "chat_id", chatID)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// Input loop: answers pings and notices the client going away.
	go func() {
		defer wg.Done()
		defer cancel()
		h.inputLoop(ctx, ws, write, chatID)
	}()

	// Output loop: hub -> websocket.
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-entries:
				if !ok {
					return
				}
				if err := write(wsMessage{Type: "entry", Entry: &e}); err != nil {
					slog.Debug("Feed write error", "error", err, "chat_id", chatID)
					return
				}
			}
		}
	}()

	wg.Wait()
	slog.Info("Feed connection ended", "chat_id", chatID)
}

func (h *Handler) inputLoop(ctx context.Context, ws *websocket.Conn, write func(wsMessage) error, chatID int64) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("WebSocket closed by client", "chat_id", chatID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "chat_id", chatID)
			}
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			if err := write(wsMessage{Type: "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
				return
			}
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
