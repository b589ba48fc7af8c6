// Package feed mirrors the bot's outbound activity to live websocket
// subscribers, one stream per chat.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBacklog is how many recent entries a new subscriber receives.
	DefaultBacklog = 50
	// DefaultHistoryTTL is how long an unwatched, quiet chat keeps its backlog.
	DefaultHistoryTTL = time.Hour
	subscriberQueue   = 32
)

// Entry is one outbound action of the bot.
type Entry struct {
	ChatID int64     `json:"chat_id"`
	Kind   string    `json:"kind"`
	Text   string    `json:"text,omitempty"`
	At     time.Time `json:"at"`
}

type subscriber struct {
	ch      chan Entry
	dropped int
}

// Hub fans entries out to subscribers of the entry's chat.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int64]map[string]*subscriber
	history map[int64]*ring
	backlog int
	ttl     time.Duration
	now     func() time.Time
}

// NewHub creates a hub keeping backlog recent entries per chat.
func NewHub(backlog int) *Hub {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Hub{
		subs:    make(map[int64]map[string]*subscriber),
		history: make(map[int64]*ring),
		backlog: backlog,
		ttl:     DefaultHistoryTTL,
		now:     time.Now,
	}
}

// Subscribe registers a subscriber for chatID. It returns the subscription
// id, the channel new entries arrive on and the chat's recent entries.
func (h *Hub) Subscribe(chatID int64) (string, <-chan Entry, []Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	if _, ok := h.subs[chatID]; !ok {
		h.subs[chatID] = make(map[string]*subscriber)
	}
	sub := &subscriber{ch: make(chan Entry, subscriberQueue)}
	h.subs[chatID][id] = sub

	var recent []Entry
	if r, ok := h.history[chatID]; ok {
		recent = r.entries()
		r.touched = h.now()
	}
	slog.Info("Feed subscriber registered", "chat_id", chatID, "subscription_id", id)
	return id, sub.ch, recent
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(chatID int64, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subs[chatID]
	if !ok {
		return
	}
	sub, ok := subs[id]
	if !ok {
		return
	}
	close(sub.ch)
	delete(subs, id)
	if r, ok := h.history[chatID]; ok {
		r.touched = h.now()
	}
	if len(subs) == 0 {
		delete(h.subs, chatID)
	}
	slog.Info("Feed subscriber unregistered", "chat_id", chatID, "subscription_id", id, "dropped", sub.dropped)
}

// Publish records e and delivers it to the chat's subscribers. Slow
// subscribers lose entries instead of blocking the bot.
func (h *Hub) Publish(e Entry) {
	if e.At.IsZero() {
		e.At = h.now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.history[e.ChatID]
	if !ok {
		r = newRing(h.backlog)
		h.history[e.ChatID] = r
	}
	r.push(e)
	r.touched = h.now()

	for _, sub := range h.subs[e.ChatID] {
		select {
		case sub.ch <- e:
		default:
			sub.dropped++
		}
	}
}

// Recent returns the chat's buffered entries, oldest first.
func (h *Hub) Recent(chatID int64) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r, ok := h.history[chatID]; ok {
		return r.entries()
	}
	return nil
}

// Subscribers returns how many subscribers a chat has.
func (h *Hub) Subscribers(chatID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[chatID])
}

// Prune forgets the backlog of chats that have no subscribers and have been
// quiet for longer than the history TTL. It returns how many were dropped.
func (h *Hub) Prune() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	removed := 0
	for chatID, r := range h.history {
		if len(h.subs[chatID]) > 0 || now.Sub(r.touched) <= h.ttl {
			continue
		}
		delete(h.history, chatID)
		removed++
	}
	return removed
}

// RunPruner calls Prune every interval until ctx is done.
func (h *Hub) RunPruner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := h.Prune(); n > 0 {
				slog.Debug("Idle feed histories dropped", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
