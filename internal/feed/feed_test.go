package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/manolo/internal/transport"
)

func TestRingKeepsNewestEntries(t *testing.T) {
	r := newRing(3)
	assert.Empty(t, r.entries())
	for i := 1; i <= 5; i++ {
		r.push(Entry{Text: string(rune('a' + i - 1))})
	}
	got := r.entries()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "d", "e"}, []string{got[0].Text, got[1].Text, got[2].Text})
	assert.Equal(t, 3, r.len())
}

func TestHubDeliversPerChat(t *testing.T) {
	h := NewHub(10)
	id, ch, backlog := h.Subscribe(1)
	assert.Empty(t, backlog)
	assert.Equal(t, 1, h.Subscribers(1))

	h.Publish(Entry{ChatID: 2, Kind: KindText, Text: "other chat"})
	h.Publish(Entry{ChatID: 1, Kind: KindText, Text: "hola"})

	select {
	case e := <-ch:
		assert.Equal(t, "hola", e.Text)
		assert.False(t, e.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("entry not delivered")
	}

	h.Unsubscribe(1, id)
	_, open := <-ch
	assert.False(t, open, "channel closed on unsubscribe")
	assert.Equal(t, 0, h.Subscribers(1))

	_, _, backlog = h.Subscribe(1)
	require.Len(t, backlog, 1)
	assert.Equal(t, "hola", backlog[0].Text)
	assert.Len(t, h.Recent(2), 1)
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	h := NewHub(1)
	_, ch, _ := h.Subscribe(1)
	for i := 0; i < subscriberQueue+10; i++ {
		h.Publish(Entry{ChatID: 1, Text: "x"})
	}
	assert.Len(t, ch, subscriberQueue)
	assert.Len(t, h.Recent(1), 1)
}

func TestHubPrunesIdleHistory(t *testing.T) {
	h := NewHub(5)
	now := time.Now()
	h.now = func() time.Time { return now }

	h.Publish(Entry{ChatID: 1, Text: "quiet"})
	h.Publish(Entry{ChatID: 2, Text: "watched"})
	h.Publish(Entry{ChatID: 3, Text: "recent"})
	id, _, _ := h.Subscribe(2)

	h.now = func() time.Time { return now.Add(DefaultHistoryTTL + time.Minute) }
	h.Publish(Entry{ChatID: 3, Text: "again"})

	assert.Equal(t, 1, h.Prune())
	assert.Empty(t, h.Recent(1))
	assert.Len(t, h.Recent(2), 1, "chats with subscribers keep their backlog")
	assert.Len(t, h.Recent(3), 2)

	h.Unsubscribe(2, id)
	h.now = func() time.Time { return now.Add(2*DefaultHistoryTTL + 2*time.Minute) }
	assert.Equal(t, 2, h.Prune())
	assert.Empty(t, h.Recent(2))
}

type stubSender struct {
	transport.Sender
	err error
}

func (s stubSender) SendText(context.Context, transport.Message) (int64, error) { return 7, s.err }
func (s stubSender) SendSticker(context.Context, int64, string) error           { return s.err }
func (s stubSender) SendAudio(context.Context, int64, string, string) error     { return s.err }

func TestMirrorPublishesSuccessfulSends(t *testing.T) {
	h := NewHub(10)
	ctx := context.Background()

	m := Mirror(stubSender{}, h)
	id, err := m.SendText(ctx, transport.Message{ChatID: 3, Text: "hola"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	require.NoError(t, m.SendSticker(ctx, 3, "stk"))
	require.NoError(t, m.SendAudio(ctx, 3, "/tmp/x.mp3", "Manolo"))

	failing := Mirror(stubSender{err: errors.New("down")}, h)
	_, err = failing.SendText(ctx, transport.Message{ChatID: 3, Text: "lost"})
	require.Error(t, err)

	recent := h.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{KindText, KindSticker, KindAudio}, []string{recent[0].Kind, recent[1].Kind, recent[2].Kind})
}

func TestWebSocketStreamsBacklogAndEntries(t *testing.T) {
	h := NewHub(10)
	h.Publish(Entry{ChatID: 9, Kind: KindText, Text: "antes"})
	handler := NewHandler(h, "*")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeChat(w, r, 9)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	read := func() wsMessage {
		t.Helper()
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg wsMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	first := read()
	assert.Equal(t, "backlog", first.Type)
	require.Len(t, first.Items, 1)
	assert.Equal(t, "antes", first.Items[0].Text)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)))
	assert.Equal(t, "pong", read().Type)

	require.Eventually(t, func() bool { return h.Subscribers(9) == 1 }, time.Second, 10*time.Millisecond)
	h.Publish(Entry{ChatID: 9, Kind: KindText, Text: "después"})
	msg := read()
	assert.Equal(t, "entry", msg.Type)
	require.NotNil(t, msg.Entry)
	assert.Equal(t, "después", msg.Entry.Text)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return h.Subscribers(9) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	handler := NewHandler(NewHub(1), "https://admin.example")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	handler.ServeChat(rec, req, 1)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "origin not allowed")
}
