package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/manolo/internal/transport"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL), WithHTTPClient(srv.Client())}, opts...)
	return New("TOKEN", opts...)
}

func TestSendTextWithReplyKeyboard(t *testing.T) {
	var got sendMessageRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":77}}`))
	})

	id, err := c.SendText(context.Background(), transport.Message{
		ChatID:        5,
		Text:          "¿Seguro?",
		ReplyTo:       9,
		ReplyKeyboard: [][]string{{"Yes"}, {"No"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	assert.Equal(t, int64(5), got.ChatID)
	assert.Equal(t, int64(9), got.ReplyToMessageID)
	require.NotNil(t, got.ReplyMarkup)
	assert.True(t, got.ReplyMarkup.OneTimeKeyboard)
	assert.Equal(t, [][]keyboardButton{{{Text: "Yes"}}, {{Text: "No"}}}, got.ReplyMarkup.Keyboard)
}

func TestSendTextInlineAndRemoveMarkup(t *testing.T) {
	var bodies []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(raw))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})

	_, err := c.SendText(context.Background(), transport.Message{
		ChatID:        1,
		Text:          "learn?",
		InlineButtons: [][]transport.InlineButton{{{Text: "Yes", Data: "cf:t:y"}}},
	})
	require.NoError(t, err)
	_, err = c.SendText(context.Background(), transport.Message{ChatID: 1, Text: "ok", RemoveKeyboard: true})
	require.NoError(t, err)
	_, err = c.SendText(context.Background(), transport.Message{ChatID: 1, Text: "plain"})
	require.NoError(t, err)

	require.Len(t, bodies, 3)
	assert.Contains(t, bodies[0], `"inline_keyboard":[[{"text":"Yes","callback_data":"cf:t:y"}]]`)
	assert.Contains(t, bodies[1], `"remove_keyboard":true`)
	assert.NotContains(t, bodies[2], "reply_markup")
}

func TestRequestErrorCarriesDescription(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was kicked"}`))
	})

	err := c.SendSticker(context.Background(), 1, "sticker-id")
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "sendSticker", reqErr.Method)
	assert.Equal(t, 403, reqErr.ErrorCode)
	assert.Contains(t, err.Error(), "bot was kicked")
}

func TestOpenDocumentStreamsFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getFile":
			assert.Equal(t, "doc-1", r.URL.Query().Get("file_id"))
			_, _ = w.Write([]byte(`{"ok":true,"result":{"file_id":"doc-1","file_path":"documents/a.txt"}}`))
		case "/file/botTOKEN/documents/a.txt":
			_, _ = w.Write([]byte("Hola. Adiós."))
		default:
			http.NotFound(w, r)
		}
	})

	rc, err := c.OpenDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "Hola. Adiós.", string(data))

	_, err = c.OpenDocument(context.Background(), " ")
	assert.Error(t, err)
}

func TestSendAudioMultipart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Manolo 1-2.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3fake"), 0o600))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/botTOKEN/sendAudio", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "1", r.FormValue("chat_id"))
		assert.Equal(t, "Manolo", r.FormValue("title"))
		f, hdr, err := r.FormFile("audio")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "ID3fake", string(data))
		assert.Equal(t, "Manolo 1-2.mp3", hdr.Filename)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":3}}`))
	})

	require.NoError(t, c.SendAudio(context.Background(), 1, path, "Manolo"))
}

func TestSetCommandsStripsSlash(t *testing.T) {
	var got setMyCommandsRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	})

	err := c.SetCommands(context.Background(), []transport.Command{{Command: "/habla", Description: "Mando un mensaje"}})
	require.NoError(t, err)
	assert.Equal(t, []botCommand{{Command: "habla", Description: "Mando un mensaje"}}, got.Commands)
}

func TestPollDeliversEventsAndAdvancesOffset(t *testing.T) {
	var mu sync.Mutex
	var offsets []string
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		offsets = append(offsets, r.URL.Query().Get("offset"))
		mu.Unlock()
		if n == 1 {
			_, _ = w.Write([]byte(`{"ok":true,"result":[
				{"update_id":10,"message":{"message_id":1,"chat":{"id":-5},"from":{"id":2,"username":"ana"},"text":"hola"}},
				{"update_id":11,"message":{"message_id":2,"chat":{"id":-5},"sticker":{"file_id":"stk"}}},
				{"update_id":12,"message":{"message_id":3,"chat":{"id":-5},"dice":{"emoji":"🎲","value":4}}},
				{"update_id":13,"callback_query":{"id":"cb","data":"cf:x:y","message":{"message_id":4,"chat":{"id":-5}}}},
				{"update_id":14,"message":{"message_id":5,"chat":{"id":-5},"document":{"file_id":"d","file_name":"a.txt"},
					"reply_to_message":{"message_id":1,"from":{"id":9,"username":"manolo_bot"},"text":"x"}}}
			]}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
	}, WithPollTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events []transport.Event
	done := make(chan error, 1)
	go func() {
		done <- c.Poll(ctx, func(_ context.Context, ev transport.Event) {
			events = append(events, ev)
			if len(events) == 5 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not stop")
	}

	require.Len(t, events, 5)
	assert.Equal(t, transport.EventText, events[0].Kind)
	assert.Equal(t, "ana", events[0].FromUsername)
	assert.Equal(t, transport.EventSticker, events[1].Kind)
	assert.Equal(t, "stk", events[1].StickerID)
	assert.Equal(t, transport.EventDice, events[2].Kind)
	assert.Equal(t, 4, events[2].DiceValue)
	assert.Equal(t, transport.EventCallback, events[3].Kind)
	assert.Equal(t, "cf:x:y", events[3].Callback.Data)
	assert.Equal(t, transport.EventDocument, events[4].Kind)
	assert.Equal(t, "manolo_bot", events[4].ReplyTo.FromUsername)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "", offsets[0])
	if len(offsets) > 1 {
		assert.Equal(t, "15", offsets[1])
	}
}

func TestChatLimiterForgetsIdleChats(t *testing.T) {
	l := newChatLimiter(1, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	a := l.get(1)
	assert.Same(t, a, l.get(1))
	l.get(2)

	now = now.Add(idleLimiterTTL + time.Second)
	l.get(2)
	_, ok := l.limiters[1]
	assert.False(t, ok, "idle chat limiter should be dropped")
	assert.Len(t, l.limiters, 1)
}

func TestSendRateBlocksUntilContextDone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}, WithSendRate(1))

	require.NoError(t, c.SendSticker(context.Background(), 1, "a"))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.SendSticker(ctx, 1, "b")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "rate") || errors.Is(err, context.DeadlineExceeded))

	require.NoError(t, c.SendSticker(context.Background(), 2, "c"), "other chats have their own budget")
}
