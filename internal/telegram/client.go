// Package telegram is a small Telegram Bot API client implementing the
// transport interfaces over long polling.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ashureev/manolo/internal/transport"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

const (
	defaultPollTimeout = 30 * time.Second
	pollRetryDelay     = 2 * time.Second
	idleLimiterTTL     = 10 * time.Minute
)

// Client talks to the Bot API.
type Client struct {
	http        *http.Client
	baseURL     string
	token       string
	pollTimeout time.Duration
	limiter     *chatLimiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Bot API server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithPollTimeout sets the getUpdates long-poll timeout.
func WithPollTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollTimeout = d
		}
	}
}

// WithSendRate limits outbound calls to perMinute per chat. Zero disables it.
func WithSendRate(perMinute int) Option {
	return func(c *Client) {
		if perMinute > 0 {
			c.limiter = newChatLimiter(rate.Limit(float64(perMinute)/60), perMinute)
		} else {
			c.limiter = nil
		}
	}
}

// New creates a client for the given bot token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{Timeout: 60 * time.Second},
		baseURL:     DefaultBaseURL,
		token:       token,
		pollTimeout: defaultPollTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ transport.Sender = (*Client)(nil)
	_ transport.Source = (*Client)(nil)
)

// Poll long-polls getUpdates and hands each event to handle until ctx ends.
func (c *Client) Poll(ctx context.Context, handle transport.Handler) error {
	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, next, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if isPollTimeout(err) {
				continue
			}
			slog.Warn("Telegram poll failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollRetryDelay):
			}
			continue
		}
		offset = next
		for _, u := range updates {
			if ev, ok := toEvent(u); ok {
				handle(ctx, ev)
			}
		}
	}
}

func (c *Client) getUpdates(ctx context.Context, offset int64) ([]update, int64, error) {
	secs := int(c.pollTimeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(secs))
	q.Set("allowed_updates", `["message","callback_query"]`)
	if offset > 0 {
		q.Set("offset", strconv.FormatInt(offset, 10))
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.pollTimeout+5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.methodURL("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, offset, err
	}
	var out []update
	if err := c.do(req, "getUpdates", &out); err != nil {
		return nil, offset, err
	}
	next := offset
	for _, u := range out {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out, next, nil
}

// SendText implements transport.Sender.
func (c *Client) SendText(ctx context.Context, msg transport.Message) (int64, error) {
	if err := c.wait(ctx, msg.ChatID); err != nil {
		return 0, err
	}
	body := sendMessageRequest{
		ChatID:           msg.ChatID,
		Text:             msg.Text,
		ReplyToMessageID: msg.ReplyTo,
		ReplyMarkup:      markupFor(msg),
	}
	var sent message
	if err := c.postJSON(ctx, "sendMessage", body, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func markupFor(msg transport.Message) *replyMarkup {
	switch {
	case len(msg.InlineButtons) > 0:
		rows := make([][]inlineKeyboardButton, 0, len(msg.InlineButtons))
		for _, row := range msg.InlineButtons {
			buttons := make([]inlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, inlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
			}
			rows = append(rows, buttons)
		}
		return &replyMarkup{InlineKeyboard: rows}
	case len(msg.ReplyKeyboard) > 0:
		rows := make([][]keyboardButton, 0, len(msg.ReplyKeyboard))
		for _, row := range msg.ReplyKeyboard {
			buttons := make([]keyboardButton, 0, len(row))
			for _, text := range row {
				buttons = append(buttons, keyboardButton{Text: text})
			}
			rows = append(rows, buttons)
		}
		return &replyMarkup{Keyboard: rows, OneTimeKeyboard: true, Selective: true}
	case msg.RemoveKeyboard:
		return &replyMarkup{RemoveKeyboard: true}
	default:
		return nil
	}
}

// SendSticker implements transport.Sender.
func (c *Client) SendSticker(ctx context.Context, chatID int64, fileID string) error {
	if err := c.wait(ctx, chatID); err != nil {
		return err
	}
	return c.postJSON(ctx, "sendSticker", sendStickerRequest{ChatID: chatID, Sticker: fileID}, nil)
}

// SendAudio uploads a local audio file.
func (c *Client) SendAudio(ctx context.Context, chatID int64, path, title string) error {
	if err := c.wait(ctx, chatID); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer pw.Close()
		defer mw.Close()

		_ = mw.WriteField("chat_id", strconv.FormatInt(chatID, 10))
		if title != "" {
			_ = mw.WriteField("title", title)
		}
		part, err := mw.CreateFormFile("audio", filepath.Base(path))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = pw.CloseWithError(err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendAudio"), pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, "sendAudio", nil)
}

// DeleteMessage implements transport.Sender.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.postJSON(ctx, "deleteMessage", deleteMessageRequest{ChatID: chatID, MessageID: messageID}, nil)
}

// AnswerCallback acknowledges an inline button press.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return c.postJSON(ctx, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: callbackID, Text: text}, nil)
}

// SetCommands registers the command menu.
func (c *Client) SetCommands(ctx context.Context, commands []transport.Command) error {
	req := setMyCommandsRequest{Commands: make([]botCommand, 0, len(commands))}
	for _, cmd := range commands {
		req.Commands = append(req.Commands, botCommand{
			Command:     strings.TrimPrefix(cmd.Command, "/"),
			Description: cmd.Description,
		})
	}
	return c.postJSON(ctx, "setMyCommands", req, nil)
}

// OpenDocument resolves a file id and streams its content.
func (c *Client) OpenDocument(ctx context.Context, fileID string) (io.ReadCloser, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, fmt.Errorf("missing file_id")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.methodURL("getFile")+"?file_id="+url.QueryEscape(fileID), nil)
	if err != nil {
		return nil, err
	}
	var f file
	if err := c.do(req, "getFile", &f); err != nil {
		return nil, err
	}
	if strings.TrimSpace(f.FilePath) == "" {
		return nil, fmt.Errorf("telegram getFile: missing file_path")
	}

	dl := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, strings.TrimLeft(f.FilePath, "/"))
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, dl, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("telegram download http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return resp.Body, nil
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) postJSON(ctx context.Context, method string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method, out)
}

func (c *Client) do(req *http.Request, method string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var env response[json.RawMessage]
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.OK {
		desc := env.Description
		if decodeErr != nil || desc == "" {
			desc = strings.TrimSpace(string(raw))
		}
		return &RequestError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   env.ErrorCode,
			Description: desc,
		}
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) wait(ctx context.Context, chatID int64) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.wait(ctx, chatID)
}

func toEvent(u update) (transport.Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.Message.Chat == nil {
			return transport.Event{}, false
		}
		ev := transport.Event{
			Kind:      transport.EventCallback,
			ChatID:    cq.Message.Chat.ID,
			MessageID: cq.Message.MessageID,
			Callback: &transport.Callback{
				ID:        cq.ID,
				Data:      cq.Data,
				MessageID: cq.Message.MessageID,
			},
		}
		if cq.From != nil {
			ev.FromUsername = cq.From.Username
		}
		return ev, true
	}

	m := u.Message
	if m == nil || m.Chat == nil {
		return transport.Event{}, false
	}
	ev := transport.Event{
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		Text:      m.Text,
	}
	if m.From != nil {
		ev.FromUsername = m.From.Username
	}
	if r := m.ReplyTo; r != nil {
		ev.ReplyTo = &transport.Reply{MessageID: r.MessageID, Text: r.Text}
		if r.From != nil {
			ev.ReplyTo.FromUsername = r.From.Username
		}
		if r.Document != nil {
			ev.ReplyTo.Document = &transport.Document{FileID: r.Document.FileID, FileName: r.Document.FileName}
		}
	}
	switch {
	case m.Document != nil:
		ev.Kind = transport.EventDocument
		ev.Document = &transport.Document{FileID: m.Document.FileID, FileName: m.Document.FileName}
	case m.Sticker != nil:
		ev.Kind = transport.EventSticker
		ev.StickerID = m.Sticker.FileID
	case m.Dice != nil:
		ev.Kind = transport.EventDice
		ev.DiceValue = m.Dice.Value
	case m.Text != "":
		ev.Kind = transport.EventText
	default:
		return transport.Event{}, false
	}
	return ev, true
}

// chatLimiter keeps one token bucket per chat and forgets idle ones.
type chatLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[int64]*limiterEntry
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

func newChatLimiter(limit rate.Limit, burst int) *chatLimiter {
	return &chatLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[int64]*limiterEntry),
		now:      time.Now,
	}
}

func (l *chatLimiter) wait(ctx context.Context, chatID int64) error {
	return l.get(chatID).Wait(ctx)
}

func (l *chatLimiter) get(chatID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, e := range l.limiters {
		if id != chatID && now.Sub(e.lastUsed) > idleLimiterTTL {
			delete(l.limiters, id)
		}
	}
	e, ok := l.limiters[chatID]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[chatID] = e
	}
	e.lastUsed = now
	return e.limiter
}
