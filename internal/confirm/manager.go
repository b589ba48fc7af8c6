// Package confirm tracks outstanding yes/no prompts and correlates answers to them.
package confirm

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/manolo/internal/domain"
	"github.com/google/uuid"
)

// DefaultTTL is how long an unanswered prompt stays valid.
const DefaultTTL = 10 * time.Minute

type promptKey struct {
	chatID    int64
	messageID int64
}

// tombstone remembers a prompt that was answered or expired so late replies
// to it can still be recognized.
type tombstone struct {
	kind domain.ConfirmationKind
	at   time.Time
}

// Manager is an in-memory store of pending confirmations. Each confirmation is
// consumed at most once. Resolved prompts leave a tombstone for one more TTL.
type Manager struct {
	mu       sync.Mutex
	byToken  map[string]*domain.PendingConfirmation
	byPrompt map[promptKey]string
	resolved map[promptKey]tombstone
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a manager whose entries expire after ttl.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		byToken:  make(map[string]*domain.PendingConfirmation),
		byPrompt: make(map[promptKey]string),
		resolved: make(map[promptKey]tombstone),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Open registers a new pending confirmation and returns its correlation token.
func (m *Manager) Open(kind domain.ConfirmationKind, chatID int64, doc *domain.DocumentRef) string {
	token := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byToken[token] = &domain.PendingConfirmation{
		Token:     token,
		Kind:      kind,
		ChatID:    chatID,
		Document:  doc,
		CreatedAt: m.now(),
	}
	return token
}

// Bind records the message that carries the prompt so replies to it can be
// correlated. It returns false if the token is unknown.
func (m *Manager) Bind(token string, promptMessageID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byToken[token]
	if !ok {
		return false
	}
	if p.PromptMessageID != 0 {
		delete(m.byPrompt, promptKey{p.ChatID, p.PromptMessageID})
	}
	p.PromptMessageID = promptMessageID
	key := promptKey{p.ChatID, promptMessageID}
	m.byPrompt[key] = token
	delete(m.resolved, key)
	return true
}

// Lookup returns the live confirmation prompted by the given message without consuming it.
func (m *Manager) Lookup(chatID, promptMessageID int64) (domain.PendingConfirmation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.byPrompt[promptKey{chatID, promptMessageID}]
	if !ok {
		return domain.PendingConfirmation{}, false
	}
	p := m.byToken[token]
	if p == nil || p.Expired(m.now(), m.ttl) {
		return domain.PendingConfirmation{}, false
	}
	return *p, true
}

// Peek returns the live confirmation for token without consuming it.
func (m *Manager) Peek(token string) (domain.PendingConfirmation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byToken[token]
	if !ok || p.Expired(m.now(), m.ttl) {
		return domain.PendingConfirmation{}, false
	}
	return *p, true
}

// Consume removes and returns the confirmation for token. A second call with
// the same token, or a call after expiry, returns false.
func (m *Manager) Consume(token string) (domain.PendingConfirmation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byToken[token]
	if !ok {
		return domain.PendingConfirmation{}, false
	}
	m.removeLocked(p, true)
	if p.Expired(m.now(), m.ttl) {
		return domain.PendingConfirmation{}, false
	}
	return *p, true
}

// Resolved reports whether the given message prompted a confirmation that was
// already answered or has expired, and which workflow it belonged to.
func (m *Manager) Resolved(chatID, promptMessageID int64) (domain.ConfirmationKind, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := promptKey{chatID, promptMessageID}
	if ts, ok := m.resolved[key]; ok {
		return ts.kind, true
	}
	if token, ok := m.byPrompt[key]; ok {
		if p := m.byToken[token]; p != nil && p.Expired(m.now(), m.ttl) {
			return p.Kind, true
		}
	}
	return "", false
}

// Discard drops a confirmation whose prompt could not be delivered.
func (m *Manager) Discard(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byToken[token]; ok {
		m.removeLocked(p, false)
	}
}

func (m *Manager) removeLocked(p *domain.PendingConfirmation, remember bool) {
	delete(m.byToken, p.Token)
	if p.PromptMessageID == 0 {
		return
	}
	key := promptKey{p.ChatID, p.PromptMessageID}
	delete(m.byPrompt, key)
	if remember {
		m.resolved[key] = tombstone{kind: p.Kind, at: m.now()}
	}
}

// Sweep removes expired confirmations and returns how many were dropped.
// Tombstones older than the TTL are forgotten.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for _, p := range m.byToken {
		if p.Expired(now, m.ttl) {
			m.removeLocked(p, true)
			removed++
		}
	}
	for key, ts := range m.resolved {
		if now.Sub(ts.at) > m.ttl {
			delete(m.resolved, key)
		}
	}
	return removed
}

// Len returns the number of pending confirmations.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byToken)
}

// RunSweeper periodically drops expired confirmations until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Confirmation sweeper started", "interval", interval, "ttl", m.ttl)

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Info("Expired confirmations dropped", "count", n)
			}
		case <-ctx.Done():
			slog.Info("Confirmation sweeper shutting down", "reason", ctx.Err())
			return
		}
	}
}

// Answer is a parsed yes/no reply.
type Answer int

const (
	// AnswerNone means the text is neither affirmative nor negative.
	AnswerNone Answer = iota
	// AnswerYes confirms the action.
	AnswerYes
	// AnswerNo cancels the action.
	AnswerNo
)

// Affirmative and Negative are the labels shown on confirmation keyboards.
const (
	Affirmative = "Yes"
	Negative    = "No"
)

// ParseAnswer matches text against the affirmative and negative labels,
// ignoring case and surrounding whitespace.
func ParseAnswer(text string) Answer {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case strings.ToLower(Affirmative), "si", "sí":
		return AnswerYes
	case strings.ToLower(Negative):
		return AnswerNo
	default:
		return AnswerNone
	}
}

const callbackPrefix = "cf:"

// CallbackData encodes a token and an answer for an inline button.
func CallbackData(token string, answer Answer) string {
	suffix := ":n"
	if answer == AnswerYes {
		suffix = ":y"
	}
	return callbackPrefix + token + suffix
}

// ParseCallbackData decodes data produced by CallbackData.
func ParseCallbackData(data string) (token string, answer Answer, ok bool) {
	if !strings.HasPrefix(data, callbackPrefix) {
		return "", AnswerNone, false
	}
	rest := strings.TrimPrefix(data, callbackPrefix)
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 {
		return "", AnswerNone, false
	}
	token = rest[:i]
	switch rest[i+1:] {
	case "y":
		return token, AnswerYes, true
	case "n":
		return token, AnswerNo, true
	default:
		return "", AnswerNone, false
	}
}
