// Package bot implements the chatter bot: it learns what a chat says, decides
// when to speak and runs the commands and confirmation workflows.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashureev/manolo/internal/confirm"
	"github.com/ashureev/manolo/internal/domain"
	"github.com/ashureev/manolo/internal/ingest"
	"github.com/ashureev/manolo/internal/markov"
	"github.com/ashureev/manolo/internal/messages"
	"github.com/ashureev/manolo/internal/store"
	"github.com/ashureev/manolo/internal/transport"
)

// Synthesizer renders text as speech into the file at dst.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang, dst string) error
}

// Deps are the collaborators of a Service.
type Deps struct {
	Repo        store.Repository
	Sender      transport.Sender
	Generator   *markov.Generator
	Pipeline    *ingest.Pipeline
	Confirms    *confirm.Manager
	Messages    *messages.Catalog
	Synthesizer Synthesizer
	BotUsername string
	Version     string
	Language    string
	AudioDir    string
}

// Service handles inbound events of every chat.
type Service struct {
	repo        store.Repository
	sender      transport.Sender
	gen         *markov.Generator
	pipeline    *ingest.Pipeline
	confirms    *confirm.Manager
	msgs        *messages.Catalog
	tts         Synthesizer
	botUsername string
	version     string
	language    string
	audioDir    string

	randFloat func() float64
	randIntN  func(n int) int
}

// Option customises a Service.
type Option func(*Service)

// WithRandom replaces the random sources used for interjections and speech length.
func WithRandom(float func() float64, intN func(n int) int) Option {
	return func(s *Service) {
		if float != nil {
			s.randFloat = float
		}
		if intN != nil {
			s.randIntN = intN
		}
	}
}

// NewService validates deps and builds a Service.
func NewService(d Deps, opts ...Option) (*Service, error) {
	if d.Repo == nil || d.Sender == nil || d.Messages == nil {
		return nil, errors.New("bot: repository, sender and messages are required")
	}
	if d.Generator == nil {
		d.Generator = markov.NewGenerator(d.BotUsername)
	}
	if d.Pipeline == nil {
		d.Pipeline = ingest.NewPipeline(d.Repo, d.BotUsername)
	}
	if d.Confirms == nil {
		d.Confirms = confirm.NewManager(confirm.DefaultTTL)
	}
	if d.Language == "" {
		d.Language = "es"
	}
	if d.AudioDir == "" {
		d.AudioDir = os.TempDir()
	}
	s := &Service{
		repo:        d.Repo,
		sender:      d.Sender,
		gen:         d.Generator,
		pipeline:    d.Pipeline,
		confirms:    d.Confirms,
		msgs:        d.Messages,
		tts:         d.Synthesizer,
		botUsername: strings.TrimPrefix(d.BotUsername, "@"),
		version:     d.Version,
		language:    d.Language,
		audioDir:    d.AudioDir,
		randFloat:   rand.Float64,
		randIntN:    rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterCommands publishes the command menu to the platform.
func (s *Service) RegisterCommands(ctx context.Context) error {
	cmds := make([]transport.Command, 0, len(s.msgs.Commands))
	for _, c := range s.msgs.Commands {
		cmds = append(cmds, transport.Command{Command: c.Command, Description: c.Description})
	}
	if err := s.sender.SetCommands(ctx, cmds); err != nil {
		return &domain.DeliveryError{Op: "set commands", Err: err}
	}
	return nil
}

// Handle processes one inbound event. It never returns an error; failures
// become fallback messages and log entries.
func (s *Service) Handle(ctx context.Context, ev transport.Event) {
	switch ev.Kind {
	case transport.EventCallback:
		s.handleCallback(ctx, ev)
	case transport.EventSticker:
		if err := s.repo.RecordSticker(ctx, ev.ChatID, ev.StickerID); err != nil {
			slog.Error("Failed to learn sticker", "chat_id", ev.ChatID, "error", err)
		}
	case transport.EventDice:
		s.sendSpeech(ctx, ev.ChatID, ev.DiceValue)
	case transport.EventDocument:
		s.askToLearn(ctx, ev.ChatID, ev.MessageID, ev.Document)
	case transport.EventText:
		s.handleText(ctx, ev)
	}
}

func (s *Service) handleText(ctx context.Context, ev transport.Event) {
	if ev.ReplyTo != nil {
		if pc, ok := s.confirms.Lookup(ev.ChatID, ev.ReplyTo.MessageID); ok && pc.Kind == domain.ConfirmDeleteCorpus {
			s.resolveDelete(ctx, ev, pc)
			return
		}
		// Late answers to a delete prompt are not conversation.
		if kind, ok := s.confirms.Resolved(ev.ChatID, ev.ReplyTo.MessageID); ok && kind == domain.ConfirmDeleteCorpus {
			slog.Debug("Reply to resolved prompt ignored", "chat_id", ev.ChatID, "prompt_id", ev.ReplyTo.MessageID)
			return
		}
	}
	if strings.HasPrefix(ev.Text, "/") {
		s.handleCommand(ctx, ev)
		return
	}

	s.learn(ctx, ev.ChatID, ev.Text)

	if mention := domain.MentionToken(s.botUsername); mention != "" && strings.Contains(ev.Text, mention) {
		s.speak(ctx, ev.ChatID, ev.MessageID)
	}
}

// corpus loads the chat's messages, answering with a fallback on failure.
func (s *Service) corpus(ctx context.Context, chatID, replyTo int64) ([]string, bool) {
	corpus, err := s.repo.Messages(ctx, chatID)
	if err != nil {
		slog.Error("Failed to load corpus", "chat_id", chatID, "error", err)
		s.send(ctx, chatID, replyTo, s.msgs.TryAgain)
		return nil, false
	}
	return corpus, true
}

// generate produces one utterance or answers with the matching fallback.
func (s *Service) generate(ctx context.Context, chatID, replyTo int64) (string, bool) {
	corpus, ok := s.corpus(ctx, chatID, replyTo)
	if !ok {
		return "", false
	}
	text, err := s.gen.Generate(corpus)
	if err != nil {
		if !errors.Is(err, domain.ErrInsufficientData) {
			slog.Error("Failed to generate message", "chat_id", chatID, "error", err)
		}
		s.send(ctx, chatID, replyTo, s.msgs.NeedMoreData)
		return "", false
	}
	return text, true
}

// speak sends a generated message, quoting replyTo when non-zero.
func (s *Service) speak(ctx context.Context, chatID, replyTo int64) {
	if text, ok := s.generate(ctx, chatID, replyTo); ok {
		s.send(ctx, chatID, replyTo, text)
	}
}

func (s *Service) sendSpeech(ctx context.Context, chatID int64, length int) {
	if length < 1 {
		length = 1
	}
	corpus, ok := s.corpus(ctx, chatID, 0)
	if !ok {
		return
	}
	text, err := s.gen.GenerateSpeech(corpus, length)
	if err != nil {
		s.send(ctx, chatID, 0, s.msgs.NeedMoreData)
		return
	}
	s.send(ctx, chatID, 0, text)
}

func (s *Service) sendRandomSticker(ctx context.Context, chatID int64) bool {
	fileID, ok, err := s.repo.RandomSticker(ctx, chatID)
	if err != nil {
		slog.Error("Failed to pick sticker", "chat_id", chatID, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := s.sender.SendSticker(ctx, chatID, fileID); err != nil {
		slog.Warn("Failed to send sticker", "chat_id", chatID, "error", &domain.DeliveryError{Op: "send sticker", Err: err})
		return false
	}
	return true
}

func (s *Service) sendAudio(ctx context.Context, chatID, messageID int64) {
	text, ok := s.generate(ctx, chatID, 0)
	if !ok {
		return
	}
	if s.tts == nil {
		s.send(ctx, chatID, 0, s.msgs.AudioFailed)
		return
	}
	path := filepath.Join(s.audioDir, fmt.Sprintf("Manolo %d-%d.mp3", chatID, messageID))
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to remove audio file", "path", path, "error", err)
		}
	}()

	if err := s.tts.Synthesize(ctx, text, s.language, path); err != nil {
		slog.Error("Failed to synthesize audio", "chat_id", chatID, "error", err)
		s.send(ctx, chatID, 0, s.msgs.AudioFailed)
		return
	}
	if err := s.sender.SendAudio(ctx, chatID, path, "Manolo"); err != nil {
		slog.Warn("Failed to send audio", "chat_id", chatID, "error", &domain.DeliveryError{Op: "send audio", Err: err})
		s.send(ctx, chatID, 0, s.msgs.AudioFailed)
	}
}

// send delivers a plain text message and logs delivery failures.
func (s *Service) send(ctx context.Context, chatID, replyTo int64, text string) {
	s.deliver(ctx, transport.Message{ChatID: chatID, Text: text, ReplyTo: replyTo})
}

func (s *Service) deliver(ctx context.Context, msg transport.Message) (int64, bool) {
	id, err := s.sender.SendText(ctx, msg)
	if err != nil {
		slog.Warn("Failed to send message", "chat_id", msg.ChatID, "error", &domain.DeliveryError{Op: "send text", Err: err})
		return 0, false
	}
	return id, true
}
