package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/ashureev/manolo/internal/domain"
	"github.com/ashureev/manolo/internal/transport"
)

const maxSpeechLength = 10

type commandFunc func(s *Service, ctx context.Context, ev transport.Event, args string)

var commands = map[string]commandFunc{
	"habla":      (*Service).cmdSpeak,
	"audio":      (*Service).cmdAudio,
	"discurso":   (*Service).cmdSpeech,
	"speech":     (*Service).cmdSpeech,
	"stats":      (*Service).cmdStats,
	"about":      (*Service).cmdAbout,
	"eliminar":   (*Service).cmdDelete,
	"arreglarme": (*Service).cmdFixMe,
	"frecuencia": (*Service).cmdFrequency,
	"sticker":    (*Service).cmdSticker,
	"cita":       (*Service).cmdQuote,
	"aprender":   (*Service).cmdLearn,
	"comandos":   (*Service).cmdList,
}

// parseCommand splits "/name@bot args" into its parts. Commands addressed to
// another bot are rejected.
func parseCommand(text, botUsername string) (name, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest := strings.TrimPrefix(text, "/"), ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, rest = head[:i], head[i:]
	}
	head, target, addressed := strings.Cut(head, "@")
	if addressed && !strings.EqualFold(target, botUsername) {
		return "", "", false
	}
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

func (s *Service) handleCommand(ctx context.Context, ev transport.Event) {
	name, args, ok := parseCommand(ev.Text, s.botUsername)
	if !ok {
		return
	}
	cmd, ok := commands[name]
	if !ok {
		return
	}
	slog.Debug("Command received", "chat_id", ev.ChatID, "command", name)
	cmd(s, ctx, ev, args)
}

func (s *Service) cmdSpeak(ctx context.Context, ev transport.Event, _ string) {
	s.speak(ctx, ev.ChatID, 0)
}

func (s *Service) cmdAudio(ctx context.Context, ev transport.Event, _ string) {
	s.sendAudio(ctx, ev.ChatID, ev.MessageID)
}

func (s *Service) cmdSpeech(ctx context.Context, ev transport.Event, _ string) {
	s.sendSpeech(ctx, ev.ChatID, 1+s.randIntN(maxSpeechLength))
}

func (s *Service) cmdStats(ctx context.Context, ev transport.Event, _ string) {
	n, err := s.repo.CountMessages(ctx, ev.ChatID)
	if err != nil {
		slog.Error("Failed to count messages", "chat_id", ev.ChatID, "error", err)
		s.send(ctx, ev.ChatID, 0, s.msgs.TryAgain)
		return
	}
	s.send(ctx, ev.ChatID, 0, fmt.Sprintf(s.msgs.Stats, n))
}

func (s *Service) cmdAbout(ctx context.Context, ev transport.Event, _ string) {
	s.send(ctx, ev.ChatID, 0, s.msgs.About)
}

func (s *Service) cmdFixMe(ctx context.Context, ev transport.Event, _ string) {
	s.send(ctx, ev.ChatID, 0, s.msgs.FixMe)
}

func (s *Service) cmdList(ctx context.Context, ev transport.Event, _ string) {
	s.send(ctx, ev.ChatID, 0, s.msgs.CommandList(s.version))
}

func (s *Service) cmdFrequency(ctx context.Context, ev transport.Event, args string) {
	if args == "" {
		n, err := s.repo.Frequency(ctx, ev.ChatID)
		if err != nil {
			slog.Error("Failed to read frequency", "chat_id", ev.ChatID, "error", err)
			s.send(ctx, ev.ChatID, 0, s.msgs.FrequencyFailed)
			return
		}
		s.send(ctx, ev.ChatID, 0, fmt.Sprintf(s.msgs.FrequencyCurrent, n))
		return
	}

	n, err := domain.ParseFrequency(strings.Fields(args)[0])
	if err != nil {
		s.send(ctx, ev.ChatID, 0, s.msgs.FrequencyInvalid)
		return
	}
	if err := s.repo.SetFrequency(ctx, ev.ChatID, n); err != nil {
		if domain.IsValidation(err) {
			s.send(ctx, ev.ChatID, 0, s.msgs.FrequencyInvalid)
			return
		}
		slog.Error("Failed to set frequency", "chat_id", ev.ChatID, "error", err)
		s.send(ctx, ev.ChatID, 0, s.msgs.FrequencyFailed)
		return
	}
	s.send(ctx, ev.ChatID, 0, fmt.Sprintf(s.msgs.FrequencySet, n))
}

func (s *Service) cmdSticker(ctx context.Context, ev transport.Event, _ string) {
	if !s.sendRandomSticker(ctx, ev.ChatID) {
		s.send(ctx, ev.ChatID, 0, s.msgs.NoStickers)
	}
}

func (s *Service) cmdQuote(ctx context.Context, ev transport.Event, args string) {
	author := domain.StripMention(args, s.botUsername)
	if author == "" {
		s.send(ctx, ev.ChatID, 0, s.msgs.QuoteUsage)
		return
	}
	text, ok := s.generate(ctx, ev.ChatID, 0)
	if !ok {
		return
	}
	s.send(ctx, ev.ChatID, 0, fmt.Sprintf(s.msgs.Quote, text, author))
}

func (s *Service) cmdLearn(ctx context.Context, ev transport.Event, _ string) {
	if ev.ReplyTo == nil || ev.ReplyTo.Document == nil {
		s.send(ctx, ev.ChatID, 0, s.msgs.LearnNeedsDocument)
		return
	}
	s.askToLearn(ctx, ev.ChatID, ev.ReplyTo.MessageID, ev.ReplyTo.Document)
}
