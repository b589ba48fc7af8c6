package bot

import (
	"context"
	"log/slog"

	"github.com/ashureev/manolo/internal/domain"
)

// MilestoneCount is the corpus size that triggers the celebratory message.
const MilestoneCount = 666

// stickerShare is the probability ceiling under which a sticker is preferred.
const stickerShare = 0.15

// Action is what the bot does after learning a message.
type Action int

const (
	ActionNone Action = iota
	ActionMilestone
	ActionText
	ActionSticker
)

func (a Action) String() string {
	switch a {
	case ActionMilestone:
		return "milestone"
	case ActionText:
		return "text"
	case ActionSticker:
		return "sticker"
	default:
		return "none"
	}
}

// Decide picks the reaction to a chat reaching count learned messages.
// r is a uniform draw in [0,1).
func Decide(count, frequency int, r float64) Action {
	if count == MilestoneCount {
		return ActionMilestone
	}
	if frequency < 1 {
		frequency = domain.DefaultFrequency
	}
	if count <= 0 || count%frequency != 0 {
		return ActionNone
	}
	if r > stickerShare {
		return ActionText
	}
	return ActionSticker
}

// learn stores an accepted message and interjects when it is the chat's turn.
func (s *Service) learn(ctx context.Context, chatID int64, text string) {
	text = domain.StripMention(text, s.botUsername)
	if text == "" {
		return
	}
	count, err := s.repo.AppendMessage(ctx, chatID, text)
	if err != nil {
		slog.Error("Failed to learn message", "chat_id", chatID, "error", err)
		return
	}
	frequency, err := s.repo.Frequency(ctx, chatID)
	if err != nil {
		slog.Warn("Failed to read frequency, using default", "chat_id", chatID, "error", err)
		frequency = domain.DefaultFrequency
	}

	action := Decide(count, frequency, s.randFloat())
	if action != ActionNone {
		slog.Debug("Interjecting", "chat_id", chatID, "count", count, "action", action.String())
	}
	switch action {
	case ActionMilestone:
		s.send(ctx, chatID, 0, s.msgs.Milestone)
	case ActionText:
		s.speak(ctx, chatID, 0)
	case ActionSticker:
		if !s.sendRandomSticker(ctx, chatID) {
			s.speak(ctx, chatID, 0)
		}
	}
}
