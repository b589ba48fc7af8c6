// Package domain contains core domain types for the Manolo bot.
package domain

import (
	"strings"
	"time"
)

// LearnedMessage is a single corpus unit owned by one chat.
type LearnedMessage struct {
	ID        int64
	ChatID    int64
	Text      string
	CreatedAt time.Time
}

// MentionToken returns the token users write to address the bot.
func MentionToken(botUsername string) string {
	botUsername = strings.TrimPrefix(strings.TrimSpace(botUsername), "@")
	if botUsername == "" {
		return ""
	}
	return "@" + botUsername
}

// StripMention removes every occurrence of the bot's mention token from text.
// Runs of spaces left behind by the removal are collapsed.
func StripMention(text, botUsername string) string {
	token := MentionToken(botUsername)
	if token == "" || !strings.Contains(text, token) {
		return text
	}
	text = strings.ReplaceAll(text, token, "")
	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}
	return strings.TrimSpace(text)
}
