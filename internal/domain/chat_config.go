package domain

import (
	"strconv"
	"strings"
)

// DefaultFrequency is used when a chat never customized its frequency.
const DefaultFrequency = 10

// ChatConfig holds per-chat tunables.
type ChatConfig struct {
	ChatID    int64
	Frequency int
}

// ValidateFrequency reports a ValidationError unless n is a positive integer.
func ValidateFrequency(n int) error {
	if n < 1 {
		return &ValidationError{Field: "frequency", Reason: "must be a positive integer"}
	}
	return nil
}

// ParseFrequency parses a frequency parameter typed by a user.
func ParseFrequency(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ValidationError{Field: "frequency", Reason: "not a number"}
	}
	if err := ValidateFrequency(n); err != nil {
		return 0, err
	}
	return n, nil
}
