package domain

import (
	"errors"
	"testing"
	"time"
)

func TestStripMention(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"no mention", "hola que tal", "hola que tal"},
		{"leading", "@manolo_bot hola", "hola"},
		{"middle", "hola @manolo_bot que tal", "hola que tal"},
		{"repeated", "@manolo_bot @manolo_bot", ""},
		{"other user untouched", "@pepe hola", "@pepe hola"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMention(tt.text, "manolo_bot"); got != tt.want {
				t.Errorf("StripMention(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestStripMentionWithoutUsername(t *testing.T) {
	if got := StripMention("@manolo_bot hola", ""); got != "@manolo_bot hola" {
		t.Errorf("expected text unchanged, got %q", got)
	}
}

func TestParseFrequency(t *testing.T) {
	n, err := ParseFrequency(" 5 ")
	if err != nil || n != 5 {
		t.Fatalf("ParseFrequency(5) = %d, %v", n, err)
	}

	for _, raw := range []string{"-1", "0", "abc", ""} {
		if _, err := ParseFrequency(raw); !IsValidation(err) {
			t.Errorf("ParseFrequency(%q) expected ValidationError, got %v", raw, err)
		}
	}
}

func TestStorageErrorUnwrap(t *testing.T) {
	base := errors.New("disk full")
	err := &StorageError{Op: "append", Err: base}
	if !errors.Is(err, base) {
		t.Fatal("expected StorageError to unwrap to base error")
	}
}

func TestPendingConfirmationExpired(t *testing.T) {
	now := time.Now()
	p := &PendingConfirmation{CreatedAt: now.Add(-2 * time.Minute)}
	if !p.Expired(now, time.Minute) {
		t.Error("expected confirmation to be expired")
	}
	if p.Expired(now, 5*time.Minute) {
		t.Error("expected confirmation to be live")
	}
	if p.Expired(now, 0) {
		t.Error("zero ttl never expires")
	}
}
