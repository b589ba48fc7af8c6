// Package tts renders generated text as speech audio files.
package tts

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Synthesizer writes spoken text in the given language to dst.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang, dst string) error
}

// Backend names accepted by New.
const (
	BackendGoogle = "google"
	BackendDocker = "docker"
	BackendNone   = "none"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	DockerImage string
}

// New builds the configured synthesizer. BackendNone yields a nil
// Synthesizer and no error.
func New(opts Options) (Synthesizer, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendGoogle:
		return NewGoogle(), nil
	case BackendDocker:
		d, err := NewDocker(opts.DockerImage)
		if err != nil {
			return nil, err
		}
		return d, nil
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown tts backend %q", opts.Backend)
	}
}

// splitText cuts text into chunks of at most max runes, preferring word
// boundaries.
func splitText(text string, max int) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, word := range strings.Fields(text) {
		for utf8.RuneCountInString(word) > max {
			flush()
			runes := []rune(word)
			chunks = append(chunks, string(runes[:max]))
			word = string(runes[max:])
		}
		n := utf8.RuneCountInString(word)
		if curLen > 0 && curLen+1+n > max {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(word)
		curLen += n
	}
	flush()
	return chunks
}
