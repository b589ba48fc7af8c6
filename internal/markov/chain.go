// Package markov synthesizes text from a chat corpus with a word-level Markov chain.
package markov

import (
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/ashureev/manolo/internal/domain"
)

const (
	// DefaultMinLength is the minimum number of words in a generated utterance.
	DefaultMinLength = 4
	// DefaultMaxAttempts bounds how many walks are tried before giving up.
	DefaultMaxAttempts = 64
	// maxWalk stops runaway walks on cyclic corpora without terminals.
	maxWalk = 200
)

// Chain is an order-1 transition table built from a corpus snapshot.
type Chain struct {
	starts    []string
	terminals map[string]bool
	next      map[string][]string
}

// Build indexes corpus into a chain. Each entry contributes its first word as
// a start word, its last word as a terminal and every adjacent pair as a
// transition. Duplicated followers are kept so frequent pairs are drawn more.
func Build(corpus []string) *Chain {
	c := &Chain{
		terminals: make(map[string]bool),
		next:      make(map[string][]string),
	}
	for _, entry := range corpus {
		words := strings.Fields(entry)
		if len(words) == 0 {
			continue
		}
		c.starts = append(c.starts, words[0])
		c.terminals[words[len(words)-1]] = true
		for i := 0; i < len(words)-1; i++ {
			c.next[words[i]] = append(c.next[words[i]], words[i+1])
		}
	}
	return c
}

// Empty reports whether the chain has no start words.
func (c *Chain) Empty() bool {
	return len(c.starts) == 0
}

// walk performs one random walk from a random start word.
func (c *Chain) walk(rng *rand.Rand, minLength int) []string {
	word := c.starts[rng.IntN(len(c.starts))]
	out := []string{word}
	for len(out) < maxWalk {
		followers, ok := c.next[word]
		if !ok {
			break
		}
		word = followers[rng.IntN(len(followers))]
		out = append(out, word)
		if len(out) > minLength && c.terminals[word] {
			break
		}
	}
	return out
}

// Generator produces utterances from corpora. It is safe for concurrent use:
// each call walks with its own source, seeded from the shared one.
type Generator struct {
	botUsername string
	minLength   int
	maxAttempts int

	mu   sync.Mutex
	seed *rand.Rand
}

// Option customizes a Generator.
type Option func(*Generator)

// WithRand sets the random source, mainly for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) {
		if rng != nil {
			g.seed = rng
		}
	}
}

// WithMinLength overrides DefaultMinLength.
func WithMinLength(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.minLength = n
		}
	}
}

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// NewGenerator returns a Generator that strips botUsername's mention token from output.
func NewGenerator(botUsername string, opts ...Option) *Generator {
	g := &Generator{
		botUsername: botUsername,
		minLength:   DefaultMinLength,
		maxAttempts: DefaultMaxAttempts,
		seed:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate synthesizes one utterance from corpus. It fails with
// domain.ErrInsufficientData when corpus cannot yield minLength words.
func (g *Generator) Generate(corpus []string) (string, error) {
	return g.generate(Build(corpus))
}

func (g *Generator) generate(c *Chain) (string, error) {
	if c.Empty() {
		return "", domain.ErrInsufficientData
	}

	rng := g.fork()
	for i := 0; i < g.maxAttempts; i++ {
		words := c.walk(rng, g.minLength)
		if len(words) < g.minLength {
			continue
		}
		text := domain.StripMention(strings.Join(words, " "), g.botUsername)
		if strings.TrimSpace(text) == "" {
			continue
		}
		return text, nil
	}
	return "", domain.ErrInsufficientData
}

// fork derives a private source for one call.
func (g *Generator) fork() *rand.Rand {
	g.mu.Lock()
	defer g.mu.Unlock()
	return rand.New(rand.NewPCG(g.seed.Uint64(), g.seed.Uint64()))
}

// GenerateSpeech joins length utterances into one text, each stripped of its
// sentence-terminal punctuation and closed with ". ". If generation fails
// partway the text produced so far is returned; if nothing was produced the
// error is returned.
func (g *Generator) GenerateSpeech(corpus []string, length int) (string, error) {
	c := Build(corpus)
	return speech(length, func() (string, error) { return g.generate(c) })
}

func speech(length int, next func() (string, error)) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		phrase, err := next()
		if err != nil {
			if b.Len() > 0 {
				return strings.TrimSpace(b.String()), nil
			}
			return "", err
		}
		b.WriteString(stripTerminals(phrase))
		b.WriteString(". ")
	}
	if b.Len() == 0 {
		return "", domain.ErrInsufficientData
	}
	return strings.TrimSpace(b.String()), nil
}

func stripTerminals(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '?', '!':
			return -1
		}
		return r
	}, s)
}
