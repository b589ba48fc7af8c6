package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	googleTTSURL  = "https://translate.google.com/translate_tts"
	googleMaxRune = 100
	userAgent     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// Google uses the public Google Translate speech endpoint, producing MP3.
type Google struct {
	http    *http.Client
	baseURL string
}

// GoogleOption configures Google.
type GoogleOption func(*Google)

// WithEndpoint overrides the speech endpoint.
func WithEndpoint(u string) GoogleOption {
	return func(g *Google) { g.baseURL = u }
}

// WithClient overrides the HTTP client.
func WithClient(c *http.Client) GoogleOption {
	return func(g *Google) { g.http = c }
}

// NewGoogle creates a Google synthesizer.
func NewGoogle(opts ...GoogleOption) *Google {
	g := &Google{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: googleTTSURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Synthesize fetches each chunk of text and concatenates the MP3 frames into dst.
func (g *Google) Synthesize(ctx context.Context, text, lang, dst string) (err error) {
	chunks := splitText(text, googleMaxRune)
	if len(chunks) == 0 {
		return errors.New("tts: empty text")
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	for i, chunk := range chunks {
		if err := g.fetch(ctx, f, chunk, lang, i, len(chunks)); err != nil {
			return err
		}
	}
	slog.Debug("Speech synthesized", "backend", BackendGoogle, "chunks", len(chunks), "path", dst)
	return nil
}

func (g *Google) fetch(ctx context.Context, w io.Writer, chunk, lang string, idx, total int) error {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", chunk)
	q.Set("tl", lang)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(len([]rune(chunk))))
	q.Set("client", "tw-ob")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tts http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("tts read: %w", err)
	}
	return nil
}
