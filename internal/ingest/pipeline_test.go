package ingest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCorpus struct {
	mu    sync.Mutex
	texts map[int64][]string
	fail  func(text string) error
}

func newMemCorpus() *memCorpus {
	return &memCorpus{texts: make(map[int64][]string)}
}

func (m *memCorpus) AppendMessage(_ context.Context, chatID int64, text string) (int, error) {
	if m.fail != nil {
		if err := m.fail(text); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts[chatID] = append(m.texts[chatID], text)
	return len(m.texts[chatID]), nil
}

func (m *memCorpus) get(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts[chatID]...)
}

func splitAll(t *testing.T, r io.Reader) []string {
	t.Helper()
	s := bufio.NewScanner(r)
	s.Split(SplitSentences)
	var out []string
	for s.Scan() {
		out = append(out, s.Text())
	}
	require.NoError(t, s.Err())
	return out
}

func TestIngestSplitsSentences(t *testing.T) {
	corpus := newMemCorpus()
	p := NewPipeline(corpus, "manolo_bot")

	n, err := p.IngestReader(context.Background(), 1, strings.NewReader("Hello there. How are you? Fine!"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	want := []string{"Hello there.", "How are you?", "Fine!"}
	if diff := cmp.Diff(want, corpus.get(1)); diff != "" {
		t.Fatalf("units mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitHandlesQuotesAndEllipsis(t *testing.T) {
	got := splitAll(t, strings.NewReader(`Dijo "vale." Luego... (se fue!) ¿Y? Sin punto`))
	want := []string{`Dijo "vale."`, ` Luego...`, ` (se fue!)`, ` ¿Y?`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("units mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitMultibyteClosingQuote(t *testing.T) {
	got := splitAll(t, strings.NewReader("Me dijo “adiós.” Y se marchó."))
	want := []string{"Me dijo “adiós.”", " Y se marchó."}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("units mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitAcrossSmallReads(t *testing.T) {
	text := "Primera frase aquí. Segunda frase “citada.” ¡Tercera!"
	want := splitAll(t, strings.NewReader(text))
	got := splitAll(t, iotest.OneByteReader(strings.NewReader(text)))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("byte-at-a-time split differs (-want +got):\n%s", diff)
	}
}

func TestIngestStripsMentionAndWhitespace(t *testing.T) {
	corpus := newMemCorpus()
	p := NewPipeline(corpus, "manolo_bot")

	_, err := p.IngestReader(context.Background(), 1, strings.NewReader("Hola @manolo_bot\n  que tal?\n\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hola que tal?"}, corpus.get(1))
}

func TestIngestKeepsPartialProgressOnStreamError(t *testing.T) {
	corpus := newMemCorpus()
	p := NewPipeline(corpus, "")

	r := io.MultiReader(strings.NewReader("Una. Dos. "), iotest.ErrReader(errors.New("connection reset")))
	n, err := p.IngestReader(context.Background(), 1, r)
	require.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"Una.", "Dos."}, corpus.get(1))
}

func TestIngestContinuesPastStorageErrors(t *testing.T) {
	corpus := newMemCorpus()
	boom := errors.New("disk full")
	corpus.fail = func(text string) error {
		if text == "Dos." {
			return boom
		}
		return nil
	}
	p := NewPipeline(corpus, "")

	n, err := p.IngestReader(context.Background(), 1, strings.NewReader("Una. Dos. Tres."))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"Una.", "Tres."}, corpus.get(1))
}

type blockingReader struct {
	release chan struct{}
	r       io.Reader
}

func (b *blockingReader) Read(p []byte) (int, error) {
	<-b.release
	return b.r.Read(p)
}

func TestIngestCollapsesConcurrentRuns(t *testing.T) {
	corpus := newMemCorpus()
	p := NewPipeline(corpus, "")

	release := make(chan struct{})
	var opens atomic.Int32
	open := func(context.Context) (io.ReadCloser, error) {
		opens.Add(1)
		return io.NopCloser(&blockingReader{release: release, r: strings.NewReader("Solo una vez.")}), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := p.Ingest(context.Background(), 5, "file-1", open)
			assert.NoError(t, err)
			assert.Equal(t, 1, n)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	assert.Equal(t, []string{"Solo una vez."}, corpus.get(5))
}

func TestIngestOpenFailure(t *testing.T) {
	p := NewPipeline(newMemCorpus(), "")
	_, err := p.Ingest(context.Background(), 1, "f", func(context.Context) (io.ReadCloser, error) {
		return nil, errors.New("not found")
	})
	require.Error(t, err)
}

func TestIsTextDocument(t *testing.T) {
	assert.True(t, IsTextDocument("libro.txt"))
	assert.True(t, IsTextDocument("LIBRO.TXT"))
	assert.False(t, IsTextDocument("libro.pdf"))
	assert.False(t, IsTextDocument("txt"))
	assert.False(t, IsTextDocument(""))
}
