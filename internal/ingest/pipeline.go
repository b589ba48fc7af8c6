package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ashureev/manolo/internal/domain"
	"golang.org/x/sync/singleflight"
)

// maxUnitBytes caps a single sentence; longer runs without punctuation abort the stream.
const maxUnitBytes = 1 << 20

// Appender is the corpus write path used by the pipeline.
type Appender interface {
	AppendMessage(ctx context.Context, chatID int64, text string) (int, error)
}

// Opener opens the document stream lazily.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Pipeline splits documents into units and appends each to the corpus.
type Pipeline struct {
	corpus      Appender
	botUsername string
	group       singleflight.Group
}

// NewPipeline creates a pipeline writing into corpus.
func NewPipeline(corpus Appender, botUsername string) *Pipeline {
	return &Pipeline{corpus: corpus, botUsername: botUsername}
}

// IsTextDocument reports whether fileName has an accepted plain-text extension.
func IsTextDocument(fileName string) bool {
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(fileName)), ".txt")
}

// Ingest learns the document identified by (chatID, fileID). Concurrent calls
// for the same key share one run and the stream is opened once.
func (p *Pipeline) Ingest(ctx context.Context, chatID int64, fileID string, open Opener) (int, error) {
	key := fmt.Sprintf("%d:%s", chatID, fileID)
	v, err, shared := p.group.Do(key, func() (any, error) {
		rc, err := open(ctx)
		if err != nil {
			return 0, &domain.DeliveryError{Op: "open document", Err: err}
		}
		defer func() {
			if closeErr := rc.Close(); closeErr != nil {
				slog.Debug("failed to close document stream", "chat_id", chatID, "file_id", fileID, "error", closeErr)
			}
		}()
		return p.IngestReader(ctx, chatID, rc)
	})
	if shared {
		slog.Debug("Document ingestion shared with concurrent request", "chat_id", chatID, "file_id", fileID)
	}
	n, _ := v.(int)
	return n, err
}

// IngestReader streams r into the corpus of chatID and returns how many units
// were stored. Units already stored are kept when the stream fails.
func (p *Pipeline) IngestReader(ctx context.Context, chatID int64, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxUnitBytes)
	scanner.Split(SplitSentences)

	stored := 0
	var storeErr error
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		unit := p.normalize(scanner.Text())
		if unit == "" {
			continue
		}
		if _, err := p.corpus.AppendMessage(ctx, chatID, unit); err != nil {
			slog.Warn("Failed to store document unit", "chat_id", chatID, "error", err)
			if storeErr == nil {
				storeErr = err
			}
			continue
		}
		stored++
	}
	if err := scanner.Err(); err != nil {
		return stored, errors.Join(fmt.Errorf("read document: %w", err), storeErr)
	}
	return stored, storeErr
}

func (p *Pipeline) normalize(unit string) string {
	unit = strings.Join(strings.Fields(unit), " ")
	return domain.StripMention(unit, p.botUsername)
}
