package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/manolo/internal/domain"
	"github.com/ashureev/manolo/internal/fieldcrypt"
	"github.com/ashureev/manolo/internal/shared"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Option customizes a SQLStore.
type Option func(*SQLStore)

// WithCipher seals message text before it is written.
func WithCipher(c fieldcrypt.Cipher) Option {
	return func(s *SQLStore) {
		if c != nil {
			s.cipher = c
		}
	}
}

// WithRetryPolicy overrides how busy-database errors are retried.
func WithRetryPolicy(p shared.RetryPolicy) Option {
	return func(s *SQLStore) {
		s.retry = p
	}
}

// SQLStore implements Repository on database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	cipher  fieldcrypt.Cipher
	retry   shared.RetryPolicy
}

func newSQLStore(db *sql.DB, d dialect, opts ...Option) *SQLStore {
	s := &SQLStore{
		db:      db,
		dialect: d,
		cipher:  fieldcrypt.Plain{},
		retry:   shared.DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// rebind rewrites ? placeholders into the driver's native form.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func storageErr(op string, err error) error {
	return &domain.StorageError{Op: op, Err: err}
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// AppendMessage stores one learned message and bumps the chat counter in the
// same transaction.
func (s *SQLStore) AppendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	sealed, err := s.cipher.Seal(text)
	if err != nil {
		return 0, storageErr("seal message", err)
	}

	var count int
	err = shared.RetryOnConflict(ctx, "append message", s.retry, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			s.rebind(`INSERT INTO messages (chat_id, text, created_at) VALUES (?, ?, ?)`),
			chatID, sealed, time.Now().Unix(),
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		row := tx.QueryRowContext(ctx, s.rebind(`
			INSERT INTO chat_counters (chat_id, learned) VALUES (?, 1)
			ON CONFLICT(chat_id) DO UPDATE SET learned = chat_counters.learned + 1
			RETURNING learned`), chatID)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("bump counter: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, storageErr("append message", err)
	}
	return count, nil
}

// Messages returns every learned message of a chat in insertion order.
func (s *SQLStore) Messages(ctx context.Context, chatID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, text FROM messages WHERE chat_id = ? ORDER BY id`), chatID)
	if err != nil {
		return nil, storageErr("query messages", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var out []string
	for rows.Next() {
		var id int64
		var stored string
		if err := rows.Scan(&id, &stored); err != nil {
			return nil, storageErr("scan message", err)
		}
		text, err := s.cipher.Open(stored)
		if err != nil {
			slog.Warn("Skipping unreadable learned message", "chat_id", chatID, "message_id", id, "error", err)
			continue
		}
		out = append(out, text)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate messages", err)
	}
	return out, nil
}

// CountMessages returns how many messages a chat has learned.
func (s *SQLStore) CountMessages(ctx context.Context, chatID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM messages WHERE chat_id = ?`), chatID).Scan(&n); err != nil {
		return 0, storageErr("count messages", err)
	}
	return n, nil
}

// DeleteMessages forgets every learned message of a chat and resets its counter.
func (s *SQLStore) DeleteMessages(ctx context.Context, chatID int64) error {
	err := shared.RetryOnConflict(ctx, "delete messages", s.retry, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM messages WHERE chat_id = ?`), chatID); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM chat_counters WHERE chat_id = ?`), chatID); err != nil {
			return fmt.Errorf("reset counter: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return storageErr("delete messages", err)
	}
	return nil
}

// RecordSticker creates the sticker record or increments its count.
func (s *SQLStore) RecordSticker(ctx context.Context, chatID int64, fileID string) error {
	query := s.rebind(`
		INSERT INTO stickers (chat_id, file_id, count) VALUES (?, ?, 1)
		ON CONFLICT(chat_id, file_id) DO UPDATE SET count = stickers.count + 1`)
	err := shared.RetryOnConflict(ctx, "record sticker", s.retry, func() error {
		_, err := s.db.ExecContext(ctx, query, chatID, fileID)
		return err
	})
	if err != nil {
		return storageErr("record sticker", err)
	}
	return nil
}

// RandomSticker picks one sticker of the chat uniformly at random.
func (s *SQLStore) RandomSticker(ctx context.Context, chatID int64) (string, bool, error) {
	var fileID string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT file_id FROM stickers WHERE chat_id = ? ORDER BY RANDOM() LIMIT 1`), chatID,
	).Scan(&fileID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("random sticker", err)
	}
	return fileID, true, nil
}

// Stickers lists the stickers of a chat, most seen first.
func (s *SQLStore) Stickers(ctx context.Context, chatID int64) ([]domain.Sticker, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT file_id, count FROM stickers WHERE chat_id = ? ORDER BY count DESC, file_id`), chatID)
	if err != nil {
		return nil, storageErr("query stickers", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close sticker rows", "error", closeErr)
		}
	}()

	var out []domain.Sticker
	for rows.Next() {
		st := domain.Sticker{ChatID: chatID}
		if err := rows.Scan(&st.FileID, &st.Count); err != nil {
			return nil, storageErr("scan sticker", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate stickers", err)
	}
	return out, nil
}

// DeleteStickers forgets every sticker of a chat.
func (s *SQLStore) DeleteStickers(ctx context.Context, chatID int64) error {
	err := shared.RetryOnConflict(ctx, "delete stickers", s.retry, func() error {
		_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM stickers WHERE chat_id = ?`), chatID)
		return err
	})
	if err != nil {
		return storageErr("delete stickers", err)
	}
	return nil
}

// Frequency returns the chat's speaking frequency or domain.DefaultFrequency.
func (s *SQLStore) Frequency(ctx context.Context, chatID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT frequency FROM chat_configs WHERE chat_id = ?`), chatID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultFrequency, nil
	}
	if err != nil {
		return 0, storageErr("get frequency", err)
	}
	if n < 1 {
		return domain.DefaultFrequency, nil
	}
	return n, nil
}

// SetFrequency validates and upserts the chat's speaking frequency.
func (s *SQLStore) SetFrequency(ctx context.Context, chatID int64, frequency int) error {
	if err := domain.ValidateFrequency(frequency); err != nil {
		return err
	}
	query := s.rebind(`
		INSERT INTO chat_configs (chat_id, frequency, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			frequency = excluded.frequency,
			updated_at = excluded.updated_at`)
	err := shared.RetryOnConflict(ctx, "set frequency", s.retry, func() error {
		_, err := s.db.ExecContext(ctx, query, chatID, frequency, time.Now().Unix())
		return err
	})
	if err != nil {
		return storageErr("set frequency", err)
	}
	return nil
}

var _ Repository = (*SQLStore)(nil)
