// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/manolo/internal/domain"
)

// CorpusRepository persists the learned messages of each chat.
type CorpusRepository interface {
	// AppendMessage stores one learned message and returns the chat's message
	// count including it. The count is taken atomically with the insert.
	AppendMessage(ctx context.Context, chatID int64, text string) (int, error)

	// Messages returns every learned message of a chat in insertion order.
	Messages(ctx context.Context, chatID int64) ([]string, error)

	// CountMessages returns how many messages a chat has learned.
	CountMessages(ctx context.Context, chatID int64) (int, error)

	// DeleteMessages forgets every learned message of a chat.
	DeleteMessages(ctx context.Context, chatID int64) error
}

// StickerRepository persists stickers seen in each chat.
type StickerRepository interface {
	// RecordSticker creates the sticker record or increments its count.
	RecordSticker(ctx context.Context, chatID int64, fileID string) error

	// RandomSticker picks one sticker of the chat uniformly at random.
	// ok is false when the chat has no stickers.
	RandomSticker(ctx context.Context, chatID int64) (fileID string, ok bool, err error)

	// Stickers lists the stickers of a chat, most seen first.
	Stickers(ctx context.Context, chatID int64) ([]domain.Sticker, error)

	// DeleteStickers forgets every sticker of a chat.
	DeleteStickers(ctx context.Context, chatID int64) error
}

// ConfigRepository persists per-chat configuration.
type ConfigRepository interface {
	// Frequency returns the chat's speaking frequency or domain.DefaultFrequency.
	Frequency(ctx context.Context, chatID int64) (int, error)

	// SetFrequency validates and upserts the chat's speaking frequency.
	SetFrequency(ctx context.Context, chatID int64, frequency int) error
}

// Repository bundles every persistence concern of the bot.
type Repository interface {
	CorpusRepository
	StickerRepository
	ConfigRepository

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
