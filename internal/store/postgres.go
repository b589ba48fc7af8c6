package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		chat_id BIGINT NOT NULL,
		text TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id);

	CREATE TABLE IF NOT EXISTS chat_counters (
		chat_id BIGINT PRIMARY KEY,
		learned BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS stickers (
		chat_id BIGINT NOT NULL,
		file_id TEXT NOT NULL,
		count BIGINT NOT NULL DEFAULT 1,
		PRIMARY KEY (chat_id, file_id)
	);

	CREATE TABLE IF NOT EXISTS chat_configs (
		chat_id BIGINT PRIMARY KEY,
		frequency INTEGER NOT NULL,
		updated_at BIGINT NOT NULL
	);
	`

// NewPostgres creates a PostgreSQL-backed repository from a lib/pq DSN.
func NewPostgres(dsn string, opts ...Option) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return newSQLStore(db, dialectPostgres, opts...), nil
}

// Open returns the repository selected by driver ("sqlite" or "postgres").
func Open(driver, sqlitePath, postgresDSN string, opts ...Option) (Repository, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(sqlitePath, opts...)
	case "postgres":
		return NewPostgres(postgresDSN, opts...)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
