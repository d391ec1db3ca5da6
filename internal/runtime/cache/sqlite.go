package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteConfig locates the database file. An empty path opens a private
// in-memory database.
type SQLiteConfig struct {
	Path          string
	SweepInterval time.Duration
	Logger        *slog.Logger
}

// SQLite persists entries in a single table keyed by cache key.
type SQLite struct {
	db    *sql.DB
	sweep *sweeper
}

func NewSQLite(ctx context.Context, cfg SQLiteConfig) (*SQLite, error) {
	dsn := cfg.Path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite %s: %w", dsn, err)
	}
	// one connection keeps ":memory:" databases coherent and serialises writers
	db.SetMaxOpenConns(1)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			key TEXT PRIMARY KEY,
			expires_at INTEGER NOT NULL,
			value BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS entries_expires_idx ON entries (expires_at)`,
	}
	if cfg.Path != "" {
		statements = append(statements, `PRAGMA journal_mode=WAL`)
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cache: prepare sqlite schema: %w", err)
		}
	}

	s := &SQLite{db: db}
	logger := cfg.Logger
	if logger != nil {
		logger = logger.With(slog.String("store", "sqlite"))
	}
	s.sweep = startSweeper(cfg.SweepInterval, logger, s.purgeExpired)
	return s, nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var expiresAt int64
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT expires_at, value FROM entries WHERE key = ?`, key).Scan(&expiresAt, &value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, storeError("sqlite", OpGet, key, err)
	}
	if expired(expiresAt, time.Now()) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ? AND expires_at = ?`, key, expiresAt); err != nil {
			return nil, false, storeError("sqlite", OpGet, key, err)
		}
		return nil, false, nil
	}
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO entries (key, expires_at, value) VALUES (?, ?, ?)`,
		key, expiryFor(ttl), value)
	if err != nil {
		return storeError("sqlite", OpSet, key, err)
	}
	return nil
}

func (s *SQLite) Invalidate(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return storeError("sqlite", OpInvalidate, key, err)
	}
	return nil
}

func (s *SQLite) Close(context.Context) error {
	s.sweep.stop()
	return s.db.Close()
}

func (s *SQLite) purgeExpired(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE expires_at != 0 AND expires_at <= ?`, time.Now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("cache: sqlite sweep: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache: sqlite sweep: %w", err)
	}
	return int(removed), nil
}
