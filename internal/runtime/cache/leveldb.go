package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const levelDBKeyPrefix = "e:"

// LevelDBConfig locates the database directory.
type LevelDBConfig struct {
	Path          string
	SweepInterval time.Duration
	Logger        *slog.Logger
}

// LevelDB persists entries on local disk. Each value is framed with its expiry
// (unix nanoseconds, zero meaning none) so reads can reject stale items before
// the sweeper gets to them.
type LevelDB struct {
	db    *leveldb.DB
	sweep *sweeper
}

func NewLevelDB(cfg LevelDBConfig) (*LevelDB, error) {
	if cfg.Path == "" {
		return nil, errors.New("cache: leveldb path required")
	}
	db, err := leveldb.OpenFile(cfg.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: open leveldb %s: %w", cfg.Path, err)
	}
	l := &LevelDB{db: db}
	logger := cfg.Logger
	if logger != nil {
		logger = logger.With(slog.String("store", "leveldb"))
	}
	l.sweep = startSweeper(cfg.SweepInterval, logger, l.purgeExpired)
	return l, nil
}

func (l *LevelDB) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, err := l.db.Get([]byte(levelDBKeyPrefix+key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, storeError("leveldb", OpGet, key, err)
	}
	expiresAt, payload, ok := unframe(raw)
	if !ok {
		return nil, false, storeError("leveldb", OpGet, key, errors.New("truncated value"))
	}
	// expired frames are left for the sweeper; deleting here could drop a
	// Set that landed after the read
	if expired(expiresAt, time.Now()) {
		return nil, false, nil
	}
	return payload, true, nil
}

func (l *LevelDB) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := l.db.Put([]byte(levelDBKeyPrefix+key), frame(expiryFor(ttl), value), nil); err != nil {
		return storeError("leveldb", OpSet, key, err)
	}
	return nil
}

func (l *LevelDB) Invalidate(_ context.Context, key string) error {
	if err := l.db.Delete([]byte(levelDBKeyPrefix+key), nil); err != nil {
		return storeError("leveldb", OpInvalidate, key, err)
	}
	return nil
}

func (l *LevelDB) Close(context.Context) error {
	l.sweep.stop()
	return l.db.Close()
}

// purgeExpired scans and deletes inside one transaction, which blocks
// concurrent writes, so a key rewritten during the sweep is never removed.
func (l *LevelDB) purgeExpired(ctx context.Context) (int, error) {
	tr, err := l.db.OpenTransaction()
	if err != nil {
		return 0, fmt.Errorf("cache: leveldb sweep: %w", err)
	}

	now := time.Now()
	it := tr.NewIterator(util.BytesPrefix([]byte(levelDBKeyPrefix)), nil)
	var stale [][]byte
	for it.Next() {
		if ctx.Err() != nil {
			break
		}
		expiresAt, _, ok := unframe(it.Value())
		if !ok || expired(expiresAt, now) {
			stale = append(stale, append([]byte(nil), it.Key()...))
		}
	}
	it.Release()
	if err := it.Error(); err != nil {
		tr.Discard()
		return 0, fmt.Errorf("cache: leveldb sweep: %w", err)
	}
	for _, k := range stale {
		if err := tr.Delete(k, nil); err != nil {
			tr.Discard()
			return 0, fmt.Errorf("cache: leveldb sweep: %w", err)
		}
	}
	if err := tr.Commit(); err != nil {
		return 0, fmt.Errorf("cache: leveldb sweep: %w", err)
	}
	return len(stale), nil
}

func expiryFor(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return time.Now().Add(ttl).UnixNano()
}

func expired(expiresAt int64, now time.Time) bool {
	return expiresAt != 0 && now.UnixNano() >= expiresAt
}

func frame(expiresAt int64, payload []byte) []byte {
	out := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(out[:8], uint64(expiresAt))
	copy(out[8:], payload)
	return out
}

func unframe(raw []byte) (int64, []byte, bool) {
	if len(raw) < 8 {
		return 0, nil, false
	}
	return int64(binary.BigEndian.Uint64(raw[:8])), raw[8:], true
}
