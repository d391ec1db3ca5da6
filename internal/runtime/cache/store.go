package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store is the contract every backing store satisfies. Values are opaque and
// expiry is enforced by the backend: an item must disappear once ttl elapses.
// A missing key is reported as (nil, false, nil), never as an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Closer is implemented by stores that hold connections, files or timers.
type Closer interface {
	Close(ctx context.Context) error
}

// Store operations, used in StoreError and metrics labels.
const (
	OpGet        = "get"
	OpSet        = "set"
	OpInvalidate = "invalidate"
)

// StoreError wraps a backend failure. It is recoverable: callers degrade to
// serving uncached responses.
type StoreError struct {
	Backend string
	Op      string
	Key     string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cache: %s %s %q: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

var errStoreClosed = errors.New("store closed")

func storeError(backend, op, key string, err error) error {
	return &StoreError{Backend: backend, Op: op, Key: key, Err: err}
}
