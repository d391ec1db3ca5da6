package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/l0p7/cacher/internal/metrics"
	"github.com/l0p7/cacher/internal/runtime/cache"
)

type lookup struct {
	entry   cache.Entry
	hit     bool
	elected bool
}

// guard runs the stale-marker protocol for key. A missing marker means the
// entry is due for regeneration: this request claims it by writing
// REFRESHING for one generation window and is sent down the miss path even if
// an entry still exists. While a marker exists every request is served the
// stored entry, if any.
func (g *Gateway) guard(ctx context.Context, key string) (lookup, error) {
	staleKey := cache.StaleKey(key)
	_, marked, err := g.get(ctx, staleKey)
	if err != nil {
		return lookup{}, err
	}
	if !marked {
		if err := g.set(ctx, staleKey, []byte(cache.MarkerRefreshing), g.window); err != nil {
			return lookup{}, err
		}
		g.metrics.ObserveRegeneration(metrics.RegenerationElected)
		g.logger.Debug("regeneration claimed", slog.String("cache_key", key))
		return lookup{elected: true}, nil
	}

	raw, found, err := g.get(ctx, key)
	if err != nil {
		return lookup{}, err
	}
	if !found {
		return lookup{}, nil
	}
	entry, err := cache.DecodeEntry(raw)
	if err != nil {
		err = fmt.Errorf("gateway: entry %q: %w", key, err)
		g.logger.Warn("discarding unreadable cache entry", slog.String("cache_key", key), slog.Any("error", err))
		g.emitError(err)
		return lookup{}, nil
	}
	return lookup{entry: entry, hit: true}, nil
}

// writeBack stores entry for ttl+2×window and then marks it CREATED for ttl.
// The marker is only written once the entry is safely stored.
func (g *Gateway) writeBack(ctx context.Context, key string, entry cache.Entry, ttl int) {
	payload, err := entry.Encode()
	if err != nil {
		g.failWriteBack(key, fmt.Errorf("gateway: encode entry %q: %w", key, err))
		return
	}
	nominal := time.Duration(ttl) * time.Second
	storage := nominal + 2*g.window
	if storage < nominal {
		storage = time.Duration(math.MaxInt64)
	}
	if err := g.set(ctx, key, payload, storage); err != nil {
		g.failWriteBack(key, err)
		return
	}
	if err := g.set(ctx, cache.StaleKey(key), []byte(cache.MarkerCreated), nominal); err != nil {
		g.failWriteBack(key, err)
		return
	}
	g.metrics.ObserveRegeneration(metrics.RegenerationStored)
	g.logger.Debug("response cached",
		slog.String("cache_key", key),
		slog.Int("status", entry.StatusCode),
		slog.Int("ttl_seconds", ttl),
	)
	g.emitCache(key, entry)
}

func (g *Gateway) failWriteBack(key string, err error) {
	g.logger.Error("cache write-back failed", slog.String("cache_key", key), slog.Any("error", err))
	g.emitError(err)
}

func (g *Gateway) get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, found, err := g.store.Get(ctx, key)
	result := metrics.StoreNotFound
	switch {
	case err != nil:
		result = metrics.StoreFailed
	case found:
		result = metrics.StoreFound
	}
	g.metrics.ObserveStore(cache.OpGet, result, time.Since(start))
	return value, found, err
}

func (g *Gateway) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := g.store.Set(ctx, key, value, ttl)
	result := metrics.StoreOK
	if err != nil {
		result = metrics.StoreFailed
	}
	g.metrics.ObserveStore(cache.OpSet, result, time.Since(start))
	return err
}
