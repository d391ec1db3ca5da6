package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often disk-backed stores purge expired items.
const DefaultSweepInterval = time.Minute

// sweeper runs purge on a ticker until stopped. Disk-backed stores rely on it
// so expired items vanish without being read again.
type sweeper struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func startSweeper(interval time.Duration, logger *slog.Logger, purge func(context.Context) (int, error)) *sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &sweeper{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := purge(ctx)
				if err != nil {
					logger.Warn("expired entry sweep failed", slog.Any("error", err))
					continue
				}
				if removed > 0 {
					logger.Debug("expired entries swept", slog.Int("removed", removed))
				}
			}
		}
	}()
	return s
}

func (s *sweeper) stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}
