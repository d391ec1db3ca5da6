package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores entries through go-redis. It is interchangeable with Valkey and
// exists for deployments that already standardise on go-redis clients.
type Redis struct {
	client *redis.Client
	prefix string
	owned  bool
}

// NewRedis dials the configured server and verifies it with PING.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Address == "" {
		return nil, errors.New("cache: redis address required")
	}
	opts := &redis.Options{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS.Enabled {
		tlsConfig, err := loadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts.TLSConfig = tlsConfig
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return &Redis{client: client, prefix: cfg.KeyPrefix, owned: true}, nil
}

// NewRedisFromClient wraps an existing client; Close leaves it open.
func NewRedisFromClient(client *redis.Client, keyPrefix string) *Redis {
	if client == nil {
		panic("cache: redis client cannot be nil")
	}
	return &Redis{client: client, prefix: keyPrefix}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, storeError("redis", OpGet, key, err)
	}
	return data, true, nil
}

// Set uses a zero expiration for non-positive ttl, which go-redis treats as
// "keep forever".
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return storeError("redis", OpSet, key, err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return storeError("redis", OpInvalidate, key, err)
	}
	return nil
}

func (r *Redis) Close(context.Context) error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
