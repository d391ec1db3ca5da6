package cache

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

type RedisTLSConfig struct {
	Enabled bool
	CAFile  string
}

// RedisConfig is shared by the valkey and go-redis backends.
type RedisConfig struct {
	Address   string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	TLS       RedisTLSConfig
}

// Valkey stores entries in a Valkey/Redis server through valkey-go.
type Valkey struct {
	client valkey.Client
	prefix string
}

func NewValkey(ctx context.Context, cfg RedisConfig) (*Valkey, error) {
	if cfg.Address == "" {
		return nil, errors.New("cache: valkey address required")
	}

	option := valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	}

	if cfg.TLS.Enabled {
		tlsConfig, err := loadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		option.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("cache: valkey client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: valkey ping: %w", err)
	}

	return &Valkey{client: client, prefix: cfg.KeyPrefix}, nil
}

func (c *Valkey) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(c.prefix+key).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return nil, false, nil
		}
		return nil, false, storeError("valkey", OpGet, key, err)
	}
	payload, err := resp.AsBytes()
	if err != nil {
		return nil, false, storeError("valkey", OpGet, key, err)
	}
	return payload, true, nil
}

func (c *Valkey) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	builder := c.client.B().Set().Key(c.prefix + key).Value(valkey.BinaryString(value))
	var err error
	if ttl > 0 {
		err = c.client.Do(ctx, builder.Px(ttl).Build()).Error()
	} else {
		err = c.client.Do(ctx, builder.Build()).Error()
	}
	if err != nil {
		return storeError("valkey", OpSet, key, err)
	}
	return nil
}

func (c *Valkey) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Do(ctx, c.client.B().Del().Key(c.prefix+key).Build()).Error(); err != nil {
		return storeError("valkey", OpInvalidate, key, err)
	}
	return nil
}

func (c *Valkey) Close(context.Context) error {
	c.client.Close()
	return nil
}

func loadTLSConfig(cfg RedisTLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.CAFile == "" {
		return tlsConfig, nil
	}
	caData, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("cache: read redis ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caData) {
		return nil, errors.New("cache: redis ca file contains no certificates")
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}
