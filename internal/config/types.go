package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/l0p7/cacher/internal/runtime/cache"
)

// Config holds every option the cacher binary understands.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Cache    CacheConfig    `koanf:"cache"`
	Routes   []RouteConfig  `koanf:"routes"`
}

// ServerConfig collects listener, logging and admin knobs.
type ServerConfig struct {
	Listen  ListenConfig  `koanf:"listen"`
	Logging LoggingConfig `koanf:"logging"`
	Admin   AdminConfig   `koanf:"admin"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level, format, and correlation ID wiring.
type LoggingConfig struct {
	Level             string `koanf:"level"`
	Format            string `koanf:"format"`
	CorrelationHeader string `koanf:"correlationHeader"`
}

// AdminConfig exposes invalidation under PathPrefix.
type AdminConfig struct {
	Enabled    bool   `koanf:"enabled"`
	PathPrefix string `koanf:"pathPrefix"`
}

// UpstreamConfig points at the origin whose responses are cached.
type UpstreamConfig struct {
	URL            string `koanf:"url"`
	TimeoutSeconds int    `koanf:"timeoutSeconds"`
}

type CacheConfig struct {
	Enabled                 bool        `koanf:"enabled"`
	HonorClientNoCache      bool        `koanf:"honorClientNoCache"`
	SetCacheControl         bool        `koanf:"setCacheControl"`
	DiagnosticHeader        string      `koanf:"diagnosticHeader"`
	GenerationWindowSeconds int         `koanf:"generationWindowSeconds"`
	MaxBodyBytes            int         `koanf:"maxBodyBytes"`
	TTLOverride             string      `koanf:"ttlOverride"`
	Store                   StoreConfig `koanf:"store"`
}

// GenerationWindow is GenerationWindowSeconds as a duration.
func (c CacheConfig) GenerationWindow() time.Duration {
	return time.Duration(c.GenerationWindowSeconds) * time.Second
}

type StoreConfig struct {
	Backend              string           `koanf:"backend"`
	KeyPrefix            string           `koanf:"keyPrefix"`
	SweepIntervalSeconds int              `koanf:"sweepIntervalSeconds"`
	Redis                RedisStoreConfig `koanf:"redis"`
	LevelDB              PathStoreConfig  `koanf:"leveldb"`
	SQLite               PathStoreConfig  `koanf:"sqlite"`
}

// SweepInterval is SweepIntervalSeconds as a duration.
func (c StoreConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

type RedisStoreConfig struct {
	Address  string         `koanf:"address"`
	Username string         `koanf:"username"`
	Password string         `koanf:"password"`
	DB       int            `koanf:"db"`
	TLS      RedisTLSConfig `koanf:"tls"`
}

type RedisTLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

type PathStoreConfig struct {
	Path string `koanf:"path"`
}

// RouteConfig binds a caching directive to a path prefix. Multiplier defaults
// to 1 when omitted.
type RouteConfig struct {
	Path       string `koanf:"path"`
	Unit       string `koanf:"unit"`
	Multiplier *int   `koanf:"multiplier"`
	Disabled   bool   `koanf:"disabled"`
}

// Directive converts the route into a validated caching directive.
func (r RouteConfig) Directive() (cache.Directive, error) {
	if r.Disabled {
		return cache.Disabled(), nil
	}
	if r.Multiplier == nil {
		return cache.NewDirective(r.Unit)
	}
	return cache.NewDirective(r.Unit, *r.Multiplier)
}

// Store backends.
const (
	BackendMemory  = "memory"
	BackendValkey  = "valkey"
	BackendRedis   = "redis"
	BackendLevelDB = "leveldb"
	BackendSQLite  = "sqlite"
)

// Validate enforces invariants that keep the runtime predictable before serving traffic.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if c.Server.Listen.Port <= 0 || c.Server.Listen.Port > 65535 {
		return fmt.Errorf("config: listen.port invalid: %d", c.Server.Listen.Port)
	}
	if c.Server.Admin.Enabled && !strings.HasPrefix(c.Server.Admin.PathPrefix, "/") {
		return fmt.Errorf("config: server.admin.pathPrefix must start with /: %q", c.Server.Admin.PathPrefix)
	}
	if err := c.Upstream.validate(); err != nil {
		return err
	}
	if c.Cache.GenerationWindowSeconds <= 0 {
		return fmt.Errorf("config: cache.generationWindowSeconds invalid: %d", c.Cache.GenerationWindowSeconds)
	}
	if c.Cache.MaxBodyBytes < 0 {
		return fmt.Errorf("config: cache.maxBodyBytes invalid: %d", c.Cache.MaxBodyBytes)
	}
	if err := c.Cache.Store.validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Routes))
	for i, route := range c.Routes {
		if !strings.HasPrefix(route.Path, "/") {
			return fmt.Errorf("config: routes[%d].path must start with /: %q", i, route.Path)
		}
		if _, dup := seen[route.Path]; dup {
			return fmt.Errorf("config: routes[%d].path duplicated: %s", i, route.Path)
		}
		seen[route.Path] = struct{}{}
		if _, err := route.Directive(); err != nil {
			return fmt.Errorf("config: routes[%d] (%s): %w", i, route.Path, err)
		}
	}
	return nil
}

func (u UpstreamConfig) validate() error {
	if strings.TrimSpace(u.URL) == "" {
		return errors.New("config: upstream.url required")
	}
	parsed, err := url.Parse(u.URL)
	if err != nil {
		return fmt.Errorf("config: upstream.url invalid: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("config: upstream.url scheme unsupported: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("config: upstream.url host required: %q", u.URL)
	}
	if u.TimeoutSeconds < 0 {
		return fmt.Errorf("config: upstream.timeoutSeconds invalid: %d", u.TimeoutSeconds)
	}
	return nil
}

func (s StoreConfig) validate() error {
	if s.SweepIntervalSeconds < 0 {
		return fmt.Errorf("config: cache.store.sweepIntervalSeconds invalid: %d", s.SweepIntervalSeconds)
	}
	switch strings.TrimSpace(strings.ToLower(s.Backend)) {
	case "", BackendMemory, BackendSQLite:
	case BackendValkey, BackendRedis:
		if strings.TrimSpace(s.Redis.Address) == "" {
			return fmt.Errorf("config: cache.store.redis.address required for %s backend", s.Backend)
		}
	case BackendLevelDB:
		if strings.TrimSpace(s.LevelDB.Path) == "" {
			return errors.New("config: cache.store.leveldb.path required for leveldb backend")
		}
	default:
		return fmt.Errorf("config: cache.store.backend unsupported: %s", s.Backend)
	}
	return nil
}

// DefaultConfig returns the baseline values.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen: ListenConfig{
				Address: "0.0.0.0",
				Port:    8080,
			},
			Logging: LoggingConfig{
				Level:             "info",
				Format:            "json",
				CorrelationHeader: "X-Request-ID",
			},
			Admin: AdminConfig{
				Enabled:    true,
				PathPrefix: "/_cacher",
			},
		},
		Upstream: UpstreamConfig{
			URL:            "http://127.0.0.1:3000",
			TimeoutSeconds: 30,
		},
		Cache: CacheConfig{
			Enabled:                 true,
			HonorClientNoCache:      true,
			SetCacheControl:         true,
			DiagnosticHeader:        "X-Cacher-Hit",
			GenerationWindowSeconds: 30,
			Store: StoreConfig{
				Backend:              BackendMemory,
				SweepIntervalSeconds: 60,
				LevelDB:              PathStoreConfig{Path: "./data/leveldb"},
				SQLite:               PathStoreConfig{Path: "./data/cache.db"},
			},
		},
	}
}
