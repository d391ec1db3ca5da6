package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix namespaces environment overrides (CACHER_SERVER__LISTEN__PORT).
const DefaultEnvPrefix = "CACHER"

// Loader hydrates the runtime configuration while respecting env > file > default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a config hydrator that honors the env-first contract before touching files or defaults.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Files returns the configured file paths, skipping empty entries.
func (l *Loader) Files() []string {
	out := make([]string, 0, len(l.files))
	for _, path := range l.files {
		if path != "" {
			out = append(out, path)
		}
	}
	return out
}

// canonicalKeys restores camelCase keys flattened by the env transform.
var canonicalKeys = map[string]string{
	"server.logging.correlationheader": "server.logging.correlationHeader",
	"server.admin.pathprefix":          "server.admin.pathPrefix",
	"upstream.timeoutseconds":          "upstream.timeoutSeconds",
	"cache.honorclientnocache":         "cache.honorClientNoCache",
	"cache.setcachecontrol":            "cache.setCacheControl",
	"cache.diagnosticheader":           "cache.diagnosticHeader",
	"cache.generationwindowseconds":    "cache.generationWindowSeconds",
	"cache.maxbodybytes":               "cache.maxBodyBytes",
	"cache.ttloverride":                "cache.ttlOverride",
	"cache.store.keyprefix":            "cache.store.keyPrefix",
	"cache.store.sweepintervalseconds": "cache.store.sweepIntervalSeconds",
	"cache.store.redis.tls.cafile":     "cache.store.redis.tls.caFile",
}

// Load assembles the effective snapshot using the documented precedence rules.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(DefaultConfig()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.Files() {
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		parser, err := parserFor(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		transform := func(s string) string {
			// Double underscores signal a nested path (CACHER_SERVER__LISTEN__PORT -> server.listen.port).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			key = strings.ReplaceAll(key, "_", "")
			lower := strings.ToLower(key)
			if mapped, ok := canonicalKeys[lower]; ok {
				return mapped
			}
			return lower
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	case ".toml", ".tml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("config: unsupported config file extension %s", ext)
	}
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"listen": map[string]any{
				"address": cfg.Server.Listen.Address,
				"port":    cfg.Server.Listen.Port,
			},
			"logging": map[string]any{
				"level":             cfg.Server.Logging.Level,
				"format":            cfg.Server.Logging.Format,
				"correlationHeader": cfg.Server.Logging.CorrelationHeader,
			},
			"admin": map[string]any{
				"enabled":    cfg.Server.Admin.Enabled,
				"pathPrefix": cfg.Server.Admin.PathPrefix,
			},
		},
		"upstream": map[string]any{
			"url":            cfg.Upstream.URL,
			"timeoutSeconds": cfg.Upstream.TimeoutSeconds,
		},
		"cache": map[string]any{
			"enabled":                 cfg.Cache.Enabled,
			"honorClientNoCache":      cfg.Cache.HonorClientNoCache,
			"setCacheControl":         cfg.Cache.SetCacheControl,
			"diagnosticHeader":        cfg.Cache.DiagnosticHeader,
			"generationWindowSeconds": cfg.Cache.GenerationWindowSeconds,
			"maxBodyBytes":            cfg.Cache.MaxBodyBytes,
			"ttlOverride":             cfg.Cache.TTLOverride,
			"store": map[string]any{
				"backend":              cfg.Cache.Store.Backend,
				"keyPrefix":            cfg.Cache.Store.KeyPrefix,
				"sweepIntervalSeconds": cfg.Cache.Store.SweepIntervalSeconds,
				"redis": map[string]any{
					"address":  cfg.Cache.Store.Redis.Address,
					"username": cfg.Cache.Store.Redis.Username,
					"password": cfg.Cache.Store.Redis.Password,
					"db":       cfg.Cache.Store.Redis.DB,
					"tls": map[string]any{
						"enabled": cfg.Cache.Store.Redis.TLS.Enabled,
						"caFile":  cfg.Cache.Store.Redis.TLS.CAFile,
					},
				},
				"leveldb": map[string]any{"path": cfg.Cache.Store.LevelDB.Path},
				"sqlite":  map[string]any{"path": cfg.Cache.Store.SQLite.Path},
			},
		},
	}
}
