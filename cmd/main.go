package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/l0p7/cacher/internal/config"
	"github.com/l0p7/cacher/internal/logging"
	"github.com/l0p7/cacher/internal/metrics"
	"github.com/l0p7/cacher/internal/runtime/cache"
	"github.com/l0p7/cacher/internal/runtime/gateway"
	"github.com/l0p7/cacher/internal/server"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file (yaml, json or toml)")
		envPrefix  = flag.String("env-prefix", config.DefaultEnvPrefix, "environment variable prefix")
		watch      = flag.Bool("watch", true, "reload cache toggles when the config file changes")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	if err := run(ctx, cfg, loader, *watch, logger); err != nil {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Info("server shutdown complete")
}

func run(ctx context.Context, cfg config.Config, loader *config.Loader, watch bool, logger *slog.Logger) error {
	store, err := buildStore(ctx, logger.With(slog.String("agent", "store_factory")), cfg.Cache.Store)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder(prometheus.NewRegistry())
	gw, err := buildGateway(cfg, store, recorder, logger)
	if err != nil {
		closeStore(store, logger)
		return err
	}

	if watch && len(loader.Files()) > 0 {
		watcher, err := loader.Watch(ctx, func(next config.Config) {
			applyToggles(gw, next.Cache, logger)
		}, func(err error) {
			logger.Error("config watcher error", slog.Any("error", err))
		})
		if err != nil {
			logger.Error("config watcher setup failed", slog.Any("error", err))
		} else {
			defer watcher.Stop()
		}
	}

	handler, err := server.NewRouter(server.RouterOptions{
		Config:  cfg,
		Gateway: gw,
		Metrics: recorder,
		Logger:  logger,
	})
	if err != nil {
		closeStore(store, logger)
		return err
	}

	srv, err := server.New(cfg, logger, handler)
	if err != nil {
		closeStore(store, logger)
		return err
	}
	srv.OnShutdown(func(context.Context) { gw.Wait() })
	srv.OnShutdown(func(context.Context) { closeStore(store, logger) })

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		closeStore(store, logger)
		return err
	}
	return nil
}

func buildGateway(cfg config.Config, store cache.Store, recorder *metrics.Recorder, logger *slog.Logger) (*gateway.Gateway, error) {
	ttlOverride, err := server.NewTTLOverride(cfg.Cache.TTLOverride, logger)
	if err != nil {
		return nil, fmt.Errorf("cache.ttlOverride: %w", err)
	}
	diag := strings.TrimSpace(cfg.Cache.DiagnosticHeader)
	return gateway.New(gateway.Options{
		Store:               store,
		Logger:              logger,
		Metrics:             recorder,
		Disabled:            !cfg.Cache.Enabled,
		IgnoreClientNoCache: !cfg.Cache.HonorClientNoCache,
		OmitCacheControl:    !cfg.Cache.SetCacheControl,
		DiagnosticHeader:    diag,
		NoDiagnosticHeader:  diag == "",
		GenerationWindow:    cfg.Cache.GenerationWindow(),
		MaxBodyBytes:        cfg.Cache.MaxBodyBytes,
		TTLOverride:         ttlOverride,
	})
}

// applyToggles pushes the hot-reloadable cache switches onto the live gateway.
// Other settings require a restart.
func applyToggles(gw *gateway.Gateway, cfg config.CacheConfig, logger *slog.Logger) {
	if gw.Enabled() != cfg.Enabled || gw.HonorsClientNoCache() != cfg.HonorClientNoCache {
		logger.Info("cache toggles reloaded",
			slog.Bool("enabled", cfg.Enabled),
			slog.Bool("honor_client_no_cache", cfg.HonorClientNoCache))
	}
	gw.SetEnabled(cfg.Enabled)
	gw.SetHonorClientNoCache(cfg.HonorClientNoCache)
}

func buildStore(ctx context.Context, logger *slog.Logger, cfg config.StoreConfig) (cache.Store, error) {
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	redisCfg := cache.RedisConfig{
		Address:   cfg.Redis.Address,
		Username:  cfg.Redis.Username,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.KeyPrefix,
		TLS: cache.RedisTLSConfig{
			Enabled: cfg.Redis.TLS.Enabled,
			CAFile:  cfg.Redis.TLS.CAFile,
		},
	}

	switch backend {
	case "", config.BackendMemory:
		logger.Info("using memory store")
		return cache.NewMemory(), nil
	case config.BackendValkey:
		store, err := cache.NewValkey(ctx, redisCfg)
		if err != nil {
			return nil, fmt.Errorf("valkey store: %w", err)
		}
		logger.Info("using valkey store", slog.String("address", cfg.Redis.Address))
		return store, nil
	case config.BackendRedis:
		store, err := cache.NewRedis(ctx, redisCfg)
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		logger.Info("using redis store", slog.String("address", cfg.Redis.Address))
		return store, nil
	case config.BackendLevelDB:
		store, err := cache.NewLevelDB(cache.LevelDBConfig{
			Path:          cfg.LevelDB.Path,
			SweepInterval: cfg.SweepInterval(),
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("leveldb store: %w", err)
		}
		logger.Info("using leveldb store", slog.String("path", cfg.LevelDB.Path))
		return store, nil
	case config.BackendSQLite:
		store, err := cache.NewSQLite(ctx, cache.SQLiteConfig{
			Path:          cfg.SQLite.Path,
			SweepInterval: cfg.SweepInterval(),
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		logger.Info("using sqlite store", slog.String("path", cfg.SQLite.Path))
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}

func closeStore(store cache.Store, logger *slog.Logger) {
	closer, ok := store.(cache.Closer)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := closer.Close(ctx); err != nil {
		logger.Error("store shutdown failed", slog.Any("error", err))
	}
}
