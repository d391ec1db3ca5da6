package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/l0p7/cacher/internal/metrics"
	"github.com/l0p7/cacher/internal/runtime/cache"
)

const (
	// DefaultGenerationWindow bounds how long an elected request may take to
	// regenerate an entry before another request is elected.
	DefaultGenerationWindow = 30 * time.Second
	// DefaultDiagnosticHeader reports whether a response came from the store.
	DefaultDiagnosticHeader = "X-Cacher-Hit"
)

// ErrInvalidClient is returned by New when no store is supplied.
var ErrInvalidClient = errors.New("gateway: a store implementing Get, Set and Invalidate is required")

// KeyFunc derives the cache key for a request.
type KeyFunc func(r *http.Request) string

// ResponseInfo describes a captured response before it is written back.
type ResponseInfo struct {
	Key        string
	Request    *http.Request
	StatusCode int
	Header     http.Header
	TTL        int
}

// TTLOverrideFunc returns the ttl in seconds to store a captured response
// with. Returning 0 skips the write entirely.
type TTLOverrideFunc func(info ResponseInfo) int

// Options configures a Gateway.
type Options struct {
	Store   cache.Store
	Logger  *slog.Logger
	Metrics *metrics.Recorder

	Observers []Observer

	// Disabled starts the gateway with caching switched off.
	Disabled bool
	// IgnoreClientNoCache serves cached responses even when the client asked
	// for a fresh one.
	IgnoreClientNoCache bool
	// OmitCacheControl stops the gateway from setting max-age on cached routes.
	OmitCacheControl bool
	// DiagnosticHeader defaults to DefaultDiagnosticHeader.
	DiagnosticHeader string
	// NoDiagnosticHeader suppresses the diagnostic header.
	NoDiagnosticHeader bool

	GenerationWindow time.Duration
	// MaxBodyBytes caps captured bodies. Zero means unlimited.
	MaxBodyBytes int

	KeyFunc     KeyFunc
	TTLOverride TTLOverrideFunc
}

// Gateway intercepts requests on cached routes, serving stored responses and
// recording fresh ones.
type Gateway struct {
	store   cache.Store
	logger  *slog.Logger
	metrics *metrics.Recorder

	window          time.Duration
	diagHeader      string
	setCacheControl bool
	maxBodyBytes    int
	keyFunc         KeyFunc
	ttlOverride     TTLOverrideFunc

	enabled            atomic.Bool
	honorClientNoCache atomic.Bool

	obsMu     sync.RWMutex
	observers []Observer

	pending sync.WaitGroup
}

// New validates opts and returns a ready gateway.
func New(opts Options) (*Gateway, error) {
	if opts.Store == nil {
		return nil, ErrInvalidClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	window := opts.GenerationWindow
	if window <= 0 {
		window = DefaultGenerationWindow
	}
	diag := opts.DiagnosticHeader
	if diag == "" {
		diag = DefaultDiagnosticHeader
	}
	if opts.NoDiagnosticHeader {
		diag = ""
	}
	keyFunc := opts.KeyFunc
	if keyFunc == nil {
		keyFunc = RequestKey
	}

	g := &Gateway{
		store:           opts.Store,
		logger:          logger.With(slog.String("agent", "gateway")),
		metrics:         opts.Metrics,
		window:          window,
		diagHeader:      diag,
		setCacheControl: !opts.OmitCacheControl,
		maxBodyBytes:    opts.MaxBodyBytes,
		keyFunc:         keyFunc,
		ttlOverride:     opts.TTLOverride,
	}
	g.enabled.Store(!opts.Disabled)
	g.honorClientNoCache.Store(!opts.IgnoreClientNoCache)
	for _, o := range opts.Observers {
		g.Subscribe(o)
	}
	return g, nil
}

// RequestKey keys a request by its full request-target as received, so routers
// mounted under different prefixes never share entries.
func RequestKey(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}

// SetEnabled flips the kill switch. Disabled gateways answer every request
// with Cache-Control: no-cache and never touch the store.
func (g *Gateway) SetEnabled(enabled bool) { g.enabled.Store(enabled) }

// Enabled reports the kill switch state.
func (g *Gateway) Enabled() bool { return g.enabled.Load() }

// SetHonorClientNoCache controls whether client no-cache requests bypass the
// store.
func (g *Gateway) SetHonorClientNoCache(honor bool) { g.honorClientNoCache.Store(honor) }

// HonorsClientNoCache reports whether client no-cache requests bypass the store.
func (g *Gateway) HonorsClientNoCache() bool { return g.honorClientNoCache.Load() }

// Invalidate deletes the entry stored under key. The stale marker is left in
// place, so the next request regenerates the entry.
func (g *Gateway) Invalidate(ctx context.Context, key string) error {
	start := time.Now()
	err := g.store.Invalidate(ctx, key)
	if err != nil {
		g.metrics.ObserveStore(cache.OpInvalidate, metrics.StoreFailed, time.Since(start))
		g.logger.Error("cache invalidate failed", slog.String("cache_key", key), slog.Any("error", err))
		g.emitError(err)
		return err
	}
	g.metrics.ObserveStore(cache.OpInvalidate, metrics.StoreOK, time.Since(start))
	g.logger.Debug("cache entry invalidated", slog.String("cache_key", key))
	return nil
}

// Wait blocks until every pending write-back has finished.
func (g *Gateway) Wait() {
	g.pending.Wait()
}

type controlKey struct{}

type requestControl struct {
	skip atomic.Bool
}

// SkipCache vetoes storing the response for the current request. It reports
// false when r is not being served through a cached route.
func SkipCache(r *http.Request) bool {
	ctl, ok := r.Context().Value(controlKey{}).(*requestControl)
	if !ok {
		return false
	}
	ctl.skip.Store(true)
	return true
}
