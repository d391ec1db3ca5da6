package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/l0p7/cacher/internal/metrics"
	"github.com/l0p7/cacher/internal/runtime/cache"
	"github.com/l0p7/cacher/internal/runtime/capture"
)

// serve drives one request through a cached route.
func (g *Gateway) serve(w http.ResponseWriter, r *http.Request, next http.Handler, d cache.Directive, label string) {
	start := time.Now()

	ttl, err := d.Seconds()
	if err != nil {
		// directives are validated at construction; this only guards hand-built ones
		g.emitError(err)
		ttl = 0
	}
	if ttl == 0 || !g.enabled.Load() || r.Method != http.MethodGet {
		g.bypass(w, r, next)
		g.metrics.ObserveRequest(label, metrics.RequestBypass, time.Since(start))
		return
	}

	key := g.keyFunc(r)
	logger := g.logger.With(slog.String("cache_key", key))

	if g.honorClientNoCache.Load() && cache.ClientRefusesCache(r.Header) {
		g.setPolicyHeader(w, ttl)
		g.setDiagnostic(w, false)
		next.ServeHTTP(w, r)
		logger.Debug("client refused cached response")
		g.emitMiss(key)
		g.metrics.ObserveRequest(label, metrics.RequestRefused, time.Since(start))
		return
	}

	found, err := g.guard(r.Context(), key)
	if err != nil {
		logger.Error("cache lookup failed, serving uncached", slog.Any("error", err))
		g.emitError(err)
		g.bypass(w, r, next)
		g.metrics.ObserveRequest(label, metrics.RequestError, time.Since(start))
		return
	}

	if found.hit {
		g.replay(w, found.entry, ttl)
		logger.Debug("cache hit")
		g.emitHit(key)
		g.metrics.ObserveRequest(label, metrics.RequestHit, time.Since(start))
		return
	}

	g.record(w, r, next, key, ttl)
	logger.Debug("cache miss", slog.Bool("elected", found.elected))
	g.emitMiss(key)
	g.metrics.ObserveRequest(label, metrics.RequestMiss, time.Since(start))
}

func (g *Gateway) bypass(w http.ResponseWriter, r *http.Request, next http.Handler) {
	w.Header().Set(cache.HeaderCacheControl, cache.NoCacheValue)
	next.ServeHTTP(w, r)
}

// replay writes a stored response. Stored headers are applied verbatim and
// win over the route's policy header.
func (g *Gateway) replay(w http.ResponseWriter, entry cache.Entry, ttl int) {
	g.setPolicyHeader(w, ttl)
	h := w.Header()
	for name, values := range entry.Header() {
		h[name] = values
	}
	g.setDiagnostic(w, true)
	w.WriteHeader(entry.StatusCode)
	if _, err := w.Write(entry.Content); err != nil {
		g.logger.Debug("client went away during replay", slog.Any("error", err))
	}
}

// record runs the handler behind a Recorder and schedules the write-back.
func (g *Gateway) record(w http.ResponseWriter, r *http.Request, next http.Handler, key string, ttl int) {
	g.setPolicyHeader(w, ttl)
	g.setDiagnostic(w, false)

	ctl := &requestControl{}
	req := r.WithContext(context.WithValue(r.Context(), controlKey{}, ctl))
	rec := capture.New(w, g.maxBodyBytes)
	next.ServeHTTP(rec, req)

	if ctl.skip.Load() || !rec.Storable() {
		g.metrics.ObserveRegeneration(metrics.RegenerationSkipped)
		g.logger.Debug("response not stored",
			slog.String("cache_key", key),
			slog.Int("status", rec.StatusCode()),
			slog.Bool("vetoed", ctl.skip.Load()),
			slog.Bool("overflowed", rec.Overflowed()),
		)
		return
	}

	entry, err := rec.End(nil)
	if err != nil {
		g.metrics.ObserveRegeneration(metrics.RegenerationSkipped)
		g.logger.Debug("response not stored", slog.String("cache_key", key), slog.Any("error", err))
		return
	}
	effective := ttl
	if g.ttlOverride != nil {
		effective = g.ttlOverride(ResponseInfo{
			Key:        key,
			Request:    r,
			StatusCode: entry.StatusCode,
			Header:     entry.Header(),
			TTL:        ttl,
		})
	}
	if int64(effective) > cache.MaxTTLSeconds {
		effective = int(cache.MaxTTLSeconds)
	}
	if effective <= 0 {
		g.metrics.ObserveRegeneration(metrics.RegenerationSkipped)
		g.logger.Debug("response not stored", slog.String("cache_key", key), slog.String("reason", "ttl override"))
		return
	}

	ctx := context.WithoutCancel(r.Context())
	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		g.writeBack(ctx, key, entry, effective)
	}()
}

func (g *Gateway) setPolicyHeader(w http.ResponseWriter, ttl int) {
	if g.setCacheControl {
		w.Header().Set(cache.HeaderCacheControl, cache.MaxAgeValue(ttl))
	}
}

func (g *Gateway) setDiagnostic(w http.ResponseWriter, hit bool) {
	if g.diagHeader == "" {
		return
	}
	value := "false"
	if hit {
		value = "true"
	}
	w.Header().Set(g.diagHeader, value)
}
