package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/l0p7/cacher/internal/logging"
)

// correlate propagates the correlation header upstream, generating an ID when
// the client did not send one, and records it on the request context.
func correlate(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if header == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(header))
			if id == "" {
				id = uuid.NewString()
				r.Header.Set(header, id)
			}
			next.ServeHTTP(w, r.WithContext(logging.WithCorrelationID(r.Context(), id)))
		})
	}
}

// accessLog emits one record per request with status, latency and the cache
// diagnostic header when present.
func accessLog(logger *slog.Logger, diagHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Float64("latency_ms", float64(time.Since(start))/float64(time.Millisecond)),
			}
			if diagHeader != "" {
				if v := ww.Header().Get(diagHeader); v != "" {
					attrs = append(attrs, slog.String("cache_hit", v))
				}
			}
			if id := logging.CorrelationID(r.Context()); id != "" {
				attrs = append(attrs, slog.String("correlation_id", id))
			}
			logger.LogAttrs(r.Context(), slog.LevelInfo, "request served", attrs...)
		})
	}
}
