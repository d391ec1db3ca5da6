package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/l0p7/cacher/internal/config"
	"github.com/l0p7/cacher/internal/logging"
)

type downstreamHeaderKey struct{}

// NewUpstream returns a reverse proxy to cfg.URL. Upstream response headers
// replace, rather than append to, headers already set on the downstream
// response, so a Cache-Control sent by the origin overrides the route policy.
func NewUpstream(cfg config.UpstreamConfig, logger *slog.Logger) (http.Handler, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("server: upstream url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("agent", "upstream"), slog.String("upstream", target.Redacted()))

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.TimeoutSeconds > 0 {
		transport.ResponseHeaderTimeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = transport
	proxy.ModifyResponse = func(resp *http.Response) error {
		downstream, ok := resp.Request.Context().Value(downstreamHeaderKey{}).(http.Header)
		if !ok {
			return nil
		}
		for name := range resp.Header {
			downstream.Del(name)
		}
		return nil
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logging.FromContext(r.Context(), logger).Error("upstream request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		w.WriteHeader(http.StatusBadGateway)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), downstreamHeaderKey{}, w.Header())
		proxy.ServeHTTP(w, r.WithContext(ctx))
	}), nil
}
