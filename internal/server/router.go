package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/l0p7/cacher/internal/config"
	"github.com/l0p7/cacher/internal/logging"
	"github.com/l0p7/cacher/internal/metrics"
	"github.com/l0p7/cacher/internal/runtime/gateway"
)

// RouterOptions assembles the HTTP surface of the cacher binary.
type RouterOptions struct {
	Config  config.Config
	Gateway *gateway.Gateway
	Metrics *metrics.Recorder
	Logger  *slog.Logger
	// Upstream serves every proxied request. It defaults to a reverse proxy
	// for Config.Upstream.
	Upstream http.Handler
}

// NewRouter mounts each configured route prefix behind its caching directive.
// chi resolves the most specific prefix; requests matching no route reach the
// upstream uncached. Health, metrics and admin endpoints are registered ahead
// of the proxied routes.
func NewRouter(opts RouterOptions) (http.Handler, error) {
	if opts.Gateway == nil {
		return nil, errors.New("server: gateway required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	upstream := opts.Upstream
	if upstream == nil {
		proxy, err := NewUpstream(opts.Config.Upstream, logger)
		if err != nil {
			return nil, err
		}
		upstream = proxy
	}

	cfg := opts.Config
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(correlate(cfg.Server.Logging.CorrelationHeader))
	r.Use(accessLog(logger.With(slog.String("agent", "access")), cfg.Cache.DiagnosticHeader))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}
	if cfg.Server.Admin.Enabled {
		prefix := strings.TrimRight(cfg.Server.Admin.PathPrefix, "/")
		if prefix == "" {
			return nil, errors.New("server: admin path prefix must not be the root")
		}
		r.Route(prefix, func(ar chi.Router) {
			a := admin{gw: opts.Gateway, logger: logger.With(slog.String("agent", "admin"))}
			ar.Post("/invalidate", a.invalidate)
			ar.Get("/status", a.status)
		})
	}

	routes, err := normalizeRoutes(cfg.Routes)
	if err != nil {
		return nil, err
	}
	for _, route := range routes {
		d, err := route.Directive()
		if err != nil {
			return nil, fmt.Errorf("server: route %s: %w", route.Path, err)
		}
		h := opts.Gateway.CacheDirective(d)(upstream)
		if route.Path == "/" {
			r.Handle("/*", h)
			continue
		}
		r.Handle(route.Path, h)
		r.Handle(route.Path+"/*", h)
	}
	r.NotFound(upstream.ServeHTTP)
	r.MethodNotAllowed(upstream.ServeHTTP)

	return r, nil
}

// normalizeRoutes trims trailing slashes and orders routes from the longest
// prefix down, rejecting prefixes that collapse onto each other.
func normalizeRoutes(in []config.RouteConfig) ([]config.RouteConfig, error) {
	out := make([]config.RouteConfig, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, route := range in {
		path := strings.TrimRight(route.Path, "/")
		if path == "" {
			path = "/"
		}
		if strings.ContainsAny(path, "{}*") {
			return nil, fmt.Errorf("server: route %q: patterns are not supported", route.Path)
		}
		if _, dup := seen[path]; dup {
			return nil, fmt.Errorf("server: route %q duplicates %q", route.Path, path)
		}
		seen[path] = struct{}{}
		route.Path = path
		out = append(out, route)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Path) > len(out[j].Path) })
	return out, nil
}

type admin struct {
	gw     *gateway.Gateway
	logger *slog.Logger
}

func (a admin) invalidate(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key query parameter required"})
		return
	}
	if err := a.gw.Invalidate(r.Context(), key); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	logging.FromContext(r.Context(), a.logger).Info("cache entry invalidated", slog.String("cache_key", key))
	w.WriteHeader(http.StatusNoContent)
}

func (a admin) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"enabled":            a.gw.Enabled(),
		"honorClientNoCache": a.gw.HonorsClientNoCache(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
