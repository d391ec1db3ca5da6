package server

import (
	"log/slog"
	"strings"

	"github.com/l0p7/cacher/internal/expr"
	"github.com/l0p7/cacher/internal/runtime/gateway"
)

// NewTTLOverride compiles a CEL expression into a gateway TTL override. An
// empty expression yields nil, leaving route ttls untouched. Evaluation errors
// are logged and fall back to the route's ttl.
func NewTTLOverride(expression string, logger *slog.Logger) (gateway.TTLOverrideFunc, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, nil
	}
	env, err := expr.NewEnvironment()
	if err != nil {
		return nil, err
	}
	program, err := env.CompileTTL(expression)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("agent", "ttl_override"))

	return func(info gateway.ResponseInfo) int {
		in := expr.Input{
			StatusCode: info.StatusCode,
			TTL:        info.TTL,
			Key:        info.Key,
			Header:     info.Header,
		}
		if info.Request != nil {
			in.Method = info.Request.Method
			in.Path = info.Request.URL.Path
			in.RequestHeader = info.Request.Header
		}
		ttl, err := program.EvalTTL(in)
		if err != nil {
			logger.Warn("ttl override failed",
				slog.String("cache_key", info.Key),
				slog.String("expression", program.Source()),
				slog.Any("error", err))
			return info.TTL
		}
		return ttl
	}, nil
}
