package gateway

import (
	"net/http"

	"github.com/l0p7/cacher/internal/runtime/cache"
)

// Cache builds middleware that caches a route for multiplier units. The
// multiplier defaults to 1; a zero multiplier yields a pass-through route.
func (g *Gateway) Cache(unit string, multiplier ...int) (func(http.Handler) http.Handler, error) {
	d, err := cache.NewDirective(unit, multiplier...)
	if err != nil {
		return nil, err
	}
	return g.CacheDirective(d), nil
}

// MustCache is Cache for statically known directives. It panics on an unknown
// unit or a negative multiplier.
func (g *Gateway) MustCache(unit string, multiplier ...int) func(http.Handler) http.Handler {
	mw, err := g.Cache(unit, multiplier...)
	if err != nil {
		panic(err)
	}
	return mw
}

// CacheDirective binds a prepared directive to a route.
func (g *Gateway) CacheDirective(d cache.Directive) func(http.Handler) http.Handler {
	label := d.String()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(w, r, next, d, label)
		})
	}
}

func (g *Gateway) CacheDays(days int) func(http.Handler) http.Handler {
	return g.MustCache("day", days)
}

func (g *Gateway) CacheDaily() func(http.Handler) http.Handler {
	return g.MustCache("day")
}

func (g *Gateway) CacheHours(hours int) func(http.Handler) http.Handler {
	return g.MustCache("hour", hours)
}

func (g *Gateway) CacheHourly() func(http.Handler) http.Handler {
	return g.MustCache("hour")
}

func (g *Gateway) CacheMinutes(minutes int) func(http.Handler) http.Handler {
	return g.MustCache("minute", minutes)
}

func (g *Gateway) CacheOneMinute() func(http.Handler) http.Handler {
	return g.MustCache("minute")
}

// NoCache marks a route as never cached; responses carry
// Cache-Control: no-cache.
func (g *Gateway) NoCache() func(http.Handler) http.Handler {
	return g.CacheDirective(cache.Disabled())
}
