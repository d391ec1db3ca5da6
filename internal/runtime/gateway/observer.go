package gateway

import "github.com/l0p7/cacher/internal/runtime/cache"

// Observer receives gateway signals. OnCache runs on the write-back goroutine
// after both the entry and its stale marker were stored; the other callbacks
// run on the request goroutine. Implementations must be safe for concurrent
// use.
type Observer interface {
	OnHit(key string)
	OnMiss(key string)
	OnCache(key string, entry cache.Entry)
	OnError(err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Hit   func(key string)
	Miss  func(key string)
	Cache func(key string, entry cache.Entry)
	Error func(err error)
}

func (o ObserverFuncs) OnHit(key string) {
	if o.Hit != nil {
		o.Hit(key)
	}
}

func (o ObserverFuncs) OnMiss(key string) {
	if o.Miss != nil {
		o.Miss(key)
	}
}

func (o ObserverFuncs) OnCache(key string, entry cache.Entry) {
	if o.Cache != nil {
		o.Cache(key, entry)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

// Subscribe registers o for every subsequent signal.
func (g *Gateway) Subscribe(o Observer) {
	if o == nil {
		return
	}
	g.obsMu.Lock()
	defer g.obsMu.Unlock()
	g.observers = append(g.observers, o)
}

func (g *Gateway) snapshotObservers() []Observer {
	g.obsMu.RLock()
	defer g.obsMu.RUnlock()
	return g.observers
}

func (g *Gateway) emitHit(key string) {
	for _, o := range g.snapshotObservers() {
		o.OnHit(key)
	}
}

func (g *Gateway) emitMiss(key string) {
	for _, o := range g.snapshotObservers() {
		o.OnMiss(key)
	}
}

func (g *Gateway) emitCache(key string, entry cache.Entry) {
	for _, o := range g.snapshotObservers() {
		o.OnCache(key, entry)
	}
}

func (g *Gateway) emitError(err error) {
	for _, o := range g.snapshotObservers() {
		o.OnError(err)
	}
}
