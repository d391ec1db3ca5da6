package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/l0p7/cacher/internal/metrics"
	"github.com/l0p7/cacher/internal/runtime/cache"
)

const diag = DefaultDiagnosticHeader

type recordingObserver struct {
	mu     sync.Mutex
	hits   []string
	misses []string
	cached []string
	errs   []error
}

func (o *recordingObserver) OnHit(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits = append(o.hits, key)
}

func (o *recordingObserver) OnMiss(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.misses = append(o.misses, key)
}

func (o *recordingObserver) OnCache(key string, _ cache.Entry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cached = append(o.cached, key)
}

func (o *recordingObserver) OnError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func (o *recordingObserver) counts() (hits, misses, cached, errs int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.hits), len(o.misses), len(o.cached), len(o.errs)
}

// faultyStore wraps a Store and fails selected operations.
type faultyStore struct {
	cache.Store
	failGet func(key string) bool
	failSet func(key string) bool
}

var errBoom = errors.New("boom")

func (s *faultyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.failGet != nil && s.failGet(key) {
		return nil, false, &cache.StoreError{Backend: "faulty", Op: cache.OpGet, Key: key, Err: errBoom}
	}
	return s.Store.Get(ctx, key)
}

func (s *faultyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.failSet != nil && s.failSet(key) {
		return &cache.StoreError{Backend: "faulty", Op: cache.OpSet, Key: key, Err: errBoom}
	}
	return s.Store.Set(ctx, key, value, ttl)
}

type harness struct {
	gw       *Gateway
	store    cache.Store
	observer *recordingObserver
	expect   *httpexpect.Expect
	url      string
}

func newHarness(t *testing.T, store cache.Store, routes func(r chi.Router, gw *Gateway), mutate ...func(*Options)) *harness {
	t.Helper()
	if store == nil {
		mem := cache.NewMemory()
		t.Cleanup(func() { _ = mem.Close(context.Background()) })
		store = mem
	}
	observer := &recordingObserver{}
	opts := Options{Store: store, Observers: []Observer{observer}}
	for _, fn := range mutate {
		fn(&opts)
	}
	gw, err := New(opts)
	require.NoError(t, err)

	router := chi.NewRouter()
	routes(router, gw)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	t.Cleanup(gw.Wait)

	return &harness{
		gw:       gw,
		store:    store,
		observer: observer,
		url:      srv.URL,
		expect: httpexpect.WithConfig(httpexpect.Config{
			BaseURL:  srv.URL,
			Reporter: httpexpect.NewRequireReporter(t),
		}),
	}
}

func text(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}
}

func standardRoutes(r chi.Router, gw *Gateway) {
	r.With(gw.CacheDaily()).Get("/long", text("long"))
	r.With(gw.MustCache("second")).Get("/short", text("short"))
	r.With(gw.MustCache("day")).Get("/json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"boop": true})
	})
	r.With(gw.MustCache("day")).Get("/201", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "boop")
	})
	r.With(gw.MustCache("day")).Get("/header", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Custom-Header", "boop")
		w.Header().Add("X-Multi", "one")
		w.Header().Add("X-Multi", "two")
		_, _ = io.WriteString(w, "header")
	})
	r.With(gw.MustCache("day")).Get("/write", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "beep|")
		w.(http.Flusher).Flush()
		_, _ = io.WriteString(w, "boop")
	})
	r.With(gw.MustCache("day")).Post("/long", text("posted"))
	r.With(gw.MustCache("day")).Head("/head", text(""))
	r.With(gw.MustCache("day")).Get("/dont-cache-onthefly", func(w http.ResponseWriter, r *http.Request) {
		SkipCache(r)
		_, _ = io.WriteString(w, "this is not cached")
	})
	r.With(gw.NoCache()).Get("/never", text("never"))
	r.With(gw.MustCache("day", 0)).Get("/zero", text("zero"))
}

func (h *harness) get(path string) *httpexpect.Response {
	resp := h.expect.GET(path).Expect()
	h.gw.Wait()
	return resp
}

func TestMissThenHit(t *testing.T) {
	h := newHarness(t, nil, standardRoutes)

	first := h.get("/long")
	first.Status(http.StatusOK)
	first.Header(diag).IsEqual("false")
	first.Header("Cache-Control").IsEqual("max-age=86400, must-revalidate")
	first.Header("Content-Type").IsEqual("text/html; charset=utf-8")
	first.Body().IsEqual("long")

	second := h.get("/long")
	second.Status(http.StatusOK)
	second.Header(diag).IsEqual("true")
	second.Header("Cache-Control").IsEqual("max-age=86400, must-revalidate")
	second.Header("Content-Type").IsEqual("text/html; charset=utf-8")
	second.Body().IsEqual("long")

	hits, misses, cached, errs := h.observer.counts()
	require.Equal(t, 1, hits)
	require.Equal(t, 1, misses)
	require.Equal(t, 1, cached)
	require.Zero(t, errs)
}

func TestExpiredMarkerForcesRegeneration(t *testing.T) {
	h := newHarness(t, nil, standardRoutes)

	h.get("/short").Header(diag).IsEqual("false")
	h.get("/short").Header(diag).IsEqual("true")

	// the CREATED marker lives for the nominal ttl while the entry outlives it
	// by two generation windows
	_, ok, err := h.store.Get(context.Background(), "/short")
	require.NoError(t, err)
	require.True(t, ok)
	time.Sleep(1100 * time.Millisecond)

	h.get("/short").Header(diag).IsEqual("false")
	h.get("/short").Header(diag).IsEqual("true")
}

func TestInvalidateThenMissThenHit(t *testing.T) {
	h := newHarness(t, nil, standardRoutes)

	h.get("/long").Header(diag).IsEqual("false")
	h.get("/long").Header(diag).IsEqual("true")

	require.NoError(t, h.gw.Invalidate(context.Background(), "/long"))

	h.get("/long").Header(diag).IsEqual("false")
	h.get("/long").Header(diag).IsEqual("true")
}

func TestClientNoCacheBypassesStore(t *testing.T) {
	h := newHarness(t, nil, standardRoutes)
	h.get("/long")

	for _, header := range [][2]string{
		{"Cache-Control", "no-cache"},
		{"Cache-Control", "max-age=0"},
		{"Pragma", "no-cache"},
	} {
		resp := h.expect.GET("/long").WithHeader(header[0], header[1]).Expect()
		resp.Status(http.StatusOK)
		resp.Header(diag).IsEqual("false")
		resp.Body().IsEqual("long")
	}

	h.get("/long").Header(diag).IsEqual("true")
}

func TestClientNoCacheIgnoredWhenConfigured(t *testing.T) {
	h := newHarness(t, nil, standardRoutes, func(o *Options) { o.IgnoreClientNoCache = true })
	h.get("/long")

	h.expect.GET("/long").WithHeader("Cache-Control", "no-cache").Expect().
		Header(diag).IsEqual("true")

	h.gw.SetHonorClientNoCache(true)
	h.expect.GET("/long").WithHeader("Cache-Control", "no-cache").Expect().
		Header(diag).IsEqual("false")
}

func TestPreservesContentTypeStatusAndHeaders(t *testing.T) {
	h := newHarness(t, nil, standardRoutes)

	for i, want := range []string{"false", "true"} {
		resp := h.get("/json")
		resp.Status(http.StatusOK)
		resp.Header(diag).IsEqual(want)
		resp.HasContentType("application/json")
		resp.JSON().Object().IsEqual(map[string]any{"boop": true})

		resp = h.get("/201")
		resp.Status(http.StatusCreated)
		resp.Header(diag).IsEqual(want)
		resp.Body().IsEqual("boop")

		resp = h.get("/header")
		resp.Status(http.StatusOK)
		resp.Header(diag).IsEqual(want)
		resp.Header("X-Custom-Header").IsEqual("boop")
		require.Equal(t, []string{"one", "two"}, resp.Raw().Header.Values("X-Multi"), "pass %d", i)
		resp.Body().IsEqual("header")
	}
}

func TestMultipleWritesAreCaptured(t *testing.T) {
	h := newHarness(t, nil, standardRoutes)

	first := h.get("/write")
	first.Header(diag).IsEqual("false")
	first.Body().IsEqual("beep|boop")

	second := h.get("/write")
	second.Header(diag).IsEqual("true")
	second.Header("Content-Type").IsEqual("text/plain")
	second.Body().IsEqual("beep|boop")
}

func TestEarlyHintsKeepFinalStatus(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, nil, func(r chi.Router, gw *Gateway) {
		r.With(gw.CacheOneMinute()).Get("/early", func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.Header().Set("Link", "</app.css>; rel=preload")
			w.WriteHeader(http.StatusEarlyHints)
			w.Header().Del("Link")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, "gone")
		})
	})

	first := h.get("/early")
	first.Status(http.StatusNotFound)
	first.Header(diag).IsEqual("false")
	first.Body().IsEqual("gone")

	second := h.get("/early")
	second.Status(http.StatusNotFound)
	second.Header(diag).IsEqual("true")
	second.Header("Link").IsEmpty()
	second.Body().IsEqual("gone")
	require.Equal(t, int32(1), calls.Load())
}

func TestPostIsNeverCached(t *testing.T) {
	h := newHarness(t, nil, standardRoutes)

	for i := 0; i < 2; i++ {
		resp := h.expect.POST("/long").Expect()
		resp.Status(http.StatusOK)
		resp.Header("Cache-Control").IsEqual("no-cache")
		resp.Header(diag).IsEmpty()
		resp.Body().IsEqual("posted")
	}
	h.gw.Wait()

	_, ok, err := h.store.Get(context.Background(), "/long")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = h.store.Get(context.Background(), cache.StaleKey("/long"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHeadIsBypassed(t *testing.T) {
	h := newHarness(t, nil, standardRoutes)
	resp := h.expect.HEAD("/head").Expect()
	resp.Status(http.StatusOK)
	resp.Header("Cache-Control").IsEqual("no-cache")
	resp.Header(diag).IsEmpty()
}

func TestKillSwitch(t *testing.T) {
	h := newHarness(t, nil, standardRoutes, func(o *Options) { o.Disabled = true })
	require.False(t, h.gw.Enabled())

	for i := 0; i < 2; i++ {
		resp := h.get("/long")
		resp.Header("Cache-Control").IsEqual("no-cache")
		resp.Header(diag).IsEmpty()
		resp.Body().IsEqual("long")
	}

	h.gw.SetEnabled(true)
	h.get("/long").Header(diag).IsEqual("false")
	h.get("/long").Header(diag).IsEqual("true")
}

func TestDisabledDirectivesPassThrough(t *testing.T) {
	h := newHarness(t, nil, standardRoutes)

	for _, path := range []string{"/never", "/zero"} {
		for i := 0; i < 2; i++ {
			resp := h.get(path)
			resp.Header("Cache-Control").IsEqual("no-cache")
			resp.Header(diag).IsEmpty()
		}
	}
	_, misses, cached, _ := h.observer.counts()
	require.Zero(t, misses)
	require.Zero(t, cached)
}

func TestSkipCacheVetoesStorage(t *testing.T) {
	h := newHarness(t, nil, standardRoutes)

	for i := 0; i < 2; i++ {
		resp := h.get("/dont-cache-onthefly")
		resp.Header(diag).IsEqual("false")
		resp.Body().IsEqual("this is not cached")
	}
	_, _, cached, _ := h.observer.counts()
	require.Zero(t, cached)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.False(t, SkipCache(req))
}

func TestMountPrefixesDoNotShareEntries(t *testing.T) {
	h := newHarness(t, nil, func(r chi.Router, gw *Gateway) {
		foo := chi.NewRouter()
		foo.With(gw.MustCache("second", 10)).Get("/nodupe", text("foo"))
		bar := chi.NewRouter()
		bar.With(gw.MustCache("second", 10)).Get("/nodupe", text("bar"))
		r.Mount("/fooMount", foo)
		r.Mount("/barMount", bar)
	})

	h.get("/fooMount/nodupe").Body().IsEqual("foo")
	h.get("/barMount/nodupe").Body().IsEqual("bar")

	foo := h.get("/fooMount/nodupe")
	foo.Header(diag).IsEqual("true")
	foo.Body().IsEqual("foo")
	bar := h.get("/barMount/nodupe")
	bar.Header(diag).IsEqual("true")
	bar.Body().IsEqual("bar")
}

func TestQueryStringIsPartOfKey(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, nil, func(r chi.Router, gw *Gateway) {
		r.With(gw.CacheHourly()).Get("/search", func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_, _ = io.WriteString(w, r.URL.Query().Get("q"))
		})
	})

	h.get("/search?q=a").Body().IsEqual("a")
	h.get("/search?q=b").Body().IsEqual("b")
	h.get("/search?q=a").Header(diag).IsEqual("true")
	require.Equal(t, int32(2), calls.Load())
}

func TestTTLOverrideZeroIsNeverStored(t *testing.T) {
	h := newHarness(t, nil, func(r chi.Router, gw *Gateway) {
		r.With(gw.CacheDaily()).Get("/flaky", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		r.With(gw.CacheDaily()).Get("/ok", text("ok"))
	}, func(o *Options) {
		o.TTLOverride = func(info ResponseInfo) int {
			if info.StatusCode >= 500 {
				return 0
			}
			return info.TTL / 2
		}
	})

	h.get("/flaky").Status(http.StatusServiceUnavailable)
	h.get("/flaky").Header(diag).IsEqual("false")

	_, ok, err := h.store.Get(context.Background(), "/flaky")
	require.NoError(t, err)
	require.False(t, ok)

	h.get("/ok")
	h.get("/ok").Header(diag).IsEqual("true")
}

func TestStoreLookupFailureBypasses(t *testing.T) {
	store := &faultyStore{Store: cache.NewMemory(), failGet: func(string) bool { return true }}
	h := newHarness(t, store, standardRoutes)

	resp := h.get("/long")
	resp.Status(http.StatusOK)
	resp.Header("Cache-Control").IsEqual("no-cache")
	resp.Header(diag).IsEmpty()
	resp.Body().IsEqual("long")

	_, _, _, errs := h.observer.counts()
	require.Equal(t, 1, errs)
	var storeErr *cache.StoreError
	require.ErrorAs(t, h.observer.errs[0], &storeErr)
}

func TestWriteBackFailureSkipsMarker(t *testing.T) {
	mem := cache.NewMemory()
	store := &faultyStore{Store: mem, failSet: func(key string) bool { return key == "/long" }}
	h := newHarness(t, store, standardRoutes)

	resp := h.get("/long")
	resp.Status(http.StatusOK)
	resp.Body().IsEqual("long")

	_, _, cached, errs := h.observer.counts()
	require.Zero(t, cached)
	require.Equal(t, 1, errs)

	marker, ok, err := mem.Get(context.Background(), cache.StaleKey("/long"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, string(cache.MarkerRefreshing), string(marker))
}

func TestCorruptEntryIsTreatedAsMiss(t *testing.T) {
	h := newHarness(t, nil, standardRoutes)
	ctx := context.Background()
	require.NoError(t, h.store.Set(ctx, "/long", []byte("not json"), time.Hour))
	require.NoError(t, h.store.Set(ctx, cache.StaleKey("/long"), []byte(cache.MarkerCreated), time.Hour))

	resp := h.get("/long")
	resp.Header(diag).IsEqual("false")
	resp.Body().IsEqual("long")
	_, _, _, errs := h.observer.counts()
	require.Equal(t, 1, errs)

	h.get("/long").Header(diag).IsEqual("true")
}

func TestOverflowedResponseIsNotStored(t *testing.T) {
	h := newHarness(t, nil, standardRoutes, func(o *Options) { o.MaxBodyBytes = 2 })

	h.get("/long").Body().IsEqual("long")
	h.get("/long").Header(diag).IsEqual("false")
}

func TestDiagnosticHeaderConfiguration(t *testing.T) {
	h := newHarness(t, nil, standardRoutes, func(o *Options) {
		o.DiagnosticHeader = "X-From-Cache"
		o.OmitCacheControl = true
	})
	resp := h.get("/long")
	resp.Header("X-From-Cache").IsEqual("false")
	resp.Header(diag).IsEmpty()
	resp.Header("Cache-Control").IsEmpty()

	quiet := newHarness(t, nil, standardRoutes, func(o *Options) { o.NoDiagnosticHeader = true })
	quiet.get("/long")
	quiet.get("/long").Header(diag).IsEmpty()
}

func TestRegeneratorServesWhileOthersGetStaleCopy(t *testing.T) {
	var calls atomic.Int32
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	h := newHarness(t, nil, func(r chi.Router, gw *Gateway) {
		r.With(gw.CacheHourly()).Get("/slow", func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			entered <- struct{}{}
			<-release
			_, _ = io.WriteString(w, "fresh")
		})
	})

	// an entry whose CREATED marker has expired
	stale, err := cache.NewEntry(http.StatusOK, http.Header{"Content-Type": {"text/plain"}}, []byte("stale")).Encode()
	require.NoError(t, err)
	require.NoError(t, h.store.Set(context.Background(), "/slow", stale, time.Hour))

	regenerated := make(chan string, 1)
	go func() {
		body, _ := fetch(h.url + "/slow")
		regenerated <- body
	}()
	<-entered

	const racers = 10
	var wg sync.WaitGroup
	bodies := make([]string, racers)
	hits := make([]string, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bodies[i], hits[i] = fetch(h.url + "/slow")
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for i := 0; i < racers; i++ {
		require.Equal(t, "stale", bodies[i])
		require.Equal(t, "true", hits[i])
	}

	close(release)
	require.Equal(t, "fresh", <-regenerated)
	h.gw.Wait()

	h.get("/slow").Body().IsEqual("fresh")
	require.Equal(t, int32(1), calls.Load())
}

func TestColdConcurrentRequestsAllSucceed(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, nil, func(r chi.Router, gw *Gateway) {
		r.With(gw.CacheOneMinute()).Get("/cold", func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			time.Sleep(20 * time.Millisecond)
			_, _ = io.WriteString(w, "cold")
		})
	})

	const racers = 20
	var wg sync.WaitGroup
	bodies := make([]string, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bodies[i], _ = fetch(h.url + "/cold")
		}(i)
	}
	wg.Wait()
	h.gw.Wait()

	for _, body := range bodies {
		require.Equal(t, "cold", body)
	}
	require.GreaterOrEqual(t, calls.Load(), int32(1))
	require.LessOrEqual(t, calls.Load(), int32(racers))

	before := calls.Load()
	h.get("/cold").Header(diag).IsEqual("true")
	require.Equal(t, before, calls.Load())
}

func TestMetricsAreRecorded(t *testing.T) {
	recorder := metrics.NewRecorder(nil)
	h := newHarness(t, nil, standardRoutes, func(o *Options) { o.Metrics = recorder })

	h.get("/long")
	h.get("/long")
	h.expect.POST("/long").Expect()

	rr := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	require.Contains(t, body, `cacher_gateway_requests_total{directive="1 day",result="hit"} 1`)
	require.Contains(t, body, `cacher_gateway_requests_total{directive="1 day",result="miss"} 1`)
	require.Contains(t, body, `cacher_gateway_requests_total{directive="1 day",result="bypass"} 1`)
	require.Contains(t, body, `cacher_gateway_regenerations_total{role="elected"} 1`)
	require.Contains(t, body, `cacher_gateway_regenerations_total{role="stored"} 1`)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Options{})
	require.ErrorIs(t, err, ErrInvalidClient)
}

func TestCacheFactoryValidatesUnit(t *testing.T) {
	gw, err := New(Options{Store: cache.NewMemory()})
	require.NoError(t, err)

	_, err = gw.Cache("fortnight")
	var unitErr *cache.UnknownUnitError
	require.ErrorAs(t, err, &unitErr)

	require.Panics(t, func() { gw.MustCache("fortnight") })
	require.Panics(t, func() { gw.CacheDays(-1) })
	require.Panics(t, func() { gw.MustCache("year", 300) })
	require.NotPanics(t, func() {
		gw.CacheDays(2)
		gw.CacheHours(3)
		gw.CacheMinutes(5)
	})
}

func TestHelperDirectives(t *testing.T) {
	h := newHarness(t, nil, func(r chi.Router, gw *Gateway) {
		r.With(gw.CacheDays(2)).Get("/days", text("d"))
		r.With(gw.CacheHours(3)).Get("/hours", text("h"))
		r.With(gw.CacheMinutes(5)).Get("/minutes", text("m"))
		r.With(gw.CacheOneMinute()).Get("/minute", text("m"))
	})

	h.get("/days").Header("Cache-Control").IsEqual("max-age=172800, must-revalidate")
	h.get("/hours").Header("Cache-Control").IsEqual("max-age=10800, must-revalidate")
	h.get("/minutes").Header("Cache-Control").IsEqual("max-age=300, must-revalidate")
	h.get("/minute").Header("Cache-Control").IsEqual("max-age=60, must-revalidate")
}

func TestObserverFuncsAndSubscribe(t *testing.T) {
	var hits, misses, cached atomic.Int32
	h := newHarness(t, nil, standardRoutes)
	h.gw.Subscribe(ObserverFuncs{
		Hit:   func(string) { hits.Add(1) },
		Miss:  func(string) { misses.Add(1) },
		Cache: func(key string, entry cache.Entry) { cached.Add(1) },
	})
	h.gw.Subscribe(nil)

	h.get("/long")
	h.get("/long")

	require.Equal(t, int32(1), hits.Load())
	require.Equal(t, int32(1), misses.Load())
	require.Equal(t, int32(1), cached.Load())

	// nil callbacks are skipped
	ObserverFuncs{}.OnError(errBoom)
}

func fetch(url string) (body, hit string) {
	resp, err := http.Get(url)
	if err != nil {
		return "error: " + err.Error(), ""
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return strings.TrimSpace(string(raw)), resp.Header.Get(diag)
}
