package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestResult is the path a request took through the gateway.
type RequestResult string

const (
	// RequestHit indicates a stored response was replayed.
	RequestHit RequestResult = "hit"
	// RequestMiss indicates the handler ran and its response was captured.
	RequestMiss RequestResult = "miss"
	// RequestBypass indicates caching did not apply (disabled route, kill
	// switch or non-GET method).
	RequestBypass RequestResult = "bypass"
	// RequestRefused indicates the client asked not to be served from cache.
	RequestRefused RequestResult = "refused"
	// RequestError indicates the store failed and the request degraded to a
	// bypass.
	RequestError RequestResult = "error"
)

// StoreResult captures the result of a store operation.
type StoreResult string

const (
	StoreFound    StoreResult = "found"
	StoreNotFound StoreResult = "not_found"
	StoreOK       StoreResult = "ok"
	StoreFailed   StoreResult = "error"
)

// RegenerationRole describes what happened to a stale-guard election.
type RegenerationRole string

const (
	// RegenerationElected marks a request that set the REFRESHING marker.
	RegenerationElected RegenerationRole = "elected"
	// RegenerationStored marks a completed write-back of entry and marker.
	RegenerationStored RegenerationRole = "stored"
	// RegenerationSkipped marks a captured response that was not written back.
	RegenerationSkipped RegenerationRole = "skipped"
)

// Recorder publishes Prometheus metrics for gateway activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec

	storeOperations *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec

	regenerations *prometheus.CounterVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a dedicated
// registry is created so multiple recorders can coexist without conflicting with
// the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cacher",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Requests handled by the cache gateway.",
	}, []string{"directive", "result"})

	requestLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cacher",
		Subsystem: "gateway",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for requests handled by the cache gateway.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"directive", "result"})

	storeOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cacher",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Backing store operations issued by the gateway.",
	}, []string{"operation", "result"})

	storeLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cacher",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Latency distribution for backing store operations.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"operation", "result"})

	regenerations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cacher",
		Subsystem: "gateway",
		Name:      "regenerations_total",
		Help:      "Stale-guard regeneration elections and their write-back outcome.",
	}, []string{"role"})

	reg.MustRegister(requests, requestLatency, storeOperations, storeLatency, regenerations)

	return &Recorder{
		gatherer:        reg,
		handler:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		requests:        requests,
		requestLatency:  requestLatency,
		storeOperations: storeOperations,
		storeLatency:    storeLatency,
		regenerations:   regenerations,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveRequest records how a request was served and how long it took.
func (r *Recorder) ObserveRequest(directive string, result RequestResult, duration time.Duration) {
	if r == nil {
		return
	}
	directiveLabel := normalizeLabel(directive)
	resultLabel := normalizeLabel(string(result))
	r.requests.WithLabelValues(directiveLabel, resultLabel).Inc()
	r.requestLatency.WithLabelValues(directiveLabel, resultLabel).Observe(duration.Seconds())
}

// ObserveStore records a single backing store call.
func (r *Recorder) ObserveStore(operation string, result StoreResult, duration time.Duration) {
	if r == nil {
		return
	}
	opLabel := normalizeLabel(operation)
	resultLabel := string(result)
	if resultLabel == "" {
		resultLabel = string(StoreFailed)
	}
	r.storeOperations.WithLabelValues(opLabel, resultLabel).Inc()
	r.storeLatency.WithLabelValues(opLabel, resultLabel).Observe(duration.Seconds())
}

// ObserveRegeneration counts stale-guard elections and write-backs.
func (r *Recorder) ObserveRegeneration(role RegenerationRole) {
	if r == nil {
		return
	}
	r.regenerations.WithLabelValues(normalizeLabel(string(role))).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
