// Package metrics exposes Prometheus collectors for the HTTP API, upstream
// AI/speech/voice calls, graph view sessions and the event stream.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alignos"

// Metrics owns a private registry and the application collectors.
type Metrics struct {
	Registry *prometheus.Registry
	// Sessions tracks live graph view sessions.
	Sessions prometheus.Gauge

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	upstream *prometheus.CounterVec
}

// New registers the application collectors plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_sessions",
			Help:      "Number of live graph view sessions.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Calls to the AI gateway, speech and voice services by outcome.",
		}, []string{"service", "outcome"}),
	}
	m.Registry.MustRegister(
		m.Sessions, m.requests, m.duration, m.upstream,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{
		Registry:            m.Registry,
		ErrorHandling:       promhttp.ContinueOnError,
		MaxRequestsInFlight: 5,
	})
}

// WatchStream exports the live SSE client count and the number of frames
// dropped for slow clients. Both funcs are called on every scrape.
func (m *Metrics) WatchStream(clients func() int, dropped func() uint64) {
	m.Registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sse_clients",
			Help:      "Connected event stream clients.",
		}, func() float64 { return float64(clients()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sse_dropped_frames_total",
			Help:      "Event frames skipped because a client was too slow.",
		}, func() float64 { return float64(dropped()) }),
	)
}

// ObserveUpstream counts one upstream call. It matches the observer hook of
// the gateway, speech and voice clients.
func (m *Metrics) ObserveUpstream(service, outcome string) {
	m.upstream.WithLabelValues(service, outcome).Inc()
}

// Middleware records request count and latency labelled with the chi route
// pattern, so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
