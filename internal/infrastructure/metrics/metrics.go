package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "murmur"

// Recorder is the set of engine and transport metrics.
type Recorder struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	rooms             prometheus.Gauge
	sessions          prometheus.Gauge
	items             *prometheus.CounterVec
	rateLimited       prometheus.Counter
	translations      *prometheus.CounterVec
	translationTime   prometheus.Histogram
	activeConnections prometheus.Gauge
	requestCount      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Recorder{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_operations_total",
			Help:      "Engine operations by name and result code.",
		}, []string{"operation", "code"}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Rooms currently held in memory.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Connections with an anonymous identity.",
		}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_items_total",
			Help:      "Messages and transcripts accepted.",
		}, []string{"kind"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Events rejected by the per-connection limiter.",
		}),
		translations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Translation side-calls by outcome.",
		}, []string{"outcome"}),
		translationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "translation_duration_seconds",
			Help:      "Latency of translation side-calls.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 3, 5},
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open websocket connections.",
		}),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		r.operations, r.rooms, r.sessions, r.items, r.rateLimited,
		r.translations, r.translationTime, r.activeConnections,
		r.requestCount, r.requestDuration,
	)
	return r
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) Operation(name, code string) {
	if code == "" {
		code = "OK"
	}
	r.operations.WithLabelValues(name, code).Inc()
}

func (r *Recorder) SetRooms(n int) {
	r.rooms.Set(float64(n))
}

func (r *Recorder) SetSessions(n int) {
	r.sessions.Set(float64(n))
}

func (r *Recorder) ItemStored(kind string) {
	r.items.WithLabelValues(kind).Inc()
}

func (r *Recorder) RateLimited() {
	r.rateLimited.Inc()
}

func (r *Recorder) Translation(d time.Duration, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	r.translations.WithLabelValues(outcome).Inc()
	r.translationTime.Observe(d.Seconds())
}

func (r *Recorder) ConnectionOpened() {
	r.activeConnections.Inc()
}

func (r *Recorder) ConnectionClosed() {
	r.activeConnections.Dec()
}

func (r *Recorder) Request(method, route string, status int, d time.Duration) {
	r.requestCount.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
