package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the IPC daemon.
//
// Each Metrics value owns a private registry so tests can construct
// isolated instances without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	// Process-pipe metrics
	StreamsOpen   prometheus.Gauge
	StreamOpens   prometheus.Counter
	StreamCloses  prometheus.Counter
	SpawnFailures prometheus.Counter

	// Rendezvous metrics
	RequestsTotal   prometheus.Counter
	ResponsesTotal  prometheus.Counter
	BrokenPeers     prometheus.Counter
	BadFrames       prometheus.Counter
	StaleSwept      prometheus.Counter
	RequestDuration prometheus.Histogram

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// New creates a metrics collector backed by a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		StreamsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ipckit_streams_open",
			Help: "Number of currently open managed pipe streams",
		}),
		StreamOpens: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipckit_stream_opens_total",
			Help: "Total pipe streams opened",
		}),
		StreamCloses: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipckit_stream_closes_total",
			Help: "Total pipe streams closed",
		}),
		SpawnFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipckit_spawn_failures_total",
			Help: "Total child spawn failures",
		}),

		RequestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipckit_fifo_requests_total",
			Help: "Total rendezvous requests received",
		}),
		ResponsesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipckit_fifo_responses_total",
			Help: "Total rendezvous responses delivered",
		}),
		BrokenPeers: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipckit_fifo_broken_peers_total",
			Help: "Total responses dropped because the client had no reader",
		}),
		BadFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipckit_fifo_bad_frames_total",
			Help: "Total malformed request frames discarded",
		}),
		StaleSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipckit_fifo_stale_swept_total",
			Help: "Total stale per-client channels removed by the sweeper",
		}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ipckit_fifo_request_duration_seconds",
			Help:    "Rendezvous request handling duration",
			Buckets: prometheus.DefBuckets,
		}),

		Uptime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ipckit_uptime_seconds",
			Help: "Daemon uptime in seconds",
		}),
		startTime: time.Now(),
	}

	return m
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}

// Handler returns an HTTP handler exposing this collector's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Timer measures one request's handling duration.
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer starts a request timer.
func NewTimer(metrics *Metrics) *Timer {
	return &Timer{start: time.Now(), metrics: metrics}
}

// Stop records the elapsed duration.
func (t *Timer) Stop() {
	t.metrics.RequestDuration.Observe(time.Since(t.start).Seconds())
}
