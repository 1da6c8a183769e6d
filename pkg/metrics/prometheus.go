package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	requestsTotal *prometheus.CounterVec
	retriesTotal  *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	throttleWait  prometheus.Histogram
	latency       *prometheus.HistogramVec
	assetsHeld    *prometheus.GaugeVec
}

// New creates a recorder registered on reg. Pass prometheus.DefaultRegisterer to
// expose it through promhttp.Handler.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cointrack_upstream_requests_total",
				Help: "Upstream HTTP attempts by host and outcome",
			},
			[]string{"host", "outcome"},
		),
		retriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cointrack_upstream_retries_total",
				Help: "Upstream retries scheduled after a failed attempt",
			},
			[]string{"host"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cointrack_cache_lookups_total",
				Help: "Result cache lookups by key kind and result",
			},
			[]string{"kind", "result"},
		),
		throttleWait: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cointrack_throttle_wait_seconds",
				Help:    "Time spent waiting for the request throttle",
				Buckets: []float64{0.001, 0.01, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cointrack_operation_duration_seconds",
				Help:    "Duration of tracker operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		assetsHeld: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cointrack_assets_loaded",
				Help: "Assets currently accumulated by the tracker",
			},
			[]string{"source"},
		),
	}
}

// RecordRequest records one upstream attempt.
func (r *Recorder) RecordRequest(host, outcome string) {
	r.requestsTotal.WithLabelValues(host, outcome).Inc()
}

// RecordRetry records a scheduled retry.
func (r *Recorder) RecordRetry(host string) {
	r.retriesTotal.WithLabelValues(host).Inc()
}

// RecordCache records a cache lookup.
func (r *Recorder) RecordCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordThrottleWait records how long a caller was held by the throttle.
func (r *Recorder) RecordThrottleWait(seconds float64) {
	r.throttleWait.Observe(seconds)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordAssets sets the accumulated asset count for a source.
func (r *Recorder) RecordAssets(source string, n int) {
	r.assetsHeld.WithLabelValues(source).Set(float64(n))
}
