// Package metrics holds the Prometheus instruments for the extraction
// pipeline. All methods are safe on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voice_expense"

// Metrics groups the pipeline's collectors.
type Metrics struct {
	requests        *prometheus.CounterVec
	quotaRejections *prometheus.CounterVec
	usageRecorded   prometheus.Counter
	upstream        *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_requests_total",
			Help:      "Extraction requests by input kind and outcome code.",
		}, []string{"input", "outcome"}),
		quotaRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Requests rejected because the daily quota was exhausted.",
		}, []string{"tier"}),
		usageRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_recorded_total",
			Help:      "Successful extractions counted against a quota.",
		}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Latency of transcription and extraction provider calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage", "outcome"}),
	}

	reg.MustRegister(m.requests, m.quotaRejections, m.usageRecorded, m.upstream)
	return m
}

// Request counts one finished pipeline run. outcome is "ok" or an error code.
func (m *Metrics) Request(input, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(input, outcome).Inc()
}

func (m *Metrics) QuotaRejected(tier string) {
	if m == nil {
		return
	}
	m.quotaRejections.WithLabelValues(tier).Inc()
}

func (m *Metrics) UsageRecorded() {
	if m == nil {
		return
	}
	m.usageRecorded.Inc()
}

// Upstream observes the duration of a provider call started at start.
func (m *Metrics) Upstream(stage string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.upstream.WithLabelValues(stage, outcome).Observe(time.Since(start).Seconds())
}
