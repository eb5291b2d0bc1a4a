// Package metrics holds the Prometheus collectors for the ledger and export paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ducats"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ExportsStarted  *prometheus.CounterVec
	ExportsFinished *prometheus.CounterVec
	ExportsRejected prometheus.Counter
	ExportDuration  *prometheus.HistogramVec
	ExportBytes     prometheus.Histogram
	ExportsActive   prometheus.Gauge
	ReceiptLoads    *prometheus.CounterVec
	LedgerMutations *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ExportsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "started_total",
			Help:      "Export attempts started, by sink.",
		}, []string{"sink"}),
		ExportsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "finished_total",
			Help:      "Export attempts finished, by sink and outcome.",
		}, []string{"sink", "outcome"}),
		ExportsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "rejected_total",
			Help:      "Export requests rejected because one was already in flight.",
		}),
		ExportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "Time from export start to sink completion.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sink"}),
		ExportBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "payload_bytes",
			Help:      "Size of encoded export payloads.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}),
		ExportsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "active",
			Help:      "Export attempts currently in flight.",
		}),
		ReceiptLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "receipt_loads_total",
			Help:      "Receipt image loads, by result.",
		}, []string{"result"}),
		LedgerMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "mutations_total",
			Help:      "Ledger mutations applied, by operation.",
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ExportsStarted,
			m.ExportsFinished,
			m.ExportsRejected,
			m.ExportDuration,
			m.ExportBytes,
			m.ExportsActive,
			m.ReceiptLoads,
			m.LedgerMutations,
		)
	}
	return m
}

// ExportStarted records a started attempt.
func (m *Metrics) ExportStarted(sink string) {
	if m == nil {
		return
	}
	m.ExportsStarted.WithLabelValues(sink).Inc()
	m.ExportsActive.Inc()
}

// ExportFinished records a finished attempt.
func (m *Metrics) ExportFinished(sink, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ExportsFinished.WithLabelValues(sink, outcome).Inc()
	m.ExportDuration.WithLabelValues(sink).Observe(seconds)
	m.ExportsActive.Dec()
}

// ExportRejected records a request refused due to an export in flight.
func (m *Metrics) ExportRejected() {
	if m == nil {
		return
	}
	m.ExportsRejected.Inc()
}

// PayloadEncoded records the size of an encoded payload.
func (m *Metrics) PayloadEncoded(size int) {
	if m == nil {
		return
	}
	m.ExportBytes.Observe(float64(size))
}

// ReceiptLoaded records a receipt load result ("ok" or "error").
func (m *Metrics) ReceiptLoaded(result string) {
	if m == nil {
		return
	}
	m.ReceiptLoads.WithLabelValues(result).Inc()
}

// Mutation records an applied ledger mutation.
func (m *Metrics) Mutation(op string) {
	if m == nil {
		return
	}
	m.LedgerMutations.WithLabelValues(op).Inc()
}
