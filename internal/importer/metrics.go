package importer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes import counters. A nil *Metrics is a no-op.
type Metrics struct {
	items         *prometheus.CounterVec
	batches       *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	cursor        *prometheus.GaugeVec
	auditFailures *prometheus.CounterVec
}

// NewMetrics registers the import collectors.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moncar_sync_items_total",
			Help: "Imported items by entity and outcome (inserted, updated, error).",
		}, []string{"entity", "outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moncar_sync_batches_total",
			Help: "Processed import batches by entity.",
		}, []string{"entity"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moncar_sync_batch_duration_seconds",
			Help:    "Wall time spent applying one batch.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"entity"}),
		cursor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "moncar_sync_cursor",
			Help: "Last natural id offered to the cursor of each source.",
		}, []string{"source"}),
		auditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moncar_sync_audit_failures_total",
			Help: "Best-effort audit or cursor writes that failed.",
		}, []string{"kind"}),
	}
	registerer.MustRegister(m.items, m.batches, m.duration, m.cursor, m.auditFailures)
	return m
}

func (m *Metrics) observeBatch(entity Entity, res BatchResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	e := string(entity)
	m.items.WithLabelValues(e, "inserted").Add(float64(res.OkCount))
	m.items.WithLabelValues(e, "updated").Add(float64(res.DupCount))
	m.items.WithLabelValues(e, "error").Add(float64(res.ErrorCount))
	m.batches.WithLabelValues(e).Inc()
	m.duration.WithLabelValues(e).Observe(elapsed.Seconds())
}

func (m *Metrics) observeCursor(source string, candidate int64) {
	if m == nil {
		return
	}
	m.cursor.WithLabelValues(source).Set(float64(candidate))
}

func (m *Metrics) auditFailure(kind string) {
	if m == nil {
		return
	}
	m.auditFailures.WithLabelValues(kind).Inc()
}
