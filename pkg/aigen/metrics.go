package aigen

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts branch runs and streamed chunks. A nil *Metrics records
// nothing.
type Metrics struct {
	branches *prometheus.CounterVec   // Branch runs by view, mode and result
	duration *prometheus.HistogramVec // Branch latency by view and mode
	chunks   *prometheus.CounterVec   // Streamed chunks by view
}

// NewMetrics creates the extraction metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		branches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memoflux",
			Name:      "branch_total",
			Help:      "Total extraction branch runs",
		}, []string{"view", "mode", "result"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "memoflux",
			Name:      "branch_duration_seconds",
			Help:      "Extraction branch latency",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"view", "mode"}),

		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memoflux",
			Name:      "stream_chunks_total",
			Help:      "Total chunks forwarded to stream sinks",
		}, []string{"view"}),
	}
	for _, c := range []prometheus.Collector{m.branches, m.duration, m.chunks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(view, mode string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.branches.WithLabelValues(view, mode, result).Inc()
	m.duration.WithLabelValues(view, mode).Observe(d.Seconds())
}

func (m *Metrics) chunk(view string) {
	if m == nil {
		return
	}
	m.chunks.WithLabelValues(view).Inc()
}
