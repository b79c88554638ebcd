package retrieval

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for retrieval stages.
//
// Metrics:
//   - portfolio_rag_retrieval_stage_total{stage,outcome} - stage runs by outcome (hit, empty, error)
//   - portfolio_rag_retrieval_stage_duration_seconds{stage} - stage latency
type Metrics struct {
	StageTotal    *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
}

// NewMetrics registers retrieval metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StageTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_rag_retrieval_stage_total",
				Help: "Retrieval stage runs by outcome",
			},
			[]string{"stage", "outcome"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portfolio_rag_retrieval_stage_duration_seconds",
				Help:    "Duration of retrieval stages in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"stage"},
		),
	}
}

func (m *Metrics) observe(stage string, elapsed time.Duration, n int, err error) {
	if m == nil {
		return
	}
	outcome := "hit"
	switch {
	case err != nil:
		outcome = "error"
	case n == 0:
		outcome = "empty"
	}
	m.StageTotal.WithLabelValues(stage, outcome).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}
