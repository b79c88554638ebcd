package chat

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fyrsmithlabs/portfolio-rag/internal/generation"
)

// Chat outcomes.
const (
	OutcomeAnswered        = "answered"
	OutcomeNoInformation   = "no_information"
	OutcomeGenerationError = "generation_error"
	OutcomeInvalid         = "invalid"
	OutcomeUnavailable     = "unavailable"
	OutcomeError           = "error"
)

// Metrics holds Prometheus metrics for the chat pipeline.
//
// Metrics:
//   - portfolio_rag_chat_requests_total{outcome} - questions by outcome
type Metrics struct {
	Requests *prometheus.CounterVec
}

// NewMetrics registers chat metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_rag_chat_requests_total",
				Help: "Chat questions by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) observe(answer *Answer, err error) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome(answer, err)).Inc()
}

func outcome(answer *Answer, err error) string {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return OutcomeInvalid
	case errors.Is(err, ErrStoreNotInitialized):
		return OutcomeUnavailable
	case err != nil:
		return OutcomeError
	case answer.Stage == "":
		return OutcomeNoInformation
	case generation.IsFailure(answer.Answer):
		return OutcomeGenerationError
	default:
		return OutcomeAnswered
	}
}
