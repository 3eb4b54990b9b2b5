package observability

import (
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Turn outcomes.
const (
	OutcomeTransition   = "transition"
	OutcomeSelfLoop     = "self_loop"
	OutcomeEscalate     = "escalate"
	OutcomeTerminal     = "terminal"
	OutcomeDanglingEdge = "dangling_edge"
	OutcomeLostPosition = "lost_position"
	OutcomePresent      = "present"
)

// Metrics groups the engine collectors.
type Metrics struct {
	Turns              *prometheus.CounterVec
	CompletionDuration *prometheus.HistogramVec
	CompletionErrors   *prometheus.CounterVec
	SessionsCreated    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_turns_total",
				Help: "Total number of orchestrated turns by outcome",
			},
			[]string{"outcome"},
		),
		CompletionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parley_completion_duration_seconds",
				Help:    "Duration of free-text completions",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"result"},
		),
		CompletionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_completion_errors_total",
				Help: "Failed completions by error kind",
			},
			[]string{"kind"},
		),
		SessionsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "parley_sessions_created_total",
				Help: "Total number of conversations created",
			},
		),
	}
	reg.MustRegister(m.Turns, m.CompletionDuration, m.CompletionErrors, m.SessionsCreated)
	return m
}

// Turn records the outcome of a turn.
func (m *Metrics) Turn(outcome string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(outcome).Inc()
}

// Completion records a finished completion. An empty kind means success.
func (m *Metrics) Completion(elapsed time.Duration, kind domain.ErrorKind) {
	if m == nil {
		return
	}
	result := "ok"
	if kind != "" {
		result = "error"
		m.CompletionErrors.WithLabelValues(string(kind)).Inc()
	}
	m.CompletionDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// SessionCreated counts a new conversation.
func (m *Metrics) SessionCreated(string) {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}
