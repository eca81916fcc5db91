package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Provider kinds used as the "kind" label.
const (
	ProviderKindSMS     = "sms"
	ProviderKindPayment = "payment"
	ProviderKindEmail   = "email"
)

// Attempt outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// ProviderMetrics counts outbound SMS, payment and e-mail provider attempts.
type ProviderMetrics struct {
	attempts *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewProviderMetrics(reg prometheus.Registerer) *ProviderMetrics {
	if reg == nil {
		return &ProviderMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_attempts_total",
		Help:      "Outbound provider attempts by kind, provider and outcome.",
	}, []string{"kind", "provider", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_duration_seconds",
		Help:      "Latency of outbound provider calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"kind", "provider"})
	reg.MustRegister(attempts, latency)
	return &ProviderMetrics{attempts: attempts, latency: latency}
}

// ObserveAttempt records one provider call.
func (p *ProviderMetrics) ObserveAttempt(kind, provider, outcome string, elapsed time.Duration) {
	if p == nil || p.attempts == nil {
		return
	}
	p.attempts.WithLabelValues(normalizeLabel(kind), normalizeLabel(provider), normalizeLabel(outcome)).Inc()
	if outcome != OutcomeSkipped {
		p.latency.WithLabelValues(normalizeLabel(kind), normalizeLabel(provider)).Observe(elapsed.Seconds())
	}
}
