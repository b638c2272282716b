package obs

import (
	"time"

	"cart-guard/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implementa application.Observer.
//
// Labels usam a assinatura do endpoint (rota), nunca a identidade do
// cliente, para manter a cardinalidade sob controle.
type Metrics struct {
	Decisions        *prometheus.CounterVec
	PenaltyDelay     *prometheus.HistogramVec
	StoreLatency     *prometheus.HistogramVec
	ViolationDropped prometheus.Counter
	InFlightRejected prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cartguard_decisions_total",
				Help: "Admission decisions by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		PenaltyDelay: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cartguard_penalty_delay_seconds",
				Help:    "Advisory penalty delay computed on rejection",
				Buckets: []float64{0, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		StoreLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cartguard_store_duration_seconds",
				Help:    "Shared store round-trip duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		ViolationDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cartguard_violation_log_dropped_total",
			Help: "Violation records dropped because the writer pool was full",
		}),
		InFlightRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cartguard_concurrency_rejected_total",
			Help: "Requests rejected by the in-flight concurrency guard",
		}),
	}

	reg.MustRegister(m.Decisions, m.PenaltyDelay, m.StoreLatency, m.ViolationDropped, m.InFlightRejected)
	return m
}

func (m *Metrics) ObserveDecision(ep domain.Endpoint, d domain.Decision) {
	sig := ep.Signature()
	m.Decisions.WithLabelValues(sig, d.Outcome.String()).Inc()
	if d.Outcome == domain.OutcomeRejected {
		m.PenaltyDelay.WithLabelValues(sig).Observe(d.PenaltyDelay.Seconds())
	}
}

func (m *Metrics) ObserveStoreLatency(op string, d time.Duration) {
	m.StoreLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) ViolationLogDropped() { m.ViolationDropped.Inc() }

func (m *Metrics) ConcurrencyRejected() { m.InFlightRejected.Inc() }
