package application

import (
	"time"

	"cart-guard/middleware/ratelimit/domain"
)

// Observer recebe eventos para métricas. Implementações não devem bloquear.
type Observer interface {
	ObserveDecision(ep domain.Endpoint, d domain.Decision)
	ObserveStoreLatency(op string, d time.Duration)
	ViolationLogDropped()
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(domain.Endpoint, domain.Decision) {}
func (nopObserver) ObserveStoreLatency(string, time.Duration)        {}
func (nopObserver) ViolationLogDropped()                             {}
