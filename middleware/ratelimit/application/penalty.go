package application

import (
	"context"
	"time"

	"cart-guard/middleware/ratelimit/domain"
)

// PenaltyTracker incrementa o contador de violações da identidade.
// O atraso calculado a partir dele é só informativo (ver domain.PenaltyDelay).
type PenaltyTracker struct {
	Counter domain.ViolationCounter
	Timeout time.Duration
}

// RecordViolation incrementa o contador e retorna o atraso calculado e o
// número de violações após o incremento. Com Counter nil ou erro, não há
// penalidade.
func (t PenaltyTracker) RecordViolation(ctx context.Context, id domain.Identity, p domain.Policy) (time.Duration, int64, error) {
	if t.Counter == nil {
		return 0, 0, nil
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	v, err := t.Counter.Increment(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	return domain.PenaltyDelay(p, v), v, nil
}
