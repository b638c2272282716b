package application

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"cart-guard/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const DefaultStoreTimeout = 500 * time.Millisecond

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Não guarda estado mutável da janela: tudo vive no WindowStore.
type Service struct {
	policies  PolicyResolver
	window    domain.WindowStore
	penalties PenaltyTracker
	log       domain.ViolationLog

	timeout  time.Duration
	now      func() time.Time
	logger   zerolog.Logger
	observer Observer

	degradedLog *rate.Limiter
	suppressed  atomic.Int64
}

type ServiceOption func(*Service)

func WithStoreTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.timeout = d }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func WithObserver(o Observer) ServiceOption {
	return func(s *Service) { s.observer = o }
}

// WithViolationLog define o destino de auditoria. Em produção passe um
// AsyncViolationLog para não segurar o request.
func WithViolationLog(l domain.ViolationLog) ServiceOption {
	return func(s *Service) { s.log = l }
}

// WithDegradedLogEvery limita a frequência de logs de fail-open.
func WithDegradedLogEvery(d time.Duration) ServiceOption {
	return func(s *Service) { s.degradedLog = rate.NewLimiter(rate.Every(d), 1) }
}

func NewService(policies PolicyResolver, window domain.WindowStore, counter domain.ViolationCounter, opts ...ServiceOption) *Service {
	s := &Service{
		policies:    policies,
		window:      window,
		timeout:     DefaultStoreTimeout,
		now:         time.Now,
		logger:      zerolog.Nop(),
		observer:    nopObserver{},
		degradedLog: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.penalties = PenaltyTracker{Counter: counter, Timeout: s.timeout}
	return s
}

// Check executa UNCHECKED -> CHECKING -> {ADMITTED, REJECTED, FAIL_OPEN}.
// Sem retry: cada request faz exatamente uma checagem.
func (s *Service) Check(ctx context.Context, req domain.Request) domain.Decision {
	policy, ok := s.policies.Resolve(req.Endpoint)
	if !ok {
		return domain.Decision{Outcome: domain.OutcomeUnlimited}
	}

	id := req.Identity
	if id == "" {
		id = domain.IPIdentity(domain.UnknownOrigin)
	}
	limit := policy.EffectiveLimit(id.IsAuthenticated())
	now := s.now()

	count, err := s.hit(ctx, domain.WindowKey(id, req.Endpoint), now, policy.Window())
	if err != nil {
		dec := domain.Decision{
			Outcome: domain.OutcomeDegraded,
			Limit:   limit,
			Err:     fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err),
		}
		s.logDegraded(id, req.Endpoint, dec.Err)
		s.observer.ObserveDecision(req.Endpoint, dec)
		return dec
	}

	dec := domain.Decision{Outcome: domain.OutcomeAdmitted, Count: count, Limit: limit}
	if count <= int64(limit) {
		s.observer.ObserveDecision(req.Endpoint, dec)
		return dec
	}

	dec.Outcome = domain.OutcomeRejected
	dec.RetryAfter = policy.Window()
	dec.Message = policy.Message()

	delay, violations, err := s.penalties.RecordViolation(ctx, id, policy)
	if err != nil {
		s.logger.Debug().Err(err).Str("identity", id.String()).Msg("violation counter unavailable")
	}
	dec.PenaltyDelay = delay

	if s.log != nil {
		rec := domain.ViolationRecord{
			ClientIdentity:  id,
			Endpoint:        req.Endpoint.Signature(),
			TimestampMs:     now.UnixMilli(),
			IsAuthenticated: id.IsAuthenticated(),
			Policy:          policy.Snapshot(),
			NetworkOrigin:   req.NetworkOrigin,
		}
		if err := s.log.Log(ctx, rec); err != nil {
			s.logger.Debug().Err(err).Str("identity", id.String()).Msg("violation record not written")
		}
	}

	s.logger.Warn().
		Str("identity", id.String()).
		Str("endpoint", req.Endpoint.Signature()).
		Int64("count", count).
		Int("limit", limit).
		Int64("violations", violations).
		Int64("penalty_ms", dec.PenaltyDelay.Milliseconds()).
		Msg("rate limit exceeded")
	s.observer.ObserveDecision(req.Endpoint, dec)
	return dec
}

func (s *Service) hit(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	if s.window == nil {
		return 0, fmt.Errorf("no window store configured")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	count, err := s.window.Hit(ctx, key, now, window)
	s.observer.ObserveStoreLatency("window", time.Since(start))
	return count, err
}

// logDegraded loga o primeiro fail-open sempre; depois no máximo um por
// intervalo, contando os suprimidos.
func (s *Service) logDegraded(id domain.Identity, ep domain.Endpoint, err error) {
	if !s.degradedLog.Allow() {
		s.suppressed.Add(1)
		return
	}
	s.logger.Error().
		Err(err).
		Str("identity", id.String()).
		Str("endpoint", ep.Signature()).
		Int64("suppressed", s.suppressed.Swap(0)).
		Msg("rate limit check failed, admitting request")
}
