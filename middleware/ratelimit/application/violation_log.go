package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"cart-guard/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
)

var ErrViolationLogDropped = errors.New("violation log saturated, record dropped")

const (
	DefaultViolationWriteTimeout = 2 * time.Second
	defaultSlotWait              = 5 * time.Millisecond
)

// AsyncViolationLog grava registros de violação fora do caminho do request.
//
// Fire-and-forget: Log nunca espera a escrita. Quando todas as vagas do pool
// estão ocupadas, o registro é descartado (ErrViolationLogDropped).
type AsyncViolationLog struct {
	sink         domain.ViolationLog
	slots        ConcurrencyService
	writeTimeout time.Duration
	logger       zerolog.Logger
	observer     Observer

	wg sync.WaitGroup
}

type AsyncLogOption func(*AsyncViolationLog)

func WithWriteTimeout(d time.Duration) AsyncLogOption {
	return func(a *AsyncViolationLog) { a.writeTimeout = d }
}

func WithAsyncLogger(l zerolog.Logger) AsyncLogOption {
	return func(a *AsyncViolationLog) { a.logger = l }
}

func WithAsyncObserver(o Observer) AsyncLogOption {
	return func(a *AsyncViolationLog) { a.observer = o }
}

// NewAsyncViolationLog usa `pool` para limitar escritas simultâneas.
func NewAsyncViolationLog(sink domain.ViolationLog, pool domain.SlotPool, opts ...AsyncLogOption) *AsyncViolationLog {
	a := &AsyncViolationLog{
		sink:         sink,
		slots:        ConcurrencyService{Pool: pool, AcquireTimeout: defaultSlotWait},
		writeTimeout: DefaultViolationWriteTimeout,
		logger:       zerolog.Nop(),
		observer:     nopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Log implementa domain.ViolationLog.
func (a *AsyncViolationLog) Log(ctx context.Context, rec domain.ViolationRecord) error {
	if a.sink == nil {
		return nil
	}
	release, ok := a.slots.Acquire(ctx)
	if !ok {
		a.observer.ViolationLogDropped()
		return ErrViolationLogDropped
	}

	// o request pode terminar antes da escrita
	wctx := context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer release()

		wctx, cancel := context.WithTimeout(wctx, a.writeTimeout)
		defer cancel()
		if err := a.sink.Log(wctx, rec); err != nil {
			a.logger.Debug().Err(err).Str("identity", rec.ClientIdentity.String()).Msg("violation log write failed")
		}
	}()
	return nil
}

// Drain espera as escritas pendentes (ou o ctx encerrar). Use no shutdown.
func (a *AsyncViolationLog) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
