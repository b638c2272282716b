package domain

import (
	"context"
	"time"
)

const (
	// ViolationRetention é o horizonte de retenção de um ViolationRecord.
	ViolationRetention = 24 * time.Hour
	// ViolationCountTTL: o contador zera após 1h sem nova violação.
	ViolationCountTTL = time.Hour
	// MaxPenaltyMultiplier limita o atraso a penaltyBase * 5.
	MaxPenaltyMultiplier = 5
)

// ViolationRecord é escrito uma vez por request rejeitado e nunca alterado.
type ViolationRecord struct {
	ClientIdentity  Identity       `json:"clientId"`
	Endpoint        string         `json:"endpoint"`
	TimestampMs     int64          `json:"timestamp"`
	IsAuthenticated bool           `json:"isAuthenticated"`
	Policy          PolicySnapshot `json:"policy"`
	NetworkOrigin   string         `json:"ip"`
}

// ViolationCounter mantém o número de violações recentes por identidade.
//
// Increment é atômico e retorna o valor após o incremento; o TTL é
// renovado a cada violação (ViolationCountTTL).
type ViolationCounter interface {
	Increment(ctx context.Context, id Identity) (int64, error)
}

// ViolationLog é o destino de auditoria dos registros de violação.
//
// É best-effort: quem chama deve ignorar o erro (não derrubar request).
type ViolationLog interface {
	Log(ctx context.Context, rec ViolationRecord) error
}

// SlotPool representa um recurso com capacidade finita (ex: escritas
// assíncronas em andamento).
//
// A semântica é: Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}

// PenaltyDelay = base * min(violações, 5).
func PenaltyDelay(p Policy, violations int64) time.Duration {
	if violations <= 0 || p.penaltyBaseMillis == 0 {
		return 0
	}
	m := violations
	if m > MaxPenaltyMultiplier {
		m = MaxPenaltyMultiplier
	}
	return time.Duration(int64(p.penaltyBaseMillis)*m) * time.Millisecond
}
