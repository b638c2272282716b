package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Policy descreve o limite aplicado a um endpoint.
//
// Campos são privados: uma Policy só existe se MaxRequests e WindowSeconds
// forem positivos (ver NewPolicy).
type Policy struct {
	maxRequests       int
	windowSeconds     int
	penaltyBaseMillis int
	message           string
}

func NewPolicy(maxRequests, windowSeconds, penaltyBaseMillis int, message string) (Policy, error) {
	if maxRequests <= 0 {
		return Policy{}, fmt.Errorf("%w: maxRequests must be > 0, got %d", ErrInvalidPolicy, maxRequests)
	}
	if windowSeconds <= 0 {
		return Policy{}, fmt.Errorf("%w: windowSeconds must be > 0, got %d", ErrInvalidPolicy, windowSeconds)
	}
	if penaltyBaseMillis < 0 {
		return Policy{}, fmt.Errorf("%w: penaltyBaseMillis must be >= 0, got %d", ErrInvalidPolicy, penaltyBaseMillis)
	}
	return Policy{
		maxRequests:       maxRequests,
		windowSeconds:     windowSeconds,
		penaltyBaseMillis: penaltyBaseMillis,
		message:           strings.TrimSpace(message),
	}, nil
}

// MustPolicy é NewPolicy para tabelas estáticas montadas no startup.
func MustPolicy(maxRequests, windowSeconds, penaltyBaseMillis int, message string) Policy {
	p, err := NewPolicy(maxRequests, windowSeconds, penaltyBaseMillis, message)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Policy) MaxRequests() int       { return p.maxRequests }
func (p Policy) WindowSeconds() int     { return p.windowSeconds }
func (p Policy) PenaltyBaseMillis() int { return p.penaltyBaseMillis }
func (p Policy) Window() time.Duration  { return time.Duration(p.windowSeconds) * time.Second }

// Message retorna a mensagem configurada ou DefaultMessage.
func (p Policy) Message() string {
	if p.message == "" {
		return DefaultMessage
	}
	return p.message
}

const DefaultMessage = "Too many requests, please try again later."

// AuthenticatedMultiplier é fixo: identidades autenticadas recebem 1.5x o limite.
const AuthenticatedMultiplier = 1.5

// EffectiveLimit aplica a escala por classe de cliente.
func (p Policy) EffectiveLimit(authenticated bool) int {
	if !authenticated {
		return p.maxRequests
	}
	// floor(max * 1.5) sem passar por float
	return p.maxRequests + p.maxRequests/2
}

// PolicySnapshot é a forma serializável de uma Policy (registro de violação).
type PolicySnapshot struct {
	MaxRequests       int    `json:"maxRequests"`
	WindowSeconds     int    `json:"windowSeconds"`
	PenaltyBaseMillis int    `json:"penaltyBaseMillis,omitempty"`
	Message           string `json:"message,omitempty"`
}

func (p Policy) Snapshot() PolicySnapshot {
	return PolicySnapshot{
		MaxRequests:       p.maxRequests,
		WindowSeconds:     p.windowSeconds,
		PenaltyBaseMillis: p.penaltyBaseMillis,
		Message:           p.message,
	}
}

// Endpoint identifica a operação protegida.
//
//   - Name: identificador estável (ex: "cart.addItem"); usado pela convenção de verbo
//   - Group: agrupamento opcional (ex: "cart")
//   - Path: rota usada na chave do Redis (ex: "/cart/items")
type Endpoint struct {
	Name  string
	Group string
	Path  string
}

// Signature é o fragmento de rota usado na chave da janela.
func (e Endpoint) Signature() string {
	if e.Path != "" {
		return e.Path
	}
	return e.Name
}

// Request reúne o que o motor precisa para decidir.
type Request struct {
	Endpoint      Endpoint
	Identity      Identity
	NetworkOrigin string
}

// Outcome é o estado final da máquina de decisão.
type Outcome int

const (
	// OutcomeUnlimited: nenhuma policy resolvida para o endpoint.
	OutcomeUnlimited Outcome = iota
	OutcomeAdmitted
	OutcomeRejected
	// OutcomeDegraded: store indisponível, request admitido (fail-open).
	OutcomeDegraded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnlimited:
		return "unlimited"
	case OutcomeAdmitted:
		return "admitted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

type Decision struct {
	Outcome Outcome

	// Count é a cardinalidade da janela após a inserção (0 se não checado).
	Count int64
	// Limit é o limite efetivo aplicado.
	Limit int

	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear
	// (sempre a janela da policy).
	RetryAfter   time.Duration
	// PenaltyDelay é consultivo: não bloqueia nada, só é exposto.
	PenaltyDelay time.Duration
	Message      string

	// Err guarda a falha do store quando Outcome == OutcomeDegraded.
	Err error
}

// Allowed é verdadeiro para todos os estados exceto OutcomeRejected.
func (d Decision) Allowed() bool { return d.Outcome != OutcomeRejected }

// Remaining é quantos requests ainda cabem na janela (min 0).
func (d Decision) Remaining() int {
	if d.Limit <= 0 {
		return 0
	}
	r := d.Limit - int(d.Count)
	if r < 0 {
		return 0
	}
	return r
}

// WindowStore executa a janela deslizante como uma unidade atômica:
// purga entradas com score < now-window, insere `now`, lê a cardinalidade
// e renova o TTL. Retorna a cardinalidade após a inserção.
type WindowStore interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error)
}
