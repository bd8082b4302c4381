package domain

import (
	"context"
	"time"
)

// Key identifica o cliente (IP, API key, usuário) no limite por cliente.
type Key string

// QuotaKey é a chave usada pela cota global do modelo de visão.
const QuotaKey Key = "vision"

// Limiter decide se uma ação do cliente é permitida agora.
// A infra usa token bucket (golang.org/x/time/rate), mas o contrato não assume isso.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave, com cache/TTL a critério da implementação.
type LimiterStore interface {
	Get(Key) Limiter
}

// Decision é a decisão do limite por cliente.
type Decision struct {
	Key     Key
	Allowed bool
	// RetryAfter vai no header Retry-After quando bloquear; 0 = sem recomendação.
	RetryAfter time.Duration
}

// SlotPool é um recurso de capacidade finita (ex: análises simultâneas no modelo).
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// O release retornado deve ser chamado exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
