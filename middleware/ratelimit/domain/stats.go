package domain

import (
	"context"
	"time"
)

// Escopos de decisão registrados em StatsEvent.
const (
	// ScopeClient é a decisão do token bucket por cliente.
	ScopeClient = "client"
	// ScopeQuota é a decisão da cota global de janela deslizante.
	ScopeQuota = "quota"
)

// StatsEvent é uma decisão de admissão, do limite por cliente ou da cota global.
//
// Key e Path entram nos contadores por rota/chave; em Prometheus só Scope e o
// resultado viram label.
type StatsEvent struct {
	Key     Key
	Scope   string
	Allowed bool

	Method string
	Path   string

	// Remaining só é preenchido para ScopeQuota; -1 quando desconhecido.
	Remaining int

	At time.Time
}

// StatsStore grava decisões. Falha aqui nunca derruba a requisição:
// quem chama só loga o erro.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
