package infra

import (
	"context"
	"sync"

	"plant-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// MemoryStatsStore conta decisões em memória, por escopo (client/quota),
// rota e, opcionalmente, chave. Útil para testes e desenvolvimento; não expira nada.
type MemoryStatsStore struct {
	mu      sync.Mutex
	byScope map[string]Counters
	byRoute map[string]Counters
	byKey   map[domain.Key]Counters

	lastRemaining int
	trackKeys     bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byScope:       make(map[string]Counters),
		byRoute:       make(map[string]Counters),
		byKey:         make(map[domain.Key]Counters),
		lastRemaining: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	bump(s.byScope, ev.Scope, ev.Allowed)
	bump(s.byRoute, route, ev.Allowed)
	if s.trackKeys {
		bump(s.byKey, ev.Key, ev.Allowed)
	}
	if ev.Scope == domain.ScopeQuota && ev.Remaining >= 0 {
		s.lastRemaining = ev.Remaining
	}
	return nil
}

func bump[K comparable](m map[K]Counters, k K, allowed bool) {
	c := m[k]
	c.add(allowed)
	m[k] = c
}

// Scope retorna os contadores de um escopo (domain.ScopeClient / domain.ScopeQuota).
func (s *MemoryStatsStore) Scope(scope string) Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byScope[scope]
}

// Total soma todos os escopos.
func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out Counters
	for _, c := range s.byScope {
		out.Allowed += c.Allowed
		out.Denied += c.Denied
	}
	return out
}

// LastRemaining é o último Remaining visto na cota; -1 se nenhum.
func (s *MemoryStatsStore) LastRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRemaining
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCounters(s.byRoute)
}

func (s *MemoryStatsStore) ByKey() map[domain.Key]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCounters(s.byKey)
}

func cloneCounters[K comparable](m map[K]Counters) map[K]Counters {
	out := make(map[K]Counters, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
