package infra

import (
	"context"
	"fmt"
	"sync"
	"time"

	"plant-gateway/middleware/ratelimit/domain"
)

// SlidingLog é uma cota de no máximo `max` eventos (soma de pesos) em qualquer
// janela deslizante de duração `window`, mantida em memória.
//
// Cada evento admitido vira uma entrada {at, weight} no fim do log; como o
// instante é sempre "agora", o log fica ordenado por tempo. Entradas com
// at <= now-window são descartadas do início antes de qualquer cálculo, então a
// memória fica limitada aos eventos de uma janela.
//
// Prune, verificação e append acontecem sob o mesmo mutex: duas chamadas
// concorrentes nunca enxergam a mesma capacidade livre.
type SlidingLog struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	clock   domain.Clock
	entries []logEntry
	head    int
	used    int
}

type logEntry struct {
	at     time.Time
	weight int
}

type SlidingLogOption func(*SlidingLog)

// WithClock troca o relógio (testes).
func WithClock(c domain.Clock) SlidingLogOption {
	return func(l *SlidingLog) {
		if c != nil {
			l.clock = c
		}
	}
}

// NewSlidingLog cria a cota. max < 1 ou window <= 0 é erro de programação.
func NewSlidingLog(max int, window time.Duration, opts ...SlidingLogOption) *SlidingLog {
	if max < 1 {
		panic(fmt.Sprintf("ratelimit: sliding log max must be >= 1, got %d", max))
	}
	if window <= 0 {
		panic(fmt.Sprintf("ratelimit: sliding log window must be > 0, got %s", window))
	}
	l := &SlidingLog{
		window: window,
		max:    max,
		clock:  domain.SystemClock,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *SlidingLog) Limit() int { return l.max }

func (l *SlidingLog) Window() time.Duration { return l.window }

// TryAcquire admite um evento de peso `weight` se couber na janela atual.
// Só registra o evento quando admitido; o prune roda sempre.
func (l *SlidingLog) TryAcquire(weight int) domain.QuotaDecision {
	if weight < 1 {
		panic(fmt.Errorf("%w: got %d", domain.ErrInvalidWeight, weight))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.pruneLocked(now)

	if l.used+weight > l.max {
		return l.decisionLocked(now, false)
	}

	l.entries = append(l.entries, logEntry{at: now, weight: weight})
	l.used += weight
	return l.decisionLocked(now, true)
}

// Remaining retorna a capacidade livre sem registrar evento.
func (l *SlidingLog) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(l.clock.Now())
	return l.max - l.used
}

// ResetIn é o tempo até a entrada mais antiga expirar; 0 com log vazio.
func (l *SlidingLog) ResetIn() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.pruneLocked(now)
	return l.resetInLocked(now)
}

// ResetInSeconds é ResetIn arredondado para cima em segundos.
func (l *SlidingLog) ResetInSeconds() int {
	return domain.CeilSeconds(l.ResetIn())
}

// Reserve implementa domain.QuotaLimiter.
func (l *SlidingLog) Reserve(_ context.Context, weight int) (domain.QuotaDecision, error) {
	return l.TryAcquire(weight), nil
}

// Status implementa domain.QuotaLimiter.
func (l *SlidingLog) Status(_ context.Context) (domain.QuotaDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.pruneLocked(now)
	return l.decisionLocked(now, l.used < l.max), nil
}

func (l *SlidingLog) decisionLocked(now time.Time, allowed bool) domain.QuotaDecision {
	return domain.QuotaDecision{
		Allowed:   allowed,
		Limit:     l.max,
		Used:      l.used,
		Remaining: l.max - l.used,
		ResetIn:   l.resetInLocked(now),
	}
}

func (l *SlidingLog) resetInLocked(now time.Time) time.Duration {
	if l.head >= len(l.entries) {
		return 0
	}
	d := l.entries[l.head].at.Add(l.window).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// pruneLocked descarta do início as entradas com at <= now-window.
// Cada entrada sai exatamente uma vez: custo amortizado O(1) por chamada.
func (l *SlidingLog) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	for l.head < len(l.entries) && !l.entries[l.head].at.After(cutoff) {
		l.used -= l.entries[l.head].weight
		l.entries[l.head] = logEntry{}
		l.head++
	}

	if l.head == len(l.entries) {
		l.entries = l.entries[:0]
		l.head = 0
		return
	}
	// compacta quando metade do slice já é lixo
	if l.head > 0 && l.head*2 >= len(l.entries) {
		l.entries = append([]logEntry(nil), l.entries[l.head:]...)
		l.head = 0
	}
}
