package application

import (
	"time"

	"plant-gateway/middleware/ratelimit/domain"
)

// retryHinter é implementado por stores que sabem quando o próximo token nasce.
type retryHinter interface {
	RetryAfter() time.Duration
}

// Service decide o limite por cliente (token bucket) sem saber nada de HTTP.
type Service struct {
	Store domain.LimiterStore
	// RetryAfter fixo; se 0, usa a dica do Store ou 1s.
	RetryAfter time.Duration
}

func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Key: key, Allowed: true}
	}

	lim := s.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Key: key, Allowed: true}
	}
	return domain.Decision{Key: key, Allowed: false, RetryAfter: s.retryAfter()}
}

func (s Service) retryAfter() time.Duration {
	if s.RetryAfter > 0 {
		return s.RetryAfter
	}
	if h, ok := s.Store.(retryHinter); ok {
		if d := h.RetryAfter(); d > 0 {
			return d
		}
	}
	return time.Second
}
