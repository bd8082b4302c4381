package application

import (
	"context"
	"fmt"
	"log/slog"

	"plant-gateway/middleware/ratelimit/domain"
)

// QuotaService aplica a cota global (N eventos por janela deslizante) na frente
// de uma operação cara e registra a decisão nas estatísticas.
type QuotaService struct {
	Limiter domain.QuotaLimiter
	Stats   domain.StatsStore
	Logger  *slog.Logger
	Clock   domain.Clock
}

// Admit consome req.Weight da cota se houver capacidade.
// Rejeição volta como Allowed=false; erro só quando o backend da cota falha.
func (s QuotaService) Admit(ctx context.Context, req domain.QuotaRequest) (domain.QuotaDecision, error) {
	if s.Limiter == nil {
		return domain.QuotaDecision{Allowed: true, Remaining: -1}, nil
	}
	if req.Weight == 0 {
		req.Weight = 1
	}
	if req.Key == "" {
		req.Key = domain.QuotaKey
	}

	dec, err := s.Limiter.Reserve(ctx, req.Weight)
	if err != nil {
		return domain.QuotaDecision{}, fmt.Errorf("quota reserve: %w", err)
	}

	s.record(ctx, req, dec)
	if !dec.Allowed {
		s.logger().WarnContext(ctx, "quota exceeded",
			"key", req.Key,
			"weight", req.Weight,
			"used", dec.Used,
			"limit", dec.Limit,
			"reset_in", dec.ResetIn,
		)
	}
	return dec, nil
}

// Status consulta a cota sem consumir.
func (s QuotaService) Status(ctx context.Context) (domain.QuotaDecision, error) {
	if s.Limiter == nil {
		return domain.QuotaDecision{Allowed: true, Remaining: -1}, nil
	}
	dec, err := s.Limiter.Status(ctx)
	if err != nil {
		return domain.QuotaDecision{}, fmt.Errorf("quota status: %w", err)
	}
	return dec, nil
}

func (s QuotaService) record(ctx context.Context, req domain.QuotaRequest, dec domain.QuotaDecision) {
	if s.Stats == nil {
		return
	}
	clock := s.Clock
	if clock == nil {
		clock = domain.SystemClock
	}
	err := s.Stats.Record(ctx, domain.StatsEvent{
		Key:       req.Key,
		Scope:     domain.ScopeQuota,
		Allowed:   dec.Allowed,
		Method:    req.Method,
		Path:      req.Path,
		Remaining: dec.Remaining,
		At:        clock.Now(),
	})
	if err != nil {
		s.logger().DebugContext(ctx, "quota stats record failed", "error", err)
	}
}

func (s QuotaService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
