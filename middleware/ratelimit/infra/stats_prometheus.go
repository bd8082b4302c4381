package infra

import (
	"context"
	"math"
	"time"

	"plant-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStats exporta as decisões como métricas.
//
// Labels ficam em escopo e resultado; chave do cliente não vira label para não
// explodir a cardinalidade.
type PrometheusStats struct {
	decisions *prometheus.CounterVec
	remaining prometheus.Gauge
}

// NewPrometheusStats registra os coletores em reg (use prometheus.NewRegistry em testes).
func NewPrometheusStats(reg prometheus.Registerer, namespace string) (*PrometheusStats, error) {
	s := &PrometheusStats{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_decisions_total",
				Help:      "Rate limit decisions by scope (client, quota) and result (allowed, blocked).",
			},
			[]string{"scope", "result"},
		),
		remaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "quota_remaining",
				Help:      "Remaining vision-analysis quota as of the last quota decision.",
			},
		),
	}
	for _, c := range []prometheus.Collector{s.decisions, s.remaining} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusStats) Record(_ context.Context, ev domain.StatsEvent) error {
	result := "allowed"
	if !ev.Allowed {
		result = "blocked"
	}
	scope := ev.Scope
	if scope == "" {
		scope = "unknown"
	}
	s.decisions.WithLabelValues(scope, result).Inc()
	if ev.Scope == domain.ScopeQuota && ev.Remaining >= 0 {
		s.remaining.Set(float64(ev.Remaining))
	}
	return nil
}

// NewQuotaGauge expõe a cota livre lida do limiter na hora da coleta, sem
// consumir. Diferente de quota_remaining, acompanha a janela mesmo sem tráfego.
func NewQuotaGauge(namespace string, limiter domain.QuotaLimiter) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_available",
			Help:      "Vision-analysis quota available in the sliding window at scrape time.",
		},
		func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			dec, err := limiter.Status(ctx)
			if err != nil {
				return math.NaN()
			}
			return float64(dec.Remaining)
		},
	)
}

// FanoutStats repassa o evento para todos os stores; devolve o primeiro erro.
type FanoutStats []domain.StatsStore

func (f FanoutStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var firstErr error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
