package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"plant-gateway/internal/api"
	"plant-gateway/internal/config"
	"plant-gateway/internal/vision"
	"plant-gateway/middleware/ratelimit"
	"plant-gateway/middleware/ratelimit/application"
	"plant-gateway/middleware/ratelimit/domain"
	"plant-gateway/middleware/ratelimit/infra"
)

const metricsNamespace = "plantdoc"

// app reúne o handler pronto e os recursos que precisam ser fechados.
type app struct {
	Handler http.Handler
	Stats   *infra.MemoryStatsStore
	Quota   domain.QuotaLimiter

	redis *redis.Client
}

func (a *app) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

// newApp monta cota, estatísticas, métricas e rotas a partir da configuração.
// Goroutines de manutenção (janitor do store) vivem até ctx encerrar.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, analyzer vision.Analyzer) (*app, error) {
	a := &app{Stats: infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.Stats.TrackKeys))}

	if cfg.NeedsRedis() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := a.redis.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
	}

	switch cfg.Quota.Backend {
	case config.BackendRedis:
		a.Quota = infra.NewRedisWindow(a.redis, cfg.Quota.RedisKey, cfg.Quota.MaxEvents, cfg.Quota.Window)
	default:
		a.Quota = infra.NewSlidingLog(cfg.Quota.MaxEvents, cfg.Quota.Window)
	}

	stats := infra.FanoutStats{a.Stats}
	var (
		gatherer prometheus.Gatherer
		metrics  *api.Metrics
	)
	if cfg.Server.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		promStats, err := infra.NewPrometheusStats(reg, metricsNamespace)
		if err != nil {
			return nil, fmt.Errorf("register rate limit metrics: %w", err)
		}
		if err := reg.Register(infra.NewQuotaGauge(metricsNamespace, a.Quota)); err != nil {
			return nil, fmt.Errorf("register quota gauge: %w", err)
		}
		metrics, err = api.NewMetrics(reg, metricsNamespace)
		if err != nil {
			return nil, fmt.Errorf("register vision metrics: %w", err)
		}
		stats = append(stats, promStats)
		gatherer = reg
	}
	if cfg.Stats.RedisEnabled {
		stats = append(stats, infra.NewRedisStatsStore(
			a.redis,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		))
	}

	opts := api.Options{
		Quota: application.QuotaService{
			Limiter: a.Quota,
			Stats:   stats,
			Logger:  logger,
		},
		Analyzer:     analyzer,
		Logger:       logger,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Production:   cfg.Server.IsProduction(),
		Concurrency: ratelimit.ConcurrencyOptions{
			Max:            cfg.Concurrency.Max,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.Concurrency.Timeout,
		},
		Gatherer: gatherer,
		Metrics:  metrics,
	}

	if cfg.ClientRate.Enabled {
		store := infra.NewStore(cfg.ClientRate.RPS, cfg.ClientRate.Burst)
		store.StartJanitor(ctx)
		opts.ClientRate = &ratelimit.Options{
			Store:               store,
			Stats:               stats,
			KeyHeader:           cfg.ClientRate.KeyHeader,
			TrustXForwardedFor:  cfg.ClientRate.TrustXFF,
			RetryAfter:          cfg.ClientRate.RetryAfter,
			AddRateLimitHeaders: cfg.ClientRate.AddHeaders,
		}
	}

	if cfg.Server.FrontendURL != "" {
		u, err := url.Parse(cfg.Server.FrontendURL)
		if err != nil {
			return nil, fmt.Errorf("invalid FRONTEND_URL: %w", err)
		}
		opts.Frontend = u
	}

	a.Handler = api.NewRouter(opts)
	return a, nil
}
