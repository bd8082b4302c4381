// Package api expõe o plantdoc por HTTP: análise de imagem protegida pela cota
// global, listagem de modelos, consulta de cota, health e métricas.
package api

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plant-gateway/internal/vision"
	"plant-gateway/middleware/ratelimit"
	"plant-gateway/middleware/ratelimit/application"
)

type Options struct {
	Quota    application.QuotaService
	Analyzer vision.Analyzer
	Logger   *slog.Logger

	MaxBodyBytes int64
	// Production esconde o erro bruto do upstream (campo details).
	Production bool

	// ClientRate nil desliga o token bucket por cliente.
	ClientRate  *ratelimit.Options
	Concurrency ratelimit.ConcurrencyOptions

	// Gatherer nil desliga /metrics.
	Gatherer prometheus.Gatherer
	Metrics  *Metrics

	// Frontend recebe tudo que não é /api, /healthz ou /metrics.
	Frontend *url.URL
}

// NewRouter monta o chi.Router com todas as rotas.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}

	h := &handler{
		quota:      opts.Quota,
		analyzer:   opts.Analyzer,
		logger:     logger,
		maxBody:    opts.MaxBodyBytes,
		production: opts.Production,
		metrics:    opts.Metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		var mws []func(http.Handler) http.Handler
		if opts.ClientRate != nil {
			cr := *opts.ClientRate
			if cr.Logger == nil {
				cr.Logger = logger
			}
			if cr.Reject == nil {
				cr.Reject = rejectClient
			}
			mws = append(mws, ratelimit.Middleware(cr))
		}
		conc := opts.Concurrency
		if conc.Logger == nil {
			conc.Logger = logger
		}
		if conc.Reject == nil {
			conc.Reject = rejectBusy
		}
		mws = append(mws, ratelimit.ConcurrencyMiddleware(conc))

		r.With(mws...).Post("/analyze-plant", h.analyzePlant)

		r.Get("/list-models", h.listModels)
		r.Get("/quota", h.quotaStatus)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
		})
	})

	if opts.Frontend != nil {
		r.NotFound(newFrontendProxy(opts.Frontend, logger).ServeHTTP)
	}
	return r
}
