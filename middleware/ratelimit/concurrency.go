package ratelimit

import (
	"log/slog"
	"net/http"
	"time"

	"plant-gateway/middleware/ratelimit/application"
	"plant-gateway/middleware/ratelimit/domain"
	"plant-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	// Pool substitui o ChanPool padrão (testes, pools compartilhados).
	Pool   domain.SlotPool
	Logger *slog.Logger
	// Reject escreve a resposta sem vaga; nil usa http.Error com RejectStatus.
	Reject func(w http.ResponseWriter, r *http.Request)
}

// ConcurrencyMiddleware limita requisições simultâneas; sem vaga no prazo, 503.
// Max <= 0 e Pool nil desativa.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil && opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Pool == nil {
		opts.Pool = infra.NewChanPool(opts.Max)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Reject == nil {
		status := opts.RejectStatus
		opts.Reject = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(status), status)
		}
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				opts.Logger.WarnContext(r.Context(), "no concurrency slot", "path", r.URL.Path, "timeout", opts.AcquireTimeout)
				opts.Reject(w, r)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
