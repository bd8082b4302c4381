package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"plant-gateway/internal/logging"
	"plant-gateway/internal/vision"
)

// ServeCmd sobe o servidor HTTP e encerra com graça em SIGINT/SIGTERM.
type ServeCmd struct {
	ShutdownTimeout time.Duration `name:"shutdown-timeout" help:"How long to wait for in-flight requests on shutdown." default:"10s"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(cfg.Log, nil)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	analyzer, err := vision.NewGemini(ctx, geminiConfig(cfg))
	if err != nil {
		return err
	}

	app, err := newApp(ctx, cfg, logger, analyzer)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// análise no modelo pode passar de 30s
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.ListenAddr, err)
	}

	logger.Info("plantdoc listening",
		"addr", cfg.Server.ListenAddr,
		"env", cfg.Server.Env,
		"model", cfg.Gemini.Model,
		"version", version(),
	)
	logger.Info("quota",
		"backend", cfg.Quota.Backend,
		"max_events", cfg.Quota.MaxEvents,
		"window", cfg.Quota.Window,
	)
	logger.Info("client rate",
		"enabled", cfg.ClientRate.Enabled,
		"rps", cfg.ClientRate.RPS,
		"burst", cfg.ClientRate.Burst,
		"key_header", cfg.ClientRate.KeyHeader,
		"trust_xff", cfg.ClientRate.TrustXFF,
	)
	logger.Info("concurrency", "max", cfg.Concurrency.Max, "acquire_timeout", cfg.Concurrency.Timeout)
	logger.Info("stats",
		"redis", cfg.Stats.RedisEnabled,
		"metrics", cfg.Server.MetricsEnabled,
		"bucket", cfg.Stats.Bucket,
		"track_keys", cfg.Stats.TrackKeys,
	)

	// serve só volta depois que as requisições em andamento terminaram;
	// o resumo e o app.Close adiado vêm depois disso.
	serveErr := serve(ctx, srv, ln, c.ShutdownTimeout)

	total := app.Stats.Total()
	logger.Info("plantdoc stopped",
		"allowed", total.Allowed,
		"denied", total.Denied,
		"quota_remaining", app.Stats.LastRemaining(),
	)
	return serveErr
}

// serve atende em ln até ctx encerrar e então espera o Shutdown terminar,
// limitado por timeout.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
