// Package logging monta o *slog.Logger do serviço: nível e formato vindos da
// configuração, stderr sempre e, opcionalmente, um arquivo com tamanho limitado.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Level     string // debug|info|warn|error (padrão info)
	Format    string // text|json (padrão text)
	File      string // vazio = sem arquivo
	MaxSizeMB int    // limite do arquivo antes de truncar (padrão 50)
}

// ParseLevel aceita os nomes usuais; vazio vira info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func validFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", "text":
		return "text", nil
	case "json":
		return "json", nil
	default:
		return "", fmt.Errorf("unknown log format %q", s)
	}
}

// New cria o logger escrevendo em stderr (nil = os.Stderr) e, se cfg.File
// estiver setado, também no arquivo. O io.Closer fecha o arquivo; é no-op sem arquivo.
func New(cfg Config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	format, err := validFormat(cfg.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid LOG_FORMAT: %w", err)
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	handlers := []slog.Handler{newHandler(format, stderr, opts)}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		maxMB := cfg.MaxSizeMB
		if maxMB <= 0 {
			maxMB = 50
		}
		fw, err := NewResetWriter(cfg.File, maxMB*1024*1024)
		if err != nil {
			return nil, nil, fmt.Errorf("open LOG_FILE: %w", err)
		}
		handlers = append(handlers, newHandler(format, fw, opts))
		closer = fw
	}

	var h slog.Handler = handlers[0]
	if len(handlers) > 1 {
		h = MultiHandler{hs: handlers}
	}
	return slog.New(h), closer, nil
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// MultiHandler repassa cada registro para todos os handlers.
type MultiHandler struct{ hs []slog.Handler }

func (m MultiHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range m.hs {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

// Handle devolve o primeiro erro, mas tenta todos.
func (m MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithAttrs(attrs)
	}
	return MultiHandler{hs: out}
}

func (m MultiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithGroup(name)
	}
	return MultiHandler{hs: out}
}
