// Package config centraliza a configuração do plantdoc: variáveis de ambiente,
// opcionalmente semeadas por um arquivo .env.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"plant-gateway/internal/logging"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Server      ServerConfig
	Gemini      GeminiConfig
	Quota       QuotaConfig
	Redis       RedisConfig
	ClientRate  ClientRateConfig
	Concurrency ConcurrencyConfig
	Stats       StatsConfig
	Log         logging.Config
}

type ServerConfig struct {
	ListenAddr     string
	Env            string
	MaxBodyBytes   int64
	FrontendURL    string
	MetricsEnabled bool
}

// IsProduction controla se detalhes de erro do upstream vão para o cliente.
func (s ServerConfig) IsProduction() bool {
	return strings.EqualFold(s.Env, "production") || strings.EqualFold(s.Env, "prod")
}

type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopK            float32
	TopP            float32
	MaxOutputTokens int32
}

type QuotaConfig struct {
	Backend   string
	MaxEvents int
	Window    time.Duration
	RedisKey  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ClientRateConfig struct {
	Enabled    bool
	RPS        float64
	Burst      int
	KeyHeader  string
	TrustXFF   bool
	AddHeaders bool
	RetryAfter time.Duration
}

type ConcurrencyConfig struct {
	Max     int
	Timeout time.Duration
}

type StatsConfig struct {
	RedisEnabled bool
	Prefix       string
	TTL          time.Duration
	Bucket       string
	TrackKeys    bool
}

// NeedsRedis indica se algum componente configurado fala com o Redis.
func (c Config) NeedsRedis() bool {
	return c.Quota.Backend == BackendRedis || c.Stats.RedisEnabled
}

// LoadEnvFile carrega o .env indicado (ou ./.env se existir) sem sobrescrever
// variáveis já definidas no ambiente.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load lê o ambiente do processo. Valores malformados viram erro (todos de
// uma vez), nunca default silencioso.
func Load() (Config, error) {
	var e env

	cfg := Config{
		Server: ServerConfig{
			ListenAddr:     e.str("LISTEN_ADDR", ":8080"),
			Env:            e.str("APP_ENV", "development"),
			MaxBodyBytes:   int64(e.int("MAX_BODY_BYTES", 10<<20)),
			FrontendURL:    e.str("FRONTEND_URL", ""),
			MetricsEnabled: e.bool("METRICS_ENABLED", true),
		},
		Gemini: GeminiConfig{
			APIKey:          e.str("GOOGLE_API_KEY", ""),
			Model:           e.str("GEMINI_MODEL", "gemini-1.5-flash"),
			Temperature:     float32(e.float("GEMINI_TEMPERATURE", 0.4)),
			TopK:            float32(e.float("GEMINI_TOP_K", 32)),
			TopP:            float32(e.float("GEMINI_TOP_P", 1)),
			MaxOutputTokens: int32(e.int("GEMINI_MAX_OUTPUT_TOKENS", 2048)),
		},
		Quota: QuotaConfig{
			Backend:   strings.ToLower(e.str("QUOTA_BACKEND", BackendMemory)),
			MaxEvents: e.int("QUOTA_MAX_EVENTS", 60),
			Window:    e.duration("QUOTA_WINDOW", time.Minute),
			RedisKey:  e.str("QUOTA_REDIS_KEY", "plantdoc:quota"),
		},
		Redis: RedisConfig{
			Addr:     e.str("REDIS_ADDR", ""),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       e.int("REDIS_DB", 0),
		},
		ClientRate: ClientRateConfig{
			Enabled:    e.bool("CLIENT_RATE_ENABLED", false),
			RPS:        e.float("CLIENT_RATE_RPS", 1),
			Burst:      e.int("CLIENT_RATE_BURST", 5),
			KeyHeader:  os.Getenv("RATE_KEY_HEADER"),
			TrustXFF:   e.bool("TRUST_XFF", false),
			AddHeaders: e.bool("ADD_RATELIMIT_HEADERS", true),
			RetryAfter: e.duration("CLIENT_RATE_RETRY_AFTER", 0),
		},
		Concurrency: ConcurrencyConfig{
			Max:     e.int("CONCURRENCY_MAX", 8),
			Timeout: e.duration("CONCURRENCY_TIMEOUT", 5*time.Second),
		},
		Stats: StatsConfig{
			RedisEnabled: e.bool("STATS_REDIS_ENABLED", false),
			Prefix:       e.str("STATS_PREFIX", "plantdoc:stats"),
			TTL:          e.duration("STATS_TTL", 24*time.Hour),
			Bucket:       e.str("STATS_BUCKET", "minute"),
			TrackKeys:    e.bool("STATS_TRACK_KEYS", false),
		},
		Log: logging.Config{
			Level:     e.str("LOG_LEVEL", "info"),
			Format:    e.str("LOG_FORMAT", "text"),
			File:      strings.TrimSpace(os.Getenv("LOG_FILE")),
			MaxSizeMB: e.int("LOG_MAX_SIZE_MB", 50),
		},
	}
	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Quota.MaxEvents < 1 {
		errs = append(errs, errors.New("QUOTA_MAX_EVENTS must be >= 1"))
	}
	if c.Quota.Window < time.Millisecond {
		errs = append(errs, errors.New("QUOTA_WINDOW must be >= 1ms"))
	}
	switch c.Quota.Backend {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("QUOTA_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, c.Quota.Backend))
	}
	if c.NeedsRedis() && strings.TrimSpace(c.Redis.Addr) == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when QUOTA_BACKEND=redis or STATS_REDIS_ENABLED=true"))
	}
	if c.ClientRate.Enabled {
		if c.ClientRate.RPS <= 0 {
			errs = append(errs, errors.New("CLIENT_RATE_RPS must be > 0"))
		}
		if c.ClientRate.Burst <= 0 {
			errs = append(errs, errors.New("CLIENT_RATE_BURST must be > 0"))
		}
	}
	if c.Concurrency.Max < 0 {
		errs = append(errs, errors.New("CONCURRENCY_MAX must be >= 0"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be > 0"))
	}
	if c.Gemini.MaxOutputTokens <= 0 {
		errs = append(errs, errors.New("GEMINI_MAX_OUTPUT_TOKENS must be > 0"))
	}
	if c.Server.FrontendURL != "" {
		u, err := url.Parse(c.Server.FrontendURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid FRONTEND_URL %q", c.Server.FrontendURL))
		}
	}
	return errors.Join(errs...)
}

// env acumula erros de parse para que o operador veja tudo de uma vez.
type env struct{ errs []error }

func (e *env) str(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func (e *env) int(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", k, err))
		return def
	}
	return i
}

func (e *env) float(k string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", k, err))
		return def
	}
	return f
}

func (e *env) bool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", k, err))
		return def
	}
	return b
}

func (e *env) duration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", k, err))
		return def
	}
	return d
}
