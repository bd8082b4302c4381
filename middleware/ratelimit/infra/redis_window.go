package infra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"plant-gateway/middleware/ratelimit/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingLogScript faz prune + soma + append num único passo atômico no Redis.
//
// KEYS[1] = zset do log (score = instante em ms, membro = <uuid>:<peso>)
// ARGV    = now_ms (-1 = relógio do Redis), window_ms, max, weight (0 = só consulta), member
// Retorno = {allowed, used, oldest_ms ou -1, now_ms}
var slidingLogScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
if now < 0 then
  local t = redis.call('TIME')
  now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
end
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local weight = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local used = 0
for _, m in ipairs(redis.call('ZRANGE', key, 0, -1)) do
  used = used + (tonumber(string.match(m, ':(%d+)$')) or 1)
end

local allowed = 0
if weight > 0 and used + weight <= max then
  redis.call('ZADD', key, now, ARGV[5])
  redis.call('PEXPIRE', key, window)
  used = used + weight
  allowed = 1
elseif weight == 0 and used < max then
  allowed = 1
end

local oldest = -1
local head = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #head == 2 then
  oldest = tonumber(head[2])
end
return {allowed, used, oldest, now}
`)

// RedisWindow é a cota de janela deslizante compartilhada entre réplicas.
// Mesma semântica do SlidingLog; o mutex vira o script Lua.
//
// Sem WithRedisWindowClock os instantes vêm do TIME do Redis, então todas as
// réplicas gravam na mesma régua mesmo com relógios locais desalinhados.
type RedisWindow struct {
	rdb    redis.Scripter
	key    string
	max    int
	window time.Duration
	// clock nil = relógio do servidor Redis
	clock domain.Clock
}

type RedisWindowOption func(*RedisWindow)

func WithRedisWindowClock(c domain.Clock) RedisWindowOption {
	return func(w *RedisWindow) {
		if c != nil {
			w.clock = c
		}
	}
}

func NewRedisWindow(rdb redis.Scripter, key string, max int, window time.Duration, opts ...RedisWindowOption) *RedisWindow {
	if max < 1 {
		panic(fmt.Sprintf("ratelimit: redis window max must be >= 1, got %d", max))
	}
	if window < time.Millisecond {
		panic(fmt.Sprintf("ratelimit: redis window must be >= 1ms, got %s", window))
	}
	w := &RedisWindow{
		rdb:    rdb,
		key:    key,
		max:    max,
		window: window,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Reserve implementa domain.QuotaLimiter.
func (w *RedisWindow) Reserve(ctx context.Context, weight int) (domain.QuotaDecision, error) {
	if weight < 1 {
		panic(fmt.Errorf("%w: got %d", domain.ErrInvalidWeight, weight))
	}
	return w.eval(ctx, weight)
}

// Status implementa domain.QuotaLimiter.
func (w *RedisWindow) Status(ctx context.Context) (domain.QuotaDecision, error) {
	return w.eval(ctx, 0)
}

func (w *RedisWindow) eval(ctx context.Context, weight int) (domain.QuotaDecision, error) {
	nowArg := int64(-1)
	if w.clock != nil {
		nowArg = w.clock.Now().UnixMilli()
	}
	member := uuid.NewString() + ":" + strconv.Itoa(weight)

	res, err := slidingLogScript.Run(ctx, w.rdb, []string{w.key},
		nowArg, w.window.Milliseconds(), w.max, weight, member,
	).Int64Slice()
	if err != nil {
		return domain.QuotaDecision{}, fmt.Errorf("redis window %s: %w", w.key, err)
	}
	if len(res) != 4 {
		return domain.QuotaDecision{}, fmt.Errorf("redis window %s: unexpected script reply %v", w.key, res)
	}

	used, nowMs := int(res[1]), res[3]
	dec := domain.QuotaDecision{
		Allowed:   res[0] == 1,
		Limit:     w.max,
		Used:      used,
		Remaining: max(w.max-used, 0),
	}
	if oldest := res[2]; oldest >= 0 {
		dec.ResetIn = max(time.Duration(oldest+w.window.Milliseconds()-nowMs)*time.Millisecond, 0)
	}
	return dec, nil
}
