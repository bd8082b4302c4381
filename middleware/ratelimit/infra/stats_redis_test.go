package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-gateway/middleware/ratelimit/domain"
)

func TestRedisStatsStore_WritesCountersAndBuckets(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisStatsStore(rdb, WithStatsPrefix("plantdoc:stats:"), WithStatsTTL(time.Hour))
	at := time.Date(2024, 5, 1, 12, 30, 10, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.StatsEvent{
		Key: "ip:192.0.2.10", Scope: domain.ScopeQuota, Allowed: true,
		Method: "POST", Path: "/api/analyze-plant", Remaining: 59, At: at,
	}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{
		Key: "ip:192.0.2.10", Scope: domain.ScopeQuota, Allowed: false,
		Method: "POST", Path: "/api/analyze-plant", Remaining: 0, At: at,
	}))

	assert.Equal(t, "1", mr.HGet("plantdoc:stats:total", "quota:allowed"))
	assert.Equal(t, "1", mr.HGet("plantdoc:stats:total", "quota:denied"))
	assert.Equal(t, "1", mr.HGet("plantdoc:stats:minute:202405011230", "quota:allowed"))
	assert.Equal(t, time.Hour, mr.TTL("plantdoc:stats:minute:202405011230"))
	assert.Equal(t, "1", mr.HGet("plantdoc:stats:route", "POST /api/analyze-plant:quota:denied"))
	assert.Equal(t, "0", mr.HGet("plantdoc:stats:quota", "remaining"))
	assert.False(t, mr.Exists("plantdoc:stats:key:ip:192.0.2.10"), "keys are not tracked by default")
	assert.Equal(t, time.Duration(0), mr.TTL("plantdoc:stats:total"), "totals never expire")
}

func TestRedisStatsStore_TrackKeysWithoutBuckets(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisStatsStore(rdb, WithStatsBucket("none"), WithStatsTrackKeys(true))
	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{
		Key: "ip:192.0.2.10", Scope: domain.ScopeClient, Allowed: false, Remaining: -1,
	}))

	assert.Equal(t, "1", mr.HGet("plantdoc:stats:key:ip:192.0.2.10", "client:denied"))
	assert.Equal(t, 24*time.Hour, mr.TTL("plantdoc:stats:key:ip:192.0.2.10"))
	assert.False(t, mr.Exists("plantdoc:stats:quota"), "client events do not touch the quota hash")
	for _, k := range mr.Keys() {
		assert.NotContains(t, k, ":minute:")
	}
}

func TestRedisStatsStore_NilIsNoop(t *testing.T) {
	var s *RedisStatsStore
	assert.NoError(t, s.Record(context.Background(), domain.StatsEvent{Scope: domain.ScopeQuota}))
}
