package infra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"plant-gateway/middleware/ratelimit/domain"
)

func TestMemoryStatsStore_CountsByScopeRouteAndKey(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	_ = s.Record(ctx, domain.StatsEvent{Key: "1.2.3.4", Scope: domain.ScopeClient, Allowed: true, Method: "POST", Path: "/api/analyze-plant", Remaining: -1})
	_ = s.Record(ctx, domain.StatsEvent{Key: domain.QuotaKey, Scope: domain.ScopeQuota, Allowed: true, Method: "POST", Path: "/api/analyze-plant", Remaining: 4})
	_ = s.Record(ctx, domain.StatsEvent{Key: domain.QuotaKey, Scope: domain.ScopeQuota, Allowed: false, Method: "POST", Path: "/api/analyze-plant", Remaining: 0})

	assert.Equal(t, Counters{Allowed: 1}, s.Scope(domain.ScopeClient))
	assert.Equal(t, Counters{Allowed: 1, Denied: 1}, s.Scope(domain.ScopeQuota))
	assert.Equal(t, Counters{Allowed: 2, Denied: 1}, s.Total())
	assert.Equal(t, Counters{Allowed: 2, Denied: 1}, s.ByRoute()["POST /api/analyze-plant"])
	assert.Equal(t, Counters{Allowed: 1, Denied: 1}, s.ByKey()[domain.QuotaKey])
	assert.Equal(t, 0, s.LastRemaining())
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.StatsEvent{Key: "k", Scope: domain.ScopeClient, Allowed: true})

	assert.Empty(t, s.ByKey())
	assert.Equal(t, -1, s.LastRemaining())
}
