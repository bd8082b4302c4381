package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-gateway/middleware/ratelimit/domain"
)

// fakeClock começa em t=0 (epoch fixa) e só anda quando mandado.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// At posiciona o relógio em base+ms.
func (c *fakeClock) At(base time.Time, ms int) {
	c.mu.Lock()
	c.now = base.Add(time.Duration(ms) * time.Millisecond)
	c.mu.Unlock()
}

func TestSlidingLog_NoBoundaryBurst(t *testing.T) {
	clk := newFakeClock()
	base := clk.Now()
	l := NewSlidingLog(2, time.Second, WithClock(clk))

	require.True(t, l.TryAcquire(1).Allowed, "t=0")

	clk.At(base, 500)
	dec := l.TryAcquire(1)
	require.True(t, dec.Allowed, "t=500")
	assert.Equal(t, 0, dec.Remaining)

	clk.At(base, 999)
	dec = l.TryAcquire(1)
	assert.False(t, dec.Allowed, "t=999 must be rejected")
	assert.Equal(t, 0, dec.Remaining)

	clk.At(base, 1001)
	dec = l.TryAcquire(1)
	assert.True(t, dec.Allowed, "t=1001 must be admitted once t=0 left the window")
	assert.Equal(t, 0, dec.Remaining)
}

func TestSlidingLog_EntryExpiresExactlyAtWindowEdge(t *testing.T) {
	clk := newFakeClock()
	base := clk.Now()
	l := NewSlidingLog(1, time.Second, WithClock(clk))

	require.True(t, l.TryAcquire(1).Allowed)

	clk.At(base, 999)
	assert.Equal(t, 0, l.Remaining())

	clk.At(base, 1000)
	assert.Equal(t, 1, l.Remaining(), "entry at t-window is expired")
}

func TestSlidingLog_ConcreteMinuteScenario(t *testing.T) {
	clk := newFakeClock()
	base := clk.Now()
	l := NewSlidingLog(60, time.Minute, WithClock(clk))

	for i := 0; i < 60; i++ {
		require.True(t, l.TryAcquire(1).Allowed, "call %d", i+1)
	}

	dec := l.TryAcquire(1)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 0, dec.Remaining)
	assert.Equal(t, 60, dec.ResetInSeconds())

	clk.At(base, 60001)
	dec = l.TryAcquire(1)
	assert.True(t, dec.Allowed)
	assert.Equal(t, 59, dec.Remaining)
}

func TestSlidingLog_PruningRestoresFullCapacity(t *testing.T) {
	clk := newFakeClock()
	l := NewSlidingLog(5, time.Second, WithClock(clk))

	for i := 0; i < 4; i++ {
		l.TryAcquire(1)
		clk.Advance(100 * time.Millisecond)
	}
	require.Equal(t, 1, l.Remaining())

	clk.Advance(time.Second)
	assert.Equal(t, 5, l.Remaining())
	assert.Equal(t, 0, l.ResetInSeconds())
}

func TestSlidingLog_ResetInSecondsNonIncreasing(t *testing.T) {
	clk := newFakeClock()
	l := NewSlidingLog(3, 10*time.Second, WithClock(clk))

	clk.Advance(1500 * time.Millisecond)
	l.TryAcquire(1)
	l.TryAcquire(2)
	clk.Advance(1500 * time.Millisecond)

	prev := l.ResetInSeconds()
	require.Equal(t, 9, prev) // ceil(8.5s)
	for i := 0; i < 40; i++ {
		clk.Advance(500 * time.Millisecond)
		cur := l.ResetInSeconds()
		if l.Remaining() == 3 {
			assert.Equal(t, 0, cur)
			return
		}
		assert.LessOrEqual(t, cur, prev, "step %d", i)
		assert.GreaterOrEqual(t, cur, 0)
		prev = cur
	}
	t.Fatalf("log never drained")
}

func TestSlidingLog_ResetInZeroWhenEmpty(t *testing.T) {
	l := NewSlidingLog(3, time.Second, WithClock(newFakeClock()))
	assert.Equal(t, 0, l.ResetInSeconds())
	assert.Equal(t, time.Duration(0), l.ResetIn())
}

func TestSlidingLog_PeekIsIdempotent(t *testing.T) {
	clk := newFakeClock()
	l := NewSlidingLog(10, time.Minute, WithClock(clk))
	l.TryAcquire(3)

	first := l.Remaining()
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, l.Remaining())
	}
	assert.Equal(t, 7, first)
}

func TestSlidingLog_WeightedRejectDoesNotRecord(t *testing.T) {
	clk := newFakeClock()
	l := NewSlidingLog(10, time.Minute, WithClock(clk))
	require.True(t, l.TryAcquire(7).Allowed)
	require.Equal(t, 3, l.Remaining())

	dec := l.TryAcquire(5)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 3, dec.Remaining)
	assert.Equal(t, 3, l.Remaining(), "rejected acquire must not append")

	assert.True(t, l.TryAcquire(3).Allowed)
	assert.Equal(t, 0, l.Remaining())
}

func TestSlidingLog_WeightAboveLimitOnEmptyLog(t *testing.T) {
	l := NewSlidingLog(2, time.Second, WithClock(newFakeClock()))

	dec := l.TryAcquire(3)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 2, dec.Remaining)
	assert.Equal(t, 0, dec.ResetInSeconds())
}

func TestSlidingLog_InvalidWeightPanics(t *testing.T) {
	l := NewSlidingLog(2, time.Second)

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value should be an error, got %T", r)
		assert.ErrorIs(t, err, domain.ErrInvalidWeight)
	}()
	l.TryAcquire(0)
}

func TestSlidingLog_WindowNeverExceedsMax(t *testing.T) {
	clk := newFakeClock()
	base := clk.Now()
	const (
		max    = 4
		window = 1000
	)
	l := NewSlidingLog(max, window*time.Millisecond, WithClock(clk))

	var admitted []int
	// chegadas irregulares e determinísticas
	ms := 0
	for i := 0; i < 400; i++ {
		ms += (i*37)%211 + 1
		clk.At(base, ms)
		if l.TryAcquire(1).Allowed {
			admitted = append(admitted, ms)
		}
	}
	require.NotEmpty(t, admitted)

	// para cada admissão, conta as admissões em (t-window, t]
	for i, t0 := range admitted {
		n := 0
		for j := i; j >= 0 && admitted[j] > t0-window; j-- {
			n++
		}
		assert.LessOrEqual(t, n, max, "window ending at %dms", t0)
	}
}

func TestSlidingLog_ConcurrentAcquireRespectsMax(t *testing.T) {
	l := NewSlidingLog(50, time.Hour, WithClock(newFakeClock()))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if l.TryAcquire(1).Allowed {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, granted)
	assert.Equal(t, 0, l.Remaining())
}

func TestSlidingLog_StatusDoesNotConsume(t *testing.T) {
	clk := newFakeClock()
	l := NewSlidingLog(2, time.Minute, WithClock(clk))
	l.TryAcquire(1)

	dec, err := l.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, 1, dec.Used)
	assert.Equal(t, 1, dec.Remaining)
	assert.Equal(t, 2, dec.Limit)
	assert.Equal(t, 60, dec.ResetInSeconds())
	assert.Equal(t, 1, l.Remaining())
}
