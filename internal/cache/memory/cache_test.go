package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hireloop/jobradar/internal/jobs"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGetReturnsExactPayloadWithinTTL(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)}
	c := New(24*time.Hour, clock)

	payload := []jobs.Listing{{Title: "Go Engineer", Company: "Acme", URL: "https://example.com/1"}}
	require.NoError(t, c.Put(context.Background(), "k1", payload))

	clock.advance(23 * time.Hour)
	got, hit, err := c.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, payload, got)
}

func TestExpiryIsHardBoundary(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)}
	c := New(time.Hour, clock)

	require.NoError(t, c.Put(context.Background(), "k1", []jobs.Listing{{Title: "x"}}))
	clock.advance(time.Hour)

	_, hit, err := c.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.False(t, hit)
	require.Zero(t, c.Len(), "expired entry evicted lazily on read")
}

func TestMissOnUnknownKey(t *testing.T) {
	t.Parallel()

	c := New(time.Hour, &fakeClock{now: time.Now()})
	_, hit, err := c.Get(context.Background(), "unknown")
	require.NoError(t, err)
	require.False(t, hit)
}

func TestConcurrentPutSameKeyLastWriteWins(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)}
	c := New(time.Hour, clock)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Put(context.Background(), "k1", []jobs.Listing{{Title: "same query"}})
		}()
	}
	wg.Wait()

	got, hit, err := c.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 1)
	require.Equal(t, 1, c.Len())
}
