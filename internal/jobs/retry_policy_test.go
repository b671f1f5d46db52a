package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldRetryTransientOnly(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()

	require.True(t, p.ShouldRetry(Transient("adzuna", errors.New("timeout")), 0))
	require.False(t, p.ShouldRetry(Permanent("adzuna", errors.New("bad shape")), 0))
	require.False(t, p.ShouldRetry(context.Canceled, 0))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 1))
	require.False(t, p.ShouldRetry(nil, 0))
}

func TestShouldRetryRespectsMaxAttempts(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(2, time.Millisecond, time.Second)
	err := Transient("adzuna", errors.New("timeout"))

	require.True(t, p.ShouldRetry(err, 0))
	require.True(t, p.ShouldRetry(err, 1))
	require.False(t, p.ShouldRetry(err, 2))
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(5, 100*time.Millisecond, 400*time.Millisecond)

	for attempt := 0; attempt < 5; attempt++ {
		d := p.Backoff(attempt)
		require.Positive(t, d)
		require.LessOrEqual(t, d, 400*time.Millisecond)
	}
}

func TestRetryableClassification(t *testing.T) {
	t.Parallel()

	require.True(t, Retryable(Transient("x", errors.New("conn reset"))))
	require.False(t, Retryable(Permanent("x", errors.New("schema drift"))))
	require.False(t, Retryable(errors.New("unclassified")))
}
