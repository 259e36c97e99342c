package gitee

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterMinDelay(t *testing.T) {
	r := NewRateLimiter()
	ctx := context.Background()

	require.NoError(t, r.Wait(ctx))
	start := time.Now()
	require.NoError(t, r.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiterSleepsUntilReset(t *testing.T) {
	r := NewRateLimiter()
	headers := map[string]string{
		"X-RateLimit-Remaining": "5",
		"X-RateLimit-Reset":     "0", // reset already in the past
	}
	r.UpdateFromHeader(func(key string) string { return headers[key] })

	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, -1, r.remaining)
}

func TestRateLimiterIgnoresMissingHeaders(t *testing.T) {
	r := NewRateLimiter()
	r.UpdateFromHeader(func(string) string { return "" })
	assert.Equal(t, -1, r.remaining)
}

func TestRateLimiterWaitHonorsContext(t *testing.T) {
	r := NewRateLimiter()
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.Canceled)
}
