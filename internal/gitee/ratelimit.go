package gitee

import (
	"context"
	"strconv"
	"time"
)

// RateLimiter paces requests against the Gitee API. Gitee does not expose
// a reliable rate limit endpoint, so pacing is a minimum delay between
// calls plus a sleep-until-reset when the remaining quota from response
// headers (when present at all) runs low.
type RateLimiter struct {
	remaining int
	resetTime time.Time
	minDelay  time.Duration
	lastCall  time.Time
}

// NewRateLimiter creates a rate limiter with default pacing
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		remaining: -1, // unknown until a response reports it
		minDelay:  100 * time.Millisecond,
	}
}

// Wait blocks until it is safe to make another API call
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r.remaining >= 0 && r.remaining <= 10 {
		waitDuration := time.Until(r.resetTime)
		if waitDuration > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
			}
		}
		r.remaining = -1
	}

	elapsed := time.Since(r.lastCall)
	if elapsed < r.minDelay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.minDelay - elapsed):
		}
	}

	r.lastCall = time.Now()
	return nil
}

// UpdateFromHeader updates the limiter from rate limit response headers.
// Missing or unparsable headers leave the current state untouched.
func (r *RateLimiter) UpdateFromHeader(get func(string) string) {
	remaining, err := strconv.Atoi(get("X-RateLimit-Remaining"))
	if err != nil {
		return
	}
	r.remaining = remaining

	if reset, err := strconv.ParseInt(get("X-RateLimit-Reset"), 10, 64); err == nil {
		r.resetTime = time.Unix(reset, 0)
	}
}
