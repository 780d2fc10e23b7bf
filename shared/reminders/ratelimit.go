package reminders

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	// Rate is messages per second.
	Rate float64
	// Burst is the maximum number of tokens in the bucket.
	Burst int
	// JitterMin and JitterMax bound the random delay in milliseconds added
	// before each send.
	JitterMin int
	JitterMax int
}

// DefaultRateLimiterConfig stays under Telegram's 30 msg/s broadcast limit.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:      20.0,
		Burst:     30,
		JitterMin: 50,
		JitterMax: 150,
	}
}

// RateLimiter is a token bucket with jitter.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = DefaultRateLimiterConfig().Rate
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if jitter := r.jitter(); jitter > 0 {
		t := time.NewTimer(jitter)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return r.limiter.Wait(ctx)
}

func (r *RateLimiter) jitter() time.Duration {
	if r.config.JitterMax <= r.config.JitterMin {
		return time.Duration(r.config.JitterMin) * time.Millisecond
	}
	ms := r.config.JitterMin + rand.IntN(r.config.JitterMax-r.config.JitterMin)
	return time.Duration(ms) * time.Millisecond
}

// TryAcquire takes a token without blocking.
func (r *RateLimiter) TryAcquire() bool {
	return r.limiter.Allow()
}

// Available returns the current number of tokens.
func (r *RateLimiter) Available() float64 {
	return r.limiter.Tokens()
}
