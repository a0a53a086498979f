package chain

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter holds one token bucket per RPC endpoint. The concurrent
// read-only queries fan out several eth_call requests at once and public
// endpoints ban clients that burst.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewRateLimiter allows ratePerSecond requests per endpoint with the given
// burst. A non-positive rate disables limiting.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(ratePerSecond)
	if ratePerSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   max(burst, 1),
	}
}

// Allow reports whether a request to endpoint may go out now.
func (r *RateLimiter) Allow(endpoint string) bool {
	if r == nil {
		return true
	}
	return r.bucket(endpoint).Allow()
}

// Wait blocks until endpoint has a token or ctx ends. A nil limiter never blocks.
func (r *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	if r == nil {
		return nil
	}
	return r.bucket(endpoint).Wait(ctx)
}

func (r *RateLimiter) bucket(endpoint string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[endpoint]
	if !ok {
		b = rate.NewLimiter(r.limit, r.burst)
		r.buckets[endpoint] = b
	}
	return b
}
