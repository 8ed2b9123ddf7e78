package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter enforces a minimum delay between requests to the same host.
// One instance is shared by every run in the process so concurrent analyses
// do not multiply the load on the job board.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter // key: host
	minDelay time.Duration
}

// NewHostLimiter creates a limiter allowing one request per minDelay per host.
// A non-positive minDelay disables limiting.
func NewHostLimiter(minDelay time.Duration) *HostLimiter {
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		minDelay: minDelay,
	}
}

func (l *HostLimiter) limiterFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Every(l.minDelay), 1)
	l.limiters[host] = lim
	return lim
}

// Wait blocks until a request to host is allowed.
// Returns an error if the context is cancelled while waiting.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil || l.minDelay <= 0 {
		return nil
	}
	if err := l.limiterFor(host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", host, err)
	}
	return nil
}
