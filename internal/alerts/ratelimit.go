package alerts

import (
	"sync"
	"time"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// RateLimiter is a token bucket gating callouts to the text-generation
// backend. Capacity is the maximum calls per minute; tokens refill
// continuously at capacity/60 per second, capped at capacity.
type RateLimiter struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	lastRefill time.Time
	clock      Clock
}

// LimiterOption configures the rate limiter.
type LimiterOption func(*RateLimiter)

// WithLimiterClock overrides the default clock.
func WithLimiterClock(clock Clock) LimiterOption {
	return func(l *RateLimiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// NewRateLimiter constructs a full bucket with the given per-minute capacity.
func NewRateLimiter(callsPerMinute int, opts ...LimiterOption) *RateLimiter {
	if callsPerMinute < 1 {
		callsPerMinute = 1
	}
	limiter := &RateLimiter{
		capacity: float64(callsPerMinute),
		tokens:   float64(callsPerMinute),
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(limiter)
	}
	limiter.lastRefill = limiter.clock.Now()
	return limiter
}

// Allow consumes one token when available. Refill and decrement happen under
// a single lock, the only writer discipline for this shared state.
func (l *RateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed > 0 {
		l.tokens += elapsed * (l.capacity / 60)
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
	}
	l.lastRefill = now

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}
