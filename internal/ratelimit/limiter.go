// Package ratelimit provides per-key token bucket rate limiting for the MCP
// tools and HTTP control endpoints.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is wrapped by every CheckLimit rejection.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter implements a per-key token bucket rate limiter.
// Each key gets its own bucket with the configured rate and burst.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   int              // max burst size (also initial token count)
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow checks if a request for the given key should be allowed.
// Returns true if allowed, false if rate limited.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()

	b, ok := l.buckets[key]
	if !ok {
		// First request for this key: start with full burst
		b = &bucket{
			tokens:    float64(l.burst),
			lastCheck: now,
		}
		l.buckets[key] = b
	}

	// Refill tokens based on elapsed time
	elapsed := now.Sub(b.lastCheck).Seconds()
	if elapsed > 0 {
		b.tokens += l.rate * elapsed
		if b.tokens > float64(l.burst) {
			b.tokens = float64(l.burst)
		}
		b.lastCheck = now
	}

	// Check if we have at least 1 token
	if b.tokens < 1.0 {
		return false
	}

	b.tokens--
	return true
}

// ToolLimiters maps tool or endpoint names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters for the
// MCP server. Read-only state is cheap; stepping is the expensive call.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"strangeloop_state":    NewLimiter(10.0, 30),     // 600/minute, burst 30
		"strangeloop_step":     NewLimiter(2.0, 5),       // 120/minute, burst 5
		"strangeloop_stimulus": NewLimiter(5.0, 10),      // 300/minute, burst 10
		"strangeloop_reset":    NewLimiter(30.0/60.0, 3), // 30/minute, burst 3
		"strangeloop_toggle":   NewLimiter(1.0, 5),       // 60/minute, burst 5
		"strangeloop_topology": NewLimiter(10.0/60.0, 2), // 10/minute, burst 2
	}
}

// NewEndpointLimiters creates the default set of limiters for the HTTP
// control surface. Stimulus follows pointer input, so it gets a large burst.
func NewEndpointLimiters() ToolLimiters {
	return ToolLimiters{
		"stimulus": NewLimiter(30.0, 60),     // 1800/minute, burst 60
		"step":     NewLimiter(5.0, 10),      // 300/minute, burst 10
		"reset":    NewLimiter(1.0, 5),       // 60/minute, burst 5
		"toggle":   NewLimiter(2.0, 5),       // 120/minute, burst 5
		"reinit":   NewLimiter(10.0/60.0, 2), // 10/minute, burst 2
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error wrapping ErrRateLimited if not.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil // No limiter configured = no limit
	}

	if !limiter.Allow(toolName) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrRateLimited, toolName)
	}

	return nil
}
