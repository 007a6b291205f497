package flow

import (
	"sync/atomic"

	"mqttlog/src/internal/config"

	"golang.org/x/time/rate"
)

// RateLimiter caps the record rate accepted into a pipeline's queue.
// A nil limiter allows everything.
type RateLimiter struct {
	limiter *rate.Limiter

	// Statistics
	droppedCount atomic.Uint64
}

// NewRateLimiter creates a pipeline-level rate limiter from configuration.
// Returns nil when no limit is configured.
func NewRateLimiter(cfg *config.RateLimitConfig) *RateLimiter {
	if cfg == nil || cfg.Rate <= 0 {
		return nil
	}

	burst := int(cfg.Burst)
	if burst <= 0 {
		burst = int(cfg.Rate) // Default burst to rate
		if burst < 1 {
			burst = 1
		}
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), burst),
	}
}

// Allow checks if a record is permitted to pass.
func (l *RateLimiter) Allow() bool {
	if l == nil {
		return true
	}
	if l.limiter.Allow() {
		return true
	}
	l.droppedCount.Add(1)
	return false
}

// GetStats returns statistics for the rate limiter.
func (l *RateLimiter) GetStats() map[string]any {
	if l == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"enabled":       true,
		"rate":          float64(l.limiter.Limit()),
		"burst":         l.limiter.Burst(),
		"dropped_total": l.droppedCount.Load(),
	}
}
