package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deusflow/explainee/internal/logger"
)

// Provider names used by the AI clients.
const (
	Gemini = "gemini"
	OpenAI = "openai"
)

// ErrLimitExceeded is wrapped by every rejection from Use.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// AIRateLimiter caps the number of requests per AI provider within a daily
// window. A limit of 0 means unlimited.
type AIRateLimiter struct {
	mu        sync.Mutex
	limits    map[string]int
	counts    map[string]int
	maxTotal  int
	total     int
	window    time.Duration
	resetTime time.Time
	now       func() time.Time
}

// NewAIRateLimiter creates a limiter with per-provider limits and a total cap.
func NewAIRateLimiter(limits map[string]int, maxTotal int) *AIRateLimiter {
	rl := &AIRateLimiter{
		limits:   make(map[string]int, len(limits)),
		counts:   make(map[string]int),
		maxTotal: maxTotal,
		window:   24 * time.Hour, // Reset daily
		now:      time.Now,
	}
	for k, v := range limits {
		rl.limits[k] = v
	}
	rl.resetTime = rl.now().Add(rl.window)
	return rl
}

// canUse reports whether a request to provider would be allowed.
func (rl *AIRateLimiter) canUse(provider string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()
	return rl.check(provider) == nil
}

// Use records a request to provider, or returns an error when a limit is reached.
func (rl *AIRateLimiter) Use(provider string) error {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()
	if err := rl.check(provider); err != nil {
		logger.Warn("AI rate limit reached", "provider", provider, "used", rl.counts[provider], "limit", rl.limits[provider])
		return err
	}

	rl.counts[provider]++
	rl.total++

	logger.Debug("AI usage", "provider", provider, "used", rl.counts[provider], "limit", rl.limits[provider], "total", rl.total)
	return nil
}

func (rl *AIRateLimiter) check(provider string) error {
	if max := rl.limits[provider]; max > 0 && rl.counts[provider] >= max {
		return fmt.Errorf("%s: %w", provider, ErrLimitExceeded)
	}
	if rl.maxTotal > 0 && rl.total >= rl.maxTotal {
		return fmt.Errorf("total AI requests: %w", ErrLimitExceeded)
	}
	return nil
}

// GetStats returns current rate limiter statistics
func (rl *AIRateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := map[string]interface{}{
		"total_used":  rl.total,
		"total_limit": rl.maxTotal,
		"reset_time":  rl.resetTime,
	}
	for provider, limit := range rl.limits {
		stats[provider+"_used"] = rl.counts[provider]
		stats[provider+"_limit"] = limit
	}
	return stats
}

// checkReset resets counters if reset time has passed
func (rl *AIRateLimiter) checkReset() {
	if rl.now().After(rl.resetTime) {
		logger.Info("Resetting AI rate limiter counters", "total_used", rl.total)
		rl.counts = make(map[string]int)
		rl.total = 0
		rl.resetTime = rl.now().Add(rl.window)
	}
}
