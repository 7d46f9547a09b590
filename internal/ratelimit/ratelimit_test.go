package ratelimit

import (
	"errors"
	"testing"
	"time"
)

func TestUseRespectsProviderLimit(t *testing.T) {
	rl := NewAIRateLimiter(map[string]int{Gemini: 2}, 0)

	for i := 0; i < 2; i++ {
		if err := rl.Use(Gemini); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}
	if err := rl.Use(Gemini); !errors.Is(err, ErrLimitExceeded) {
		t.Fatal("expected third request to be rejected")
	}
	if rl.canUse(Gemini) {
		t.Error("canUse should be false after limit")
	}
	if !rl.canUse(OpenAI) {
		t.Error("unlimited provider should still be allowed")
	}
}

func TestUseRespectsTotalLimit(t *testing.T) {
	rl := NewAIRateLimiter(map[string]int{Gemini: 0, OpenAI: 0}, 1)
	if err := rl.Use(OpenAI); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rl.Use(Gemini); err == nil {
		t.Fatal("expected total limit to reject")
	}
}

func TestCountersResetAfterWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewAIRateLimiter(map[string]int{Gemini: 1}, 0)
	rl.now = func() time.Time { return now }
	rl.resetTime = now.Add(time.Hour)

	if err := rl.Use(Gemini); err != nil {
		t.Fatal(err)
	}
	if err := rl.Use(Gemini); err == nil {
		t.Fatal("expected limit")
	}

	now = now.Add(2 * time.Hour)
	if err := rl.Use(Gemini); err != nil {
		t.Fatalf("expected reset, got %v", err)
	}
	if got := rl.GetStats()["gemini_used"]; got != 1 {
		t.Errorf("gemini_used = %v, want 1", got)
	}
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var rl *AIRateLimiter
	if err := rl.Use(Gemini); err != nil {
		t.Fatalf("nil limiter returned %v", err)
	}
}
