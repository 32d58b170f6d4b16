package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenLimiter enforces a tokens-per-minute budget for generative API calls.
// Callers wait until the requested token count fits in the current window.
type TokenLimiter struct {
	mu           sync.Mutex
	maxPerMinute int
	used         int
	windowStart  time.Time
}

// NewTokenLimiter creates a limiter allowing maxPerMinute tokens per rolling minute.
func NewTokenLimiter(maxPerMinute int) *TokenLimiter {
	return &TokenLimiter{
		maxPerMinute: maxPerMinute,
		windowStart:  time.Now(),
	}
}

// GetRemaining returns the tokens still available in the current window.
func (l *TokenLimiter) GetRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollWindow()
	return l.maxPerMinute - l.used
}

// Wait blocks until tokens can be consumed or the context is cancelled.
// Requests larger than the whole budget are allowed through once the
// window is empty, since they could otherwise never proceed.
func (l *TokenLimiter) Wait(ctx context.Context, tokens int) error {
	for {
		l.mu.Lock()
		l.rollWindow()
		if l.used == 0 || l.used+tokens <= l.maxPerMinute {
			l.used += tokens
			l.mu.Unlock()
			return nil
		}
		wait := time.Until(l.windowStart.Add(time.Minute))
		l.mu.Unlock()

		if wait < 50*time.Millisecond {
			wait = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (l *TokenLimiter) rollWindow() {
	if time.Since(l.windowStart) >= time.Minute {
		l.windowStart = time.Now()
		l.used = 0
	}
}
