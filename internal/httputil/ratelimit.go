// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"sync"
	"time"
)

// Limiter gates request issuance to at most limit requests inside any
// sliding window. One Limiter instance is shared by every caller targeting
// the same endpoint; internal state is mutex-serialized so near-simultaneous
// callers cannot double-count or race past the limit.
type Limiter struct {
	limit  int
	window time.Duration

	mu sync.Mutex
	// issued holds the timestamps of past issuances, oldest first.
	issued []time.Time
}

// NewLimiter returns a limiter admitting limit issuances per window.
// A non-positive limit or window disables limiting.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{limit: limit, window: window}
}

// Acquire suspends the caller until another request may be issued, then
// records the issuance. When the window is full the wait is exactly
// (oldest remaining issuance + window) - now. Returns ctx.Err() if the
// context is cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil || l.limit <= 0 || l.window <= 0 {
		return ctx.Err()
	}

	for {
		l.mu.Lock()
		now := time.Now()
		l.evict(now)
		if len(l.issued) < l.limit {
			l.issued = append(l.issued, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.issued[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		// Another caller may record an issuance while we sleep, so
		// re-check rather than assuming the slot is ours.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// evict drops issuance records that have left the window. Caller holds mu.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.issued) && !l.issued[i].After(cutoff) {
		i++
	}
	l.issued = l.issued[i:]
}
