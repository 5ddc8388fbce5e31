package upload

import (
	"sync"
	"time"
)

// Rate limiting bounds.
const (
	// RateLimitInterval is the width of one counting window.
	RateLimitInterval = time.Minute
	// MaxPingsPerInterval is how many pings may start uploading per
	// window.
	MaxPingsPerInterval = 15
)

// RateLimiterState is the verdict for one upload slot request.
type RateLimiterState int

const (
	// Incrementing grants the slot; the window count went up.
	Incrementing RateLimiterState = iota
	// Throttled denies the slot until the window rolls over.
	Throttled
	// Stopped denies the slot because the uploader gave up; clears when
	// the window rolls over.
	Stopped
)

// RateLimiter enforces the per-window upload budget. Windows reset lazily:
// the first slot request after expiry starts a fresh window, which also
// clears a sticky stop. Safe for concurrent use; slots are requested on the
// recording flow while Stop arrives from the upload flow.
type RateLimiter struct {
	interval time.Duration
	maxCount int

	mu      sync.Mutex
	started *time.Time
	count   int
	stopped bool
	now     func() time.Time
}

// NewRateLimiter creates a limiter. Non-positive arguments select the
// defaults.
func NewRateLimiter(interval time.Duration, maxCount int) *RateLimiter {
	if interval <= 0 {
		interval = RateLimitInterval
	}
	if maxCount <= 0 {
		maxCount = MaxPingsPerInterval
	}
	return &RateLimiter{interval: interval, maxCount: maxCount, now: time.Now}
}

// GetState requests an upload slot. remaining reports how long until the
// window rolls over when the slot is denied.
func (r *RateLimiter) GetState() (state RateLimiterState, remaining time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.started == nil || now.Before(*r.started) || now.Sub(*r.started) > r.interval {
		r.started = &now
		r.count = 0
		r.stopped = false
	}
	elapsed := now.Sub(*r.started)

	switch {
	case r.stopped:
		return Stopped, r.interval - elapsed
	case r.count >= r.maxCount:
		return Throttled, r.interval - elapsed
	default:
		r.count++
		return Incrementing, 0
	}
}

// Stop denies all further slots until the current window expires.
func (r *RateLimiter) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

// SetClock replaces the limiter's clock. Test hook.
func (r *RateLimiter) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}
