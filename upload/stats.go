package upload

import "sync"

// Snapshot is an immutable point-in-time view of the uploader's counters.
// Safe to read concurrently after creation.
type Snapshot struct {
	Enqueued     int64
	Deduplicated int64

	Succeeded       int64
	DroppedByServer int64
	OversizeDrops   int64
	Retries         int64
	GaveUp          int64

	ThrottledWaits int64
	BytesSent      int64
}

// Stats accumulates uploader counters. Thread-safe; all increment methods
// are nil-receiver safe so wiring stats stays optional.
type Stats struct {
	mu sync.Mutex

	enqueued     int64
	deduplicated int64

	succeeded       int64
	droppedByServer int64
	oversizeDrops   int64
	retries         int64
	gaveUp          int64

	throttledWaits int64
	bytesSent      int64
}

// NewStats creates an empty counter set.
func NewStats() *Stats { return &Stats{} }

// IncEnqueued records a ping entering the upload queue.
func (s *Stats) IncEnqueued() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.enqueued++
	s.mu.Unlock()
}

// IncDeduplicated records a ping rejected as already queued.
func (s *Stats) IncDeduplicated() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.deduplicated++
	s.mu.Unlock()
}

// IncSucceeded records a 2xx upload. n is the body size sent.
func (s *Stats) IncSucceeded(n int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.succeeded++
	s.bytesSent += int64(n)
	s.mu.Unlock()
}

// IncDroppedByServer records a ping dropped on a 4xx or unrecoverable
// result.
func (s *Stats) IncDroppedByServer() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.droppedByServer++
	s.mu.Unlock()
}

// IncOversizeDrop records a ping dropped for exceeding the body limit.
func (s *Stats) IncOversizeDrop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.oversizeDrops++
	s.mu.Unlock()
}

// IncRetry records a recoverable failure being retried.
func (s *Stats) IncRetry() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.retries++
	s.mu.Unlock()
}

// IncGaveUp records a ping hitting the recoverable-failure limit.
func (s *Stats) IncGaveUp() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.gaveUp++
	s.mu.Unlock()
}

// IncThrottledWait records the worker pausing on the rate limiter.
func (s *Stats) IncThrottledWait() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.throttledWaits++
	s.mu.Unlock()
}

// Snapshot returns an immutable view of the counters.
func (s *Stats) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Enqueued:        s.enqueued,
		Deduplicated:    s.deduplicated,
		Succeeded:       s.succeeded,
		DroppedByServer: s.droppedByServer,
		OversizeDrops:   s.oversizeDrops,
		Retries:         s.retries,
		GaveUp:          s.gaveUp,
		ThrottledWaits:  s.throttledWaits,
		BytesSent:       s.bytesSent,
	}
}
