package scm

import (
	"sync"
	"time"

	"veritas/internal/review"
)

// ProcessedSet remembers which merge request revisions were recently
// analyzed so duplicate webhook deliveries do not trigger duplicate
// reviews. Entries expire after the configured window.
type ProcessedSet struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    review.Clock
}

func NewProcessedSet(window time.Duration, now review.Clock) *ProcessedSet {
	if now == nil {
		now = time.Now
	}
	return &ProcessedSet{
		seen:   make(map[string]time.Time),
		window: window,
		now:    now,
	}
}

// Seen reports whether key was marked within the window. Expired entries
// are pruned on the way through.
func (s *ProcessedSet) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, at := range s.seen {
		if now.Sub(at) > s.window {
			delete(s.seen, k)
		}
	}

	at, ok := s.seen[key]
	return ok && now.Sub(at) <= s.window
}

// Mark records key as processed. Callers mark only after a run completes,
// so a failed run stays eligible for webhook redelivery.
func (s *ProcessedSet) Mark(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[key] = s.now()
}
