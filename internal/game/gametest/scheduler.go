// Package gametest provides deterministic helpers for driving the game
// engine in tests.
package gametest

import (
	"sync"
	"time"
)

type task struct {
	at        time.Duration
	seq       int
	fn        func()
	fired     bool
	cancelled bool
}

// ManualScheduler fires callbacks only when Advance moves its clock past
// their deadline. Callbacks run on the caller's goroutine, earliest first,
// and may schedule further callbacks.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*task
}

// NewManualScheduler returns a scheduler at time zero.
func NewManualScheduler() *ManualScheduler { return &ManualScheduler{} }

// AfterFunc registers f to run d after the current virtual time.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &task{at: s.now + d, seq: s.seq, fn: f}
	s.tasks = append(s.tasks, t)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t.fired || t.cancelled {
			return false
		}
		t.cancelled = true
		return true
	}
}

// Advance moves virtual time forward by d, running every callback that
// comes due along the way.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDueLocked(target)
		if next == nil {
			s.now = target
			s.compactLocked()
			s.mu.Unlock()
			return
		}
		s.now = next.at
		next.fired = true
		s.mu.Unlock()

		next.fn()
	}
}

// Pending counts callbacks that are neither fired nor cancelled.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.fired && !t.cancelled {
			n++
		}
	}
	return n
}

func (s *ManualScheduler) nextDueLocked(target time.Duration) *task {
	var best *task
	for _, t := range s.tasks {
		if t.fired || t.cancelled || t.at > target {
			continue
		}
		if best == nil || t.at < best.at || (t.at == best.at && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (s *ManualScheduler) compactLocked() {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.fired && !t.cancelled {
			live = append(live, t)
		}
	}
	s.tasks = live
}
