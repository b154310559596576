package game

import (
	"sync"
	"time"
)

// Scheduler runs f once after d. The returned func cancels the call and
// reports whether it was still pending.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type wallScheduler struct{}

func (wallScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// WallScheduler is backed by time.AfterFunc.
func WallScheduler() Scheduler { return wallScheduler{} }

// tickInterval is the Timer cadence.
const tickInterval = time.Second

// Timer counts whole seconds while running.
// Each Start/Stop bumps gen so a tick armed by an earlier run is ignored.
type Timer struct {
	mu      sync.Mutex
	sched   Scheduler
	seconds int
	running bool
	gen     uint64
	stop    func() bool
}

// NewTimer returns a stopped timer at zero.
func NewTimer(s Scheduler) *Timer {
	if s == nil {
		s = WallScheduler()
	}
	return &Timer{sched: s}
}

// Start begins counting from the current value, replacing any running tick.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.gen++
	t.running = true
	t.armLocked(t.gen)
}

// Stop halts counting; Elapsed keeps its last value.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.gen++
	t.running = false
}

// Reset zeroes the counter without changing whether it runs.
func (t *Timer) Reset() {
	t.mu.Lock()
	t.seconds = 0
	t.mu.Unlock()
}

// Elapsed returns the counted seconds.
func (t *Timer) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seconds
}

// Running reports whether ticks are being counted.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Timer) armLocked(gen uint64) {
	t.stop = t.sched.AfterFunc(tickInterval, func() { t.tick(gen) })
}

func (t *Timer) cancelLocked() {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
}

func (t *Timer) tick(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || gen != t.gen {
		return
	}
	t.seconds++
	t.armLocked(gen)
}
