package clock

import (
	"sync"
	"time"
)

// Clock abstracts wall time so progress reporting and load timings can be tested.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (c RealClock) Now() time.Time {
	return time.Now()
}

type MockClock struct {
	mu          sync.Mutex
	CurrentTime time.Time
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CurrentTime
}

func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.CurrentTime = c.CurrentTime.Add(d)
	c.mu.Unlock()
}

// Stopwatch measures elapsed time since Start and reports lap boundaries.
// A lap completes each time at least period has passed since the previous lap.
type Stopwatch struct {
	clk     Clock
	period  time.Duration
	started time.Time
	lastLap time.Time
}

// NewStopwatch starts a stopwatch reading from clk.
func NewStopwatch(clk Clock, period time.Duration) *Stopwatch {
	now := clk.Now()
	return &Stopwatch{clk: clk, period: period, started: now, lastLap: now}
}

// Lap returns true when a full period has elapsed since the last completed lap.
// A non-positive period never completes a lap.
func (s *Stopwatch) Lap() bool {
	if s.period <= 0 {
		return false
	}
	now := s.clk.Now()
	if now.Sub(s.lastLap) < s.period {
		return false
	}
	s.lastLap = now
	return true
}

// Elapsed returns the time since the stopwatch started.
func (s *Stopwatch) Elapsed() time.Duration {
	return s.clk.Now().Sub(s.started)
}
