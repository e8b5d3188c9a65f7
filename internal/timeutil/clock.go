// Package timeutil provides a testable abstraction over wall-clock time.
// Conversion jobs stamp headers (SMV DATE and the PETS title) and job-ledger
// timings from a Clock so tests can pin them.
package timeutil

import (
	"sync"
	"time"
)

// Clock is the time source of a conversion job.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// MockClock is a manually controlled clock for tests. With a non-zero step
// every Now call moves the clock forward, so a run timed by Now and Since
// observes a fixed, non-zero duration.
type MockClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewMockClock returns a clock frozen at t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// NewSteppingClock returns a clock starting at t that advances by step after
// each reading.
func NewSteppingClock(t time.Time, step time.Duration) *MockClock {
	return &MockClock{now: t, step: step}
}

// Now returns the mocked time, then applies the step.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the duration from t to the clock's next reading.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// CTime formats t like C's ctime(3) without the trailing newline,
// e.g. "Mon Jan  2 15:04:05 2006". Input-file titles carry this stamp.
func CTime(t time.Time) string {
	return t.Format("Mon Jan _2 15:04:05 2006")
}
