package sked

import "time"

// Clock is the engine's only source of time. Implementations must be safe for
// concurrent use.
type Clock interface {
	Now() time.Time

	// NewTimer returns a timer that fires once d has elapsed on this clock.
	// A non-positive d fires immediately.
	NewTimer(d time.Duration) Timer
}

// DeadlineClock is implemented by clocks that can arm a timer for an absolute
// instant. The engine prefers it over NewTimer so that no clock movement can
// slip in between reading Now and arming.
type DeadlineClock interface {
	// NewTimerAt returns a timer that fires once the clock reaches deadline.
	// A deadline at or before the current time fires immediately.
	NewTimerAt(deadline time.Time) Timer
}

// timerAt arms a timer for deadline on c.
func timerAt(c Clock, deadline time.Time) Timer {
	if dc, ok := c.(DeadlineClock); ok {
		return dc.NewTimerAt(deadline)
	}
	return c.NewTimer(deadline.Sub(c.Now()))
}

// Timer is the subset of *time.Timer the engine needs.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTimer(d time.Duration) Timer {
	return systemTimer{t: time.NewTimer(d)}
}

func (SystemClock) NewTimerAt(deadline time.Time) Timer {
	return systemTimer{t: time.NewTimer(time.Until(deadline))}
}

type systemTimer struct{ t *time.Timer }

func (s systemTimer) C() <-chan time.Time { return s.t.C }
func (s systemTimer) Stop() bool          { return s.t.Stop() }
