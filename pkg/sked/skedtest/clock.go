// Package skedtest provides clocks for driving a sked.Engine in tests: a
// frozen clock that only moves when told to, and a shifted clock that runs in
// real time from a chosen starting point.
package skedtest

import (
	"sync"
	"time"

	"sked/pkg/sked"
)

// FrozenClock reports a fixed time until Set or Advance moves it. Timers
// created from it fire when the clock reaches their deadline.
type FrozenClock struct {
	mu     sync.Mutex
	now    time.Time
	timers map[*frozenTimer]struct{}
}

var (
	_ sked.Clock         = (*FrozenClock)(nil)
	_ sked.DeadlineClock = (*FrozenClock)(nil)
)

func NewFrozen(t time.Time) *FrozenClock {
	return &FrozenClock{now: t, timers: map[*frozenTimer]struct{}{}}
}

func (c *FrozenClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FrozenClock) NewTimer(d time.Duration) sked.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armLocked(c.now.Add(d))
}

// NewTimerAt arms a timer for deadline. The deadline is taken as given, so a
// Set racing with the caller cannot shift it.
func (c *FrozenClock) NewTimerAt(deadline time.Time) sked.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armLocked(deadline)
}

func (c *FrozenClock) armLocked(deadline time.Time) *frozenTimer {
	t := &frozenTimer{clock: c, deadline: deadline, ch: make(chan time.Time, 1)}
	if !deadline.After(c.now) {
		t.ch <- c.now
		return t
	}
	c.timers[t] = struct{}{}
	return t
}

// Set moves the clock to t and fires every timer whose deadline has passed.
// Moving backwards is allowed; it fires nothing.
func (c *FrozenClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
	for tm := range c.timers {
		if !tm.deadline.After(t) {
			delete(c.timers, tm)
			tm.ch <- t
		}
	}
}

func (c *FrozenClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

// SetWeekday moves the clock to the given weekday and time of day within the
// epoch-anchored week that contains the current time.
func (c *FrozenClock) SetWeekday(d sked.Weekday, hour, minute, second int) {
	c.Set(InWeek(c.Now(), d, hour, minute, second))
}

// Waiters returns the number of armed timers. Tests poll it to know the
// engine has gone back to sleep.
func (c *FrozenClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// NextDeadline returns the earliest armed timer deadline.
func (c *FrozenClock) NextDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var (
		best time.Time
		ok   bool
	)
	for tm := range c.timers {
		if !ok || tm.deadline.Before(best) {
			best, ok = tm.deadline, true
		}
	}
	return best, ok
}

type frozenTimer struct {
	clock    *FrozenClock
	deadline time.Time
	ch       chan time.Time
}

func (t *frozenTimer) C() <-chan time.Time { return t.ch }

func (t *frozenTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, ok := t.clock.timers[t]; !ok {
		return false
	}
	delete(t.clock.timers, t)
	return true
}

// ShiftedClock runs at real speed with a fixed offset from the wall clock.
type ShiftedClock struct {
	mu    sync.Mutex
	shift time.Duration
}

var _ sked.Clock = (*ShiftedClock)(nil)

// NewShifted returns a clock whose current reading is start.
func NewShifted(start time.Time) *ShiftedClock {
	return &ShiftedClock{shift: time.Until(start)}
}

func (c *ShiftedClock) Now() time.Time {
	c.mu.Lock()
	shift := c.shift
	c.mu.Unlock()
	return time.Now().Add(shift).Round(0)
}

func (c *ShiftedClock) NewTimer(d time.Duration) sked.Timer {
	return sked.SystemClock{}.NewTimer(d)
}

// SetWeekday re-bases the clock so that it now reads the given weekday and
// time of day within the current epoch-anchored week.
func (c *ShiftedClock) SetWeekday(d sked.Weekday, hour, minute, second int) {
	target := InWeek(c.Now(), d, hour, minute, second)
	c.mu.Lock()
	c.shift = time.Until(target)
	c.mu.Unlock()
}

// InWeek returns weekday d at hour:minute:second of the epoch-anchored week
// containing ref. The result keeps ref's location.
func InWeek(ref time.Time, d sked.Weekday, hour, minute, second int) time.Time {
	const week = 7 * 24 * 60 * 60
	sec := ref.Unix()
	r := sec % week
	if r < 0 {
		r += week
	}
	start := time.Unix(sec-r, 0)
	off := time.Duration(d)*24*time.Hour +
		time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second
	return start.Add(off).In(ref.Location())
}
