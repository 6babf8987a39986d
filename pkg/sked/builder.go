package sked

import (
	"context"
	"fmt"
)

// Builder is the first stage of a task definition:
//
//	cfg, err := sked.Every(2).Minute(30).Build(fn)       // every 2 minutes at :30
//	cfg, err := sked.Every(1).Day(4, 0, 0).Build(fn)     // every day at 04:00:00
//	cfg, err := sked.Once().Wednesday().At(13, 45, 35).Build(fn)
//	id, err  := sked.Every(1).Hour(15, 0).Submit(engine, fn)
//
// Each stage only offers the anchors that make sense for the granularity
// picked before it. Nothing reaches an Engine until Build or Submit.
type Builder struct {
	st buildState
}

type buildState struct {
	p        Period
	once     bool
	name     string
	selected bool
	err      error
}

// Every starts a recurring definition repeating every n units.
func Every(n int) Builder {
	b := Builder{st: buildState{p: Period{Multiplier: n}}}
	if n < 1 {
		b.st.err = fmt.Errorf("%w: every(%d): multiplier must be >= 1", ErrInvalidPeriod, n)
	}
	return b
}

// Once starts a one-shot definition; the task is removed after its first run.
func Once() Builder {
	return Builder{st: buildState{p: Period{Multiplier: 1}, once: true}}
}

func (b Builder) with(g Granularity) buildState {
	st := b.st
	st.p.Granularity = g
	st.selected = true
	return st
}

// Second fires every n seconds.
func (b Builder) Second() Final {
	return Final{st: b.with(Second)}
}

// Minute fires every n minutes at the given second.
func (b Builder) Minute(atSecond int) SecondStage {
	st := b.with(Minute)
	st.p.Second = atSecond
	return SecondStage{Final{st: st}}
}

// Hour fires every n hours at the given minute and second.
func (b Builder) Hour(atMinute, atSecond int) MinuteStage {
	st := b.with(Hour)
	st.p.Minute = atMinute
	st.p.Second = atSecond
	return MinuteStage{SecondStage{Final{st: st}}}
}

// Day fires every n days at the given time of day.
func (b Builder) Day(hour, minute, second int) TimeStage {
	st := b.with(Day)
	st.p.Hour, st.p.Minute, st.p.Second = hour, minute, second
	return TimeStage{MinuteStage{SecondStage{Final{st: st}}}}
}

// DayAt is Day with a parsed time of day.
func (b Builder) DayAt(t DayTime) TimeStage {
	return b.Day(t.Hour, t.Minute, t.Second)
}

// On fires weekly on d, at midnight unless a time is added with At.
// The multiplier is ignored for weekly rules.
func (b Builder) On(d Weekday) TimeStage {
	st := b.with(Week)
	st.p.Weekday = d
	return TimeStage{MinuteStage{SecondStage{Final{st: st}}}}
}

func (b Builder) Monday() TimeStage    { return b.On(Monday) }
func (b Builder) Tuesday() TimeStage   { return b.On(Tuesday) }
func (b Builder) Wednesday() TimeStage { return b.On(Wednesday) }
func (b Builder) Thursday() TimeStage  { return b.On(Thursday) }
func (b Builder) Friday() TimeStage    { return b.On(Friday) }
func (b Builder) Saturday() TimeStage  { return b.On(Saturday) }
func (b Builder) Sunday() TimeStage    { return b.On(Sunday) }

// SecondStage can pin the second within a minute.
type SecondStage struct{ Final }

func (s SecondStage) AtSecond(second int) Final {
	st := s.st
	st.p.Second = second
	return Final{st: st}
}

// MinuteStage can pin the minute and second within an hour.
type MinuteStage struct{ SecondStage }

func (s MinuteStage) AtMinute(minute, second int) Final {
	st := s.st
	st.p.Minute, st.p.Second = minute, second
	return Final{st: st}
}

// TimeStage can pin a full time of day.
type TimeStage struct{ MinuteStage }

// At sets the time of day. Rules finer than a day are promoted to daily.
func (s TimeStage) At(hour, minute, second int) Final {
	st := s.st
	if st.p.Granularity < Day {
		st.p.Granularity = Day
	}
	st.p.Hour, st.p.Minute, st.p.Second = hour, minute, second
	return Final{st: st}
}

// AtTime is At with a parsed time of day.
func (s TimeStage) AtTime(t DayTime) Final {
	return s.At(t.Hour, t.Minute, t.Second)
}

// Final is the terminal stage.
type Final struct {
	st buildState
}

// Named labels the task in logs, snapshots and run history.
func (f Final) Named(name string) Final {
	st := f.st
	st.name = name
	return Final{st: st}
}

// Period returns the rule built so far.
func (f Final) Period() Period { return f.st.p }

// Build finishes the definition with a plain body. Recurring definitions
// reschedule after every run; Once definitions are removed after the first.
func (f Final) Build(fn func(ctx context.Context)) (Config, error) {
	if fn == nil {
		return Config{}, ErrNilBody
	}
	res := Reschedule
	if f.st.once {
		res = Done
	}
	return f.BuildFunc(func(ctx context.Context) Result {
		fn(ctx)
		return res
	})
}

// BuildFunc finishes the definition with a body that decides its own fate on
// every run.
func (f Final) BuildFunc(fn Func) (Config, error) {
	if f.st.err != nil {
		return Config{}, f.st.err
	}
	if !f.st.selected {
		return Config{}, ErrNoGranularity
	}
	if fn == nil {
		return Config{}, ErrNilBody
	}
	if err := f.st.p.Validate(); err != nil {
		return Config{}, err
	}
	return Config{
		Name:    f.st.name,
		Period:  f.st.p,
		OneShot: f.st.once,
		Body:    fn,
	}, nil
}

// Submit builds the definition and registers it with e.
func (f Final) Submit(e *Engine, fn func(ctx context.Context)) (ID, error) {
	cfg, err := f.Build(fn)
	if err != nil {
		return 0, err
	}
	return e.Submit(cfg)
}
