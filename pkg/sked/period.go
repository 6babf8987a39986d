package sked

import (
	"fmt"
	"strings"
	"time"
)

// Granularity selects which calendar unit a Period recurs on.
type Granularity int

const (
	Second Granularity = iota
	Minute
	Hour
	Day
	Week
)

func (g Granularity) String() string {
	switch g {
	case Second:
		return "second"
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	default:
		return fmt.Sprintf("granularity(%d)", int(g))
	}
}

func (g Granularity) unit() time.Duration {
	switch g {
	case Second:
		return time.Second
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Day:
		return 24 * time.Hour
	case Week:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Weekday numbers the days of a week starting from the weekday of the Unix
// epoch (a Thursday). Week boundaries used by Period.Next fall on Thursday
// 00:00 of the clock's time domain.
//
// Use WeekdayOf to convert a time.Weekday.
type Weekday int

const (
	Thursday Weekday = iota
	Friday
	Saturday
	Sunday
	Monday
	Tuesday
	Wednesday
)

var weekdayNames = [...]string{"Thursday", "Friday", "Saturday", "Sunday", "Monday", "Tuesday", "Wednesday"}

func (d Weekday) String() string {
	if d < 0 || int(d) >= len(weekdayNames) {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// ParseWeekday accepts a full English day name or its three-letter
// abbreviation, in any case.
func ParseWeekday(s string) (Weekday, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	for i, name := range weekdayNames {
		n := strings.ToLower(name)
		if in == n || (len(in) == 3 && strings.HasPrefix(n, in)) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidPeriod, s)
}

// WeekdayOf remaps a time.Weekday (Sunday = 0) onto the epoch-anchored numbering.
func WeekdayOf(d time.Weekday) Weekday {
	return Weekday((int(d) + 3) % 7)
}

// Std returns the equivalent time.Weekday.
func (d Weekday) Std() time.Weekday {
	return time.Weekday((int(d) + 4) % 7)
}

// Period is an immutable recurrence rule.
//
// Multiplier applies to Second, Minute, Hour and Day granularities; zero means 1.
// Anchor fields that the active granularity does not use are ignored:
//
//	Second: none
//	Minute: Second
//	Hour:   Minute, Second
//	Day:    Hour, Minute, Second
//	Week:   Weekday, Hour, Minute, Second (Multiplier ignored)
type Period struct {
	Granularity Granularity
	Multiplier  int
	Weekday     Weekday
	Hour        int
	Minute      int
	Second      int
}

// Next returns the next due instant strictly after now.
//
// now is floored to the granularity's boundary (counted from the Unix epoch),
// the multiplier and anchor offsets are added, and if the result is not in the
// future it is bumped by one unit. The result is expressed in now's location.
func (p Period) Next(now time.Time) time.Time {
	unit := p.Granularity.unit()
	if unit == 0 {
		// Unknown granularity: fall back to one second so callers never spin.
		unit = time.Second
	}
	mult := time.Duration(p.multiplier())

	next := floorEpoch(now, unit)
	switch p.Granularity {
	case Minute:
		next = next.Add(mult*time.Minute + p.seconds())
	case Hour:
		next = next.Add(mult*time.Hour + p.minutes() + p.seconds())
	case Day:
		next = next.Add(mult*24*time.Hour + p.hours() + p.minutes() + p.seconds())
	case Week:
		next = next.Add(time.Duration(p.Weekday)*24*time.Hour + p.hours() + p.minutes() + p.seconds())
	default:
		next = next.Add(mult * time.Second)
	}

	if !next.After(now) {
		next = next.Add(unit)
	}
	return next.In(now.Location())
}

// Validate reports anchors outside their calendar range.
func (p Period) Validate() error {
	if p.Granularity < Second || p.Granularity > Week {
		return fmt.Errorf("%w: unknown granularity %d", ErrInvalidPeriod, int(p.Granularity))
	}
	if p.Multiplier < 0 {
		return fmt.Errorf("%w: multiplier must be >= 0, got %d", ErrInvalidPeriod, p.Multiplier)
	}
	if p.Weekday < Thursday || p.Weekday > Wednesday {
		return fmt.Errorf("%w: weekday out of range: %d", ErrInvalidPeriod, int(p.Weekday))
	}
	if p.Hour < 0 || p.Hour > 23 {
		return fmt.Errorf("%w: hour out of range: %d", ErrInvalidPeriod, p.Hour)
	}
	if p.Minute < 0 || p.Minute > 59 {
		return fmt.Errorf("%w: minute out of range: %d", ErrInvalidPeriod, p.Minute)
	}
	if p.Second < 0 || p.Second > 59 {
		return fmt.Errorf("%w: second out of range: %d", ErrInvalidPeriod, p.Second)
	}
	return nil
}

// String renders the rule the way a schedule listing would show it,
// e.g. "every 2 minutes at :30" or "Wednesday at 13:45:35".
func (p Period) String() string {
	var b strings.Builder
	m := p.multiplier()
	switch p.Granularity {
	case Second:
		writeEvery(&b, m, "second")
	case Minute:
		writeEvery(&b, m, "minute")
		fmt.Fprintf(&b, " at :%02d", p.Second)
	case Hour:
		writeEvery(&b, m, "hour")
		fmt.Fprintf(&b, " at %02d:%02d", p.Minute, p.Second)
	case Day:
		writeEvery(&b, m, "day")
		fmt.Fprintf(&b, " at %02d:%02d:%02d", p.Hour, p.Minute, p.Second)
	case Week:
		fmt.Fprintf(&b, "%s at %02d:%02d:%02d", p.Weekday, p.Hour, p.Minute, p.Second)
	default:
		b.WriteString(p.Granularity.String())
	}
	return b.String()
}

func writeEvery(b *strings.Builder, m int, unit string) {
	if m == 1 {
		b.WriteString("every " + unit)
		return
	}
	fmt.Fprintf(b, "every %d %ss", m, unit)
}

func (p Period) multiplier() int {
	if p.Multiplier <= 0 {
		return 1
	}
	return p.Multiplier
}

func (p Period) hours() time.Duration   { return time.Duration(p.Hour) * time.Hour }
func (p Period) minutes() time.Duration { return time.Duration(p.Minute) * time.Minute }
func (p Period) seconds() time.Duration { return time.Duration(p.Second) * time.Second }

// floorEpoch truncates t down to a multiple of unit counted from the Unix epoch.
// unit must be a whole number of seconds.
func floorEpoch(t time.Time, unit time.Duration) time.Time {
	u := int64(unit / time.Second)
	sec := t.Unix()
	r := sec % u
	if r < 0 {
		r += u
	}
	return time.Unix(sec-r, 0).UTC()
}
