package sked

import (
	"fmt"
	"strings"
)

// DayTime is a time-of-day anchor.
type DayTime struct {
	Hour   int
	Minute int
	Second int
}

func (t DayTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// ParseDayTime parses "HH:MM:SS", "HH:MM" or "HH". Each field has one or two
// digits; hours must be < 24, minutes and seconds < 60.
func ParseDayTime(raw string) (DayTime, error) {
	parts := strings.Split(raw, ":")
	if raw == "" || len(parts) > 3 {
		return DayTime{}, fmt.Errorf("%w: %q", ErrInvalidDayTime, raw)
	}

	var nums [3]int
	for i, p := range parts {
		if len(p) < 1 || len(p) > 2 {
			return DayTime{}, fmt.Errorf("%w: %q: field %d must have 1 or 2 digits", ErrInvalidDayTime, raw, i+1)
		}
		n := 0
		for j := 0; j < len(p); j++ {
			c := p[j]
			if c < '0' || c > '9' {
				return DayTime{}, fmt.Errorf("%w: %q: non-digit %q", ErrInvalidDayTime, raw, c)
			}
			n = n*10 + int(c-'0')
		}
		nums[i] = n
	}

	t := DayTime{Hour: nums[0], Minute: nums[1], Second: nums[2]}
	if t.Hour > 23 {
		return DayTime{}, fmt.Errorf("%w: %q: hour must be < 24", ErrInvalidDayTime, raw)
	}
	if t.Minute > 59 {
		return DayTime{}, fmt.Errorf("%w: %q: minute must be < 60", ErrInvalidDayTime, raw)
	}
	if t.Second > 59 {
		return DayTime{}, fmt.Errorf("%w: %q: second must be < 60", ErrInvalidDayTime, raw)
	}
	return t, nil
}

// MustDayTime is ParseDayTime for package-level constants; it panics on
// malformed input.
func MustDayTime(raw string) DayTime {
	t, err := ParseDayTime(raw)
	if err != nil {
		panic(err)
	}
	return t
}
