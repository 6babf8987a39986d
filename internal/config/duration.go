package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// ParseDurationField reads a non-negative duration: a Go duration string or
// a whole number of days ("7d"). Empty means zero. path prefixes errors.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	var (
		d   time.Duration
		err error
	)
	switch {
	case s == "":
		return 0, nil
	case strings.HasSuffix(s, "d"):
		var n int
		n, err = strconv.Atoi(strings.TrimSuffix(s, "d"))
		d = time.Duration(n) * day
	default:
		d, err = time.ParseDuration(s)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", path, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault returns def when raw is empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if d == 0 && err == nil {
		d = def
	}
	return d, err
}
