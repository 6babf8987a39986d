package sked_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sked/pkg/sked"
)

// wednesday is Wednesday 2026-10-14 13:45:34 UTC.
var wednesday = time.Date(2026, 10, 14, 13, 45, 34, 0, time.UTC)

func at(day, h, m, s int) time.Time {
	return time.Date(2026, 10, day, h, m, s, 0, time.UTC)
}

func TestPeriodNext(t *testing.T) {
	t.Parallel()
	half := wednesday.Add(500 * time.Millisecond)

	tests := []struct {
		name string
		p    sked.Period
		now  time.Time
		want time.Time
	}{
		{name: "every second", p: sked.Period{Granularity: sked.Second, Multiplier: 1}, now: half, want: at(14, 13, 45, 35)},
		{name: "every 5 seconds", p: sked.Period{Granularity: sked.Second, Multiplier: 5}, now: half, want: at(14, 13, 45, 39)},
		{name: "zero multiplier means one", p: sked.Period{Granularity: sked.Second}, now: wednesday, want: at(14, 13, 45, 35)},
		{name: "every minute", p: sked.Period{Granularity: sked.Minute, Multiplier: 1}, now: wednesday, want: at(14, 13, 46, 0)},
		{name: "every minute at :36", p: sked.Period{Granularity: sked.Minute, Multiplier: 1, Second: 36}, now: wednesday, want: at(14, 13, 46, 36)},
		{name: "every hour", p: sked.Period{Granularity: sked.Hour, Multiplier: 1}, now: wednesday, want: at(14, 14, 0, 0)},
		{name: "every 2 hours at 45:36", p: sked.Period{Granularity: sked.Hour, Multiplier: 2, Minute: 45, Second: 36}, now: wednesday, want: at(14, 15, 45, 36)},
		{name: "every day at 04:00", p: sked.Period{Granularity: sked.Day, Multiplier: 1, Hour: 4}, now: wednesday, want: at(15, 4, 0, 0)},
		{name: "every day at 13:45:35", p: sked.Period{Granularity: sked.Day, Multiplier: 1, Hour: 13, Minute: 45, Second: 35}, now: wednesday, want: at(15, 13, 45, 35)},
		{name: "every 3 days", p: sked.Period{Granularity: sked.Day, Multiplier: 3}, now: wednesday, want: at(17, 0, 0, 0)},
		{name: "wednesday later today", p: sked.Period{Granularity: sked.Week, Weekday: sked.Wednesday, Hour: 13, Minute: 45, Second: 35}, now: wednesday, want: at(14, 13, 45, 35)},
		{name: "wednesday already past", p: sked.Period{Granularity: sked.Week, Weekday: sked.Wednesday, Hour: 13, Minute: 45, Second: 33}, now: wednesday, want: at(21, 13, 45, 33)},
		{name: "wednesday exactly now", p: sked.Period{Granularity: sked.Week, Weekday: sked.Wednesday, Hour: 13, Minute: 45, Second: 34}, now: wednesday, want: at(21, 13, 45, 34)},
		{name: "next friday", p: sked.Period{Granularity: sked.Week, Weekday: sked.Friday, Hour: 13, Minute: 45, Second: 35}, now: wednesday, want: at(16, 13, 45, 35)},
		{name: "week start", p: sked.Period{Granularity: sked.Week, Weekday: sked.Thursday}, now: wednesday, want: at(15, 0, 0, 0)},
		{name: "week ignores multiplier", p: sked.Period{Granularity: sked.Week, Multiplier: 4, Weekday: sked.Thursday}, now: wednesday, want: at(15, 0, 0, 0)},
		{name: "minute ignores hour anchor", p: sked.Period{Granularity: sked.Minute, Multiplier: 1, Hour: 7, Minute: 9}, now: wednesday, want: at(14, 13, 46, 0)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := tt.p.Next(tt.now)
			require.True(t, got.Equal(tt.want), "Next(%s) = %s, want %s", tt.now, got, tt.want)
		})
	}
}

func TestPeriodNextBeforeEpoch(t *testing.T) {
	t.Parallel()
	now := time.Date(1969, 12, 31, 23, 59, 59, 500_000_000, time.UTC)
	got := sked.Period{Granularity: sked.Second, Multiplier: 1}.Next(now)
	require.True(t, got.Equal(time.Unix(0, 0)), "got %s", got)
}

func TestPeriodNextKeepsLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+7", 7*60*60)
	now := wednesday.In(loc)
	got := sked.Period{Granularity: sked.Hour, Multiplier: 1}.Next(now)
	require.Equal(t, loc, got.Location())
	require.True(t, got.Equal(at(14, 14, 0, 0)))
}

func allPeriods() []sked.Period {
	return []sked.Period{
		{Granularity: sked.Second, Multiplier: 1},
		{Granularity: sked.Second, Multiplier: 7},
		{Granularity: sked.Minute, Multiplier: 1},
		{Granularity: sked.Minute, Multiplier: 1, Second: 59},
		{Granularity: sked.Minute, Multiplier: 15, Second: 30},
		{Granularity: sked.Hour, Multiplier: 1},
		{Granularity: sked.Hour, Multiplier: 1, Minute: 59, Second: 59},
		{Granularity: sked.Hour, Multiplier: 6, Minute: 30},
		{Granularity: sked.Day, Multiplier: 1},
		{Granularity: sked.Day, Multiplier: 1, Hour: 23, Minute: 59, Second: 59},
		{Granularity: sked.Day, Multiplier: 2, Hour: 12},
		{Granularity: sked.Week, Weekday: sked.Thursday},
		{Granularity: sked.Week, Weekday: sked.Wednesday, Hour: 23, Minute: 59, Second: 59},
		{Granularity: sked.Week, Weekday: sked.Sunday, Hour: 9, Minute: 30},
		{Granularity: sked.Granularity(42)},
	}
}

func TestPeriodNextStrictlyFuture(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	base := wednesday.Unix()
	for _, p := range allPeriods() {
		for i := 0; i < 500; i++ {
			// Spread over ~4 weeks either side, with sub-second noise and
			// a share of exact unit boundaries.
			sec := base + rng.Int63n(4*7*24*3600) - 2*7*24*3600
			ns := rng.Int63n(int64(time.Second))
			if i%5 == 0 {
				sec -= sec % 60
				ns = 0
			}
			now := time.Unix(sec, ns).UTC()
			got := p.Next(now)
			require.True(t, got.After(now), "%v: Next(%s) = %s", p, now, got)
			require.True(t, got.Equal(p.Next(now)), "%v: Next is not deterministic", p)
		}
	}
}

func TestPeriodIntervalSpacing(t *testing.T) {
	t.Parallel()
	tests := []struct {
		p    sked.Period
		step time.Duration
	}{
		{p: sked.Period{Granularity: sked.Second, Multiplier: 1}, step: time.Second},
		{p: sked.Period{Granularity: sked.Minute, Multiplier: 1, Second: 20}, step: time.Minute},
		{p: sked.Period{Granularity: sked.Hour, Multiplier: 1, Minute: 5}, step: time.Hour},
		{p: sked.Period{Granularity: sked.Day, Multiplier: 1, Hour: 4}, step: 24 * time.Hour},
		{p: sked.Period{Granularity: sked.Minute, Multiplier: 3}, step: 3 * time.Minute},
		{p: sked.Period{Granularity: sked.Day, Multiplier: 2, Hour: 1}, step: 48 * time.Hour},
	}
	for _, tt := range tests {
		times := sked.Upcoming(tt.p, wednesday.Add(123*time.Millisecond), 6)
		for i := 1; i < len(times); i++ {
			require.Equal(t, tt.step, times[i].Sub(times[i-1]), "%v step %d", tt.p, i)
		}
	}
}

func TestPeriodWeeklyAdvance(t *testing.T) {
	t.Parallel()
	p := sked.Period{Granularity: sked.Week, Weekday: sked.Monday, Hour: 8, Minute: 15, Second: 5}
	times := sked.Upcoming(p, wednesday, 8)
	for i, got := range times {
		require.Equal(t, time.Monday, got.Weekday())
		h, m, s := got.Clock()
		require.Equal(t, []int{8, 15, 5}, []int{h, m, s})
		if i > 0 {
			require.Equal(t, 7*24*time.Hour, got.Sub(times[i-1]))
		}
	}
}

func TestWeekdayNumbering(t *testing.T) {
	t.Parallel()
	require.Equal(t, sked.Thursday, sked.WeekdayOf(time.Unix(0, 0).UTC().Weekday()))
	for d := time.Sunday; d <= time.Saturday; d++ {
		w := sked.WeekdayOf(d)
		require.Equal(t, d, w.Std())
		got := sked.Period{Granularity: sked.Week, Weekday: w, Hour: 10}.Next(wednesday)
		require.Equal(t, d, got.Weekday(), "weekday %s", w)
	}
}

func TestPeriodValidate(t *testing.T) {
	t.Parallel()
	bad := []sked.Period{
		{Granularity: sked.Granularity(-1)},
		{Granularity: sked.Second, Multiplier: -1},
		{Granularity: sked.Week, Weekday: 7},
		{Granularity: sked.Day, Hour: 24},
		{Granularity: sked.Hour, Minute: 60},
		{Granularity: sked.Minute, Second: -1},
	}
	for _, p := range bad {
		err := p.Validate()
		require.Error(t, err, "%+v", p)
		require.True(t, errors.Is(err, sked.ErrInvalidPeriod))
	}
	require.NoError(t, sked.Period{Granularity: sked.Week, Weekday: sked.Wednesday, Hour: 23, Minute: 59, Second: 59}.Validate())
}

func TestPeriodString(t *testing.T) {
	t.Parallel()
	require.Equal(t, "every second", sked.Period{Granularity: sked.Second}.String())
	require.Equal(t, "every 2 minutes at :30", sked.Period{Granularity: sked.Minute, Multiplier: 2, Second: 30}.String())
	require.Equal(t, "every hour at 15:00", sked.Period{Granularity: sked.Hour, Multiplier: 1, Minute: 15}.String())
	require.Equal(t, "Wednesday at 13:45:35", sked.Period{Granularity: sked.Week, Weekday: sked.Wednesday, Hour: 13, Minute: 45, Second: 35}.String())
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]sked.Weekday{
		"wednesday": sked.Wednesday,
		"Wed":       sked.Wednesday,
		" THU ":     sked.Thursday,
		"sunday":    sked.Sunday,
		"sat":       sked.Saturday,
	} {
		got, err := sked.ParseWeekday(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "we", "wednes", "funday"} {
		_, err := sked.ParseWeekday(in)
		require.True(t, errors.Is(err, sked.ErrInvalidPeriod), in)
	}
}
