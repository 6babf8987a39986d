package sked_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"sked/pkg/sked"
)

func noop(context.Context) {}

func TestBuilderPeriods(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		f    sked.Final
		want sked.Period
	}{
		{name: "seconds", f: sked.Every(5).Second(), want: sked.Period{Granularity: sked.Second, Multiplier: 5}},
		{name: "minute at second", f: sked.Every(2).Minute(30).Final, want: sked.Period{Granularity: sked.Minute, Multiplier: 2, Second: 30}},
		{name: "minute then AtSecond", f: sked.Every(1).Minute(0).AtSecond(12), want: sked.Period{Granularity: sked.Minute, Multiplier: 1, Second: 12}},
		{name: "hour", f: sked.Every(1).Hour(15, 0).Final, want: sked.Period{Granularity: sked.Hour, Multiplier: 1, Minute: 15}},
		{name: "hour AtMinute", f: sked.Every(3).Hour(0, 0).AtMinute(45, 36), want: sked.Period{Granularity: sked.Hour, Multiplier: 3, Minute: 45, Second: 36}},
		{name: "day", f: sked.Every(1).Day(4, 0, 0).Final, want: sked.Period{Granularity: sked.Day, Multiplier: 1, Hour: 4}},
		{name: "day at parsed", f: sked.Every(1).DayAt(sked.MustDayTime("13:45:35")).Final, want: sked.Period{Granularity: sked.Day, Multiplier: 1, Hour: 13, Minute: 45, Second: 35}},
		{name: "weekday", f: sked.Once().Wednesday().At(13, 45, 35), want: sked.Period{Granularity: sked.Week, Multiplier: 1, Weekday: sked.Wednesday, Hour: 13, Minute: 45, Second: 35}},
		{name: "weekday midnight", f: sked.Every(1).Friday().Final, want: sked.Period{Granularity: sked.Week, Multiplier: 1, Weekday: sked.Friday}},
		{name: "weekday AtTime", f: sked.Every(1).On(sked.Sunday).AtTime(sked.MustDayTime("9:30")), want: sked.Period{Granularity: sked.Week, Multiplier: 1, Weekday: sked.Sunday, Hour: 9, Minute: 30}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.f.Period())
			cfg, err := tt.f.Build(noop)
			require.NoError(t, err)
			require.Equal(t, tt.want, cfg.Period)
		})
	}
}

func TestBuilderAtPromotesToDay(t *testing.T) {
	t.Parallel()
	p := sked.Every(2).Day(0, 0, 0).At(6, 30, 0).Period()
	require.Equal(t, sked.Day, p.Granularity)
	require.Equal(t, 2, p.Multiplier)
	require.Equal(t, 6, p.Hour)
	require.Equal(t, 30, p.Minute)
}

func TestBuilderResultByKind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg, err := sked.Every(1).Second().Named("beat").Build(noop)
	require.NoError(t, err)
	require.Equal(t, "beat", cfg.Name)
	require.False(t, cfg.OneShot)
	require.Equal(t, sked.Reschedule, cfg.Body(ctx))

	cfg, err = sked.Once().Second().Build(noop)
	require.NoError(t, err)
	require.True(t, cfg.OneShot)
	require.Equal(t, sked.Done, cfg.Body(ctx))

	cfg, err = sked.Every(1).Second().BuildFunc(func(context.Context) sked.Result { return sked.Done })
	require.NoError(t, err)
	require.False(t, cfg.OneShot)
	require.Equal(t, sked.Done, cfg.Body(ctx))
}

func TestBuilderErrors(t *testing.T) {
	t.Parallel()

	_, err := sked.Every(0).Second().Build(noop)
	require.True(t, errors.Is(err, sked.ErrInvalidPeriod))

	_, err = sked.Every(1).Second().Build(nil)
	require.True(t, errors.Is(err, sked.ErrNilBody))

	_, err = sked.Every(1).Day(25, 0, 0).Build(noop)
	require.True(t, errors.Is(err, sked.ErrInvalidPeriod))

	_, err = sked.Every(1).Minute(60).Build(noop)
	require.True(t, errors.Is(err, sked.ErrInvalidPeriod))

	_, err = sked.Final{}.Build(noop)
	require.True(t, errors.Is(err, sked.ErrNoGranularity))
}
