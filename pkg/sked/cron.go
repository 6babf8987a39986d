package sked

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Period already has the Next(time.Time) time.Time method robfig/cron expects,
// so a rule can be handed to an existing cron.Cron:
//
//	c := cron.New()
//	c.Schedule(sked.CronSchedule(p), cron.FuncJob(fn))
var _ cron.Schedule = Period{}

// CronSchedule exposes p as a cron.Schedule.
func CronSchedule(p Period) cron.Schedule { return p }

// Upcoming lists the next n due instants of p after from.
func Upcoming(p Period, from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = p.Next(t)
		out = append(out, t)
	}
	return out
}
