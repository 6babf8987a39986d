// Package sked is an in-process job scheduler.
//
// A host registers units of work anchored to simple intervals ("every 5
// seconds") or to absolute time-of-day / day-of-week coordinates ("every
// Wednesday at 13:45:34"). One background goroutine per Engine sleeps until the
// next task is due, runs every task due at that exact instant, and requeues the
// recurring ones.
//
//	sd := sked.NewShutdown()
//	e := sked.New(sked.WithShutdown(sd), sked.WithLogger(log))
//	sked.Every(5).Second().Named("heartbeat").Submit(e, beat)
//	sked.Once().Wednesday().AtTime(sked.MustDayTime("13:45:35")).Submit(e, report)
//	_ = e.AwaitShutdown(context.Background())
//
// Time arithmetic is done on Unix-epoch seconds in the clock's time domain;
// there are no time zones or calendars. Weekday 0 is Thursday, the weekday of
// the epoch.
package sked
