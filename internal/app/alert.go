package app

import (
	"context"
	"fmt"

	"sked/internal/notifier"
	logx "sked/pkg/logx"
	"sked/pkg/sked"
)

const alertPriority = 9

// send queues n for the configured chats. Queue overflow and shutdown are
// logged, never returned to the task.
func (a *App) send(ctx context.Context, log logx.Logger, n notifier.Notification) {
	if a.notifier == nil {
		return
	}
	n.Targets = a.targets
	if err := a.notifier.Notify(ctx, n); err != nil {
		log.Warn("notification not queued", logx.Err(err))
	}
}

// alertFailure reports a failed exec or systemd action when on_failure is set.
func (a *App) alertFailure(ctx context.Context, task, what string, err error) {
	if !a.onFailure {
		return
	}
	a.send(ctx, a.log.With(logx.String("task", task)), notifier.Notification{
		Text:     fmt.Sprintf("skedd: task %s failed: %s: %v", task, what, err),
		Priority: alertPriority,
	})
}

// alertPanic is an engine observer; it runs on the worker and must not block.
func (a *App) alertPanic(r sked.Run) {
	if r.Panic == "" {
		return
	}
	a.send(context.Background(), a.log.With(logx.String("task", r.Name)), notifier.Notification{
		Text:     fmt.Sprintf("skedd: task %s panicked: %s", r.Name, r.Panic),
		Priority: alertPriority,
	})
}

// forwardLog is the logging.forward sink. Entries from the notifier itself
// are skipped, and queueing errors are dropped rather than logged.
func (a *App) forwardLog(e logx.Entry) {
	if e.Fields["comp"] == "notifier" || a.notifier == nil {
		return
	}
	prio := 7
	if e.Level >= logx.LevelError {
		prio = alertPriority
	}
	_ = a.notifier.Notify(context.Background(), notifier.Notification{
		Targets:  a.targets,
		Text:     e.Text(),
		Priority: prio,
	})
}
