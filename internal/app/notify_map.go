package app

import (
	"sked/internal/config"
	"sked/internal/notifier"
)

// mapNotifyConfig translates the notify section into pipeline settings and
// the chat targets every notification goes to.
func mapNotifyConfig(in *config.NotifyConfig) (notifier.Config, []notifier.Target, error) {
	base, err := config.ParseDurationField("notify.retry_base", in.RetryBase)
	if err != nil {
		return notifier.Config{}, nil, err
	}
	dedup, err := config.ParseDurationField("notify.dedup_window", in.DedupWindow)
	if err != nil {
		return notifier.Config{}, nil, err
	}
	targets := make([]notifier.Target, 0, len(in.Telegram.ChatIDs))
	for _, id := range in.Telegram.ChatIDs {
		targets = append(targets, notifier.Target{ChatID: id, ThreadID: in.Telegram.ThreadID})
	}
	return notifier.Config{
		QueueSize:   in.QueueSize,
		RatePerSec:  in.RatePerSec,
		RetryMax:    in.RetryMax,
		RetryBase:   base,
		DedupWindow: dedup,
	}, targets, nil
}
