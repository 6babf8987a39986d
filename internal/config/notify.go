package config

import (
	"errors"
	"os"
	"strings"
)

const (
	ActionNotify = "notify"

	TelegramTokenEnv = "SKED_TELEGRAM_TOKEN"
)

// ResolveToken returns the configured token or the environment fallback.
func (t TelegramConfig) ResolveToken() string {
	if tok := strings.TrimSpace(t.Token); tok != "" {
		return tok
	}
	return strings.TrimSpace(os.Getenv(TelegramTokenEnv))
}

func (n NotifyConfig) validate() error {
	if _, err := ParseDurationField("notify.retry_base", n.RetryBase); err != nil {
		return err
	}
	if _, err := ParseDurationField("notify.dedup_window", n.DedupWindow); err != nil {
		return err
	}
	if n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 {
		return errors.New("notify: queue_size, rate_per_sec and retry_max must be >= 0")
	}
	if !n.Enabled {
		return nil
	}
	if len(n.Telegram.ChatIDs) == 0 {
		return errors.New("notify.telegram.chat_ids: at least one chat is required")
	}
	if n.Telegram.ResolveToken() == "" {
		return errors.New("notify.telegram.token is empty and " + TelegramTokenEnv + " is unset")
	}
	return nil
}

// NotifyEnabled reports whether the notify section is present and on.
func (c *Config) NotifyEnabled() bool { return c != nil && c.Notify != nil && c.Notify.Enabled }
