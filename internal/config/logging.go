package config

import (
	"errors"
	"fmt"
	"strings"

	logx "sked/pkg/logx"
)

// LogConfig maps the logging section onto the logger service config.
func (l LoggingConfig) LogConfig() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File: logx.FileConfig{
			Enabled: l.File.Enabled,
			Path:    l.File.Path,
		},
		Forward: logx.ForwardConfig{
			Enabled:    l.Forward.Enabled,
			MinLevel:   l.Forward.MinLevel,
			RatePerSec: l.Forward.RatePerSec,
		},
	}
}

func (l LoggingConfig) validate(notifyOn bool) error {
	if lvl := strings.TrimSpace(l.Level); lvl != "" {
		if _, ok := logx.ParseLevel(lvl); !ok {
			return fmt.Errorf("logging.level: unknown level %q", l.Level)
		}
	}
	f := l.Forward
	if lvl := strings.TrimSpace(f.MinLevel); lvl != "" {
		if _, ok := logx.ParseLevel(lvl); !ok {
			return fmt.Errorf("logging.forward.min_level: unknown level %q", f.MinLevel)
		}
	}
	if f.RatePerSec < 0 {
		return errors.New("logging.forward.rate_per_sec must be >= 0")
	}
	if f.Enabled && !notifyOn {
		return errors.New("logging.forward requires notify.enabled")
	}
	return nil
}
