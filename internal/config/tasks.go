package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sked/pkg/sked"
	"sked/pkg/unitctl"
)

const (
	ActionLog     = "log"
	ActionExec    = "exec"
	ActionSystemd = "systemd"
)

const (
	DefaultLagThreshold    = time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// Schedule turns the task's rule fields into a builder stage, ready for
// Named/BuildFunc.
func (t TaskConfig) Schedule() (sked.Final, error) {
	unit := strings.ToLower(strings.TrimSpace(t.Unit))
	weekday := strings.TrimSpace(t.Weekday)
	if unit == "" && weekday != "" {
		unit = "week"
	}
	if unit == "" {
		return sked.Final{}, errors.New("unit is required")
	}
	if weekday != "" && unit != "week" {
		return sked.Final{}, fmt.Errorf("weekday is only valid with unit week, not %q", unit)
	}

	if t.Every < 0 {
		return sked.Final{}, fmt.Errorf("every must be >= 0, got %d", t.Every)
	}

	var b sked.Builder
	switch {
	case t.Once:
		if t.Every > 1 {
			return sked.Final{}, fmt.Errorf("every must be 0 or 1 for a once task, got %d", t.Every)
		}
		b = sked.Once()
	case t.Every == 0:
		b = sked.Every(1)
	default:
		b = sked.Every(t.Every)
	}

	at := strings.TrimSpace(t.At)
	switch unit {
	case "second":
		if at != "" {
			return sked.Final{}, errors.New("at is not valid with unit second")
		}
		return b.Second(), nil
	case "minute":
		if strings.Contains(at, ":") {
			return sked.Final{}, fmt.Errorf("at %q: minute rules take a second only", at)
		}
		dt, err := anchor("0:0:", at)
		if err != nil {
			return sked.Final{}, err
		}
		return b.Minute(dt.Second).Final, nil
	case "hour":
		dt, err := anchor("0:", at)
		if err != nil {
			return sked.Final{}, err
		}
		return b.Hour(dt.Minute, dt.Second).Final, nil
	case "day":
		dt, err := anchor("", at)
		if err != nil {
			return sked.Final{}, err
		}
		return b.DayAt(dt).Final, nil
	case "week":
		if weekday == "" {
			return sked.Final{}, errors.New("weekday is required with unit week")
		}
		d, err := sked.ParseWeekday(weekday)
		if err != nil {
			return sked.Final{}, err
		}
		dt, err := anchor("", at)
		if err != nil {
			return sked.Final{}, err
		}
		return b.On(d).AtTime(dt), nil
	default:
		return sked.Final{}, fmt.Errorf("unknown unit %q", t.Unit)
	}
}

// anchor parses at as the trailing fields of a time of day. An empty at means
// the start of the unit.
func anchor(prefix, at string) (sked.DayTime, error) {
	if at == "" {
		return sked.DayTime{}, nil
	}
	at = strings.TrimPrefix(at, ":")
	return sked.ParseDayTime(prefix + at)
}

// ActionTimeout returns the exec or systemd action deadline; zero means none.
func (t TaskConfig) ActionTimeout() (time.Duration, error) {
	return ParseDurationField("timeout", t.Timeout)
}

// UnitOp parses the systemd operation; omitted means restart.
func (t TaskConfig) UnitOp() (unitctl.Op, error) {
	if strings.TrimSpace(t.Operation) == "" {
		return unitctl.Restart, nil
	}
	return unitctl.ParseOp(t.Operation)
}

func (t TaskConfig) action() string {
	a := strings.ToLower(strings.TrimSpace(t.Action))
	if a == "" {
		return ActionLog
	}
	return a
}

// ActionName returns the normalized action ("log" when omitted).
func (t TaskConfig) ActionName() string { return t.action() }

func (t TaskConfig) validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("name is required")
	}
	if _, err := t.Schedule(); err != nil {
		return err
	}
	action := t.action()
	if action != ActionExec && len(t.Command) > 0 {
		return errors.New("command is only valid with action exec")
	}
	if action != ActionSystemd && (t.Service != "" || t.Operation != "") {
		return errors.New("service and operation are only valid with action systemd")
	}
	switch action {
	case ActionLog:
	case ActionExec:
		if len(t.Command) == 0 || strings.TrimSpace(t.Command[0]) == "" {
			return errors.New("action exec requires a command")
		}
	case ActionNotify:
		if strings.TrimSpace(t.Message) == "" {
			return errors.New("action notify requires a message")
		}
	case ActionSystemd:
		if strings.TrimSpace(t.Service) == "" {
			return errors.New("action systemd requires a service")
		}
		if _, err := t.UnitOp(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown action %q", t.Action)
	}
	if _, err := t.ActionTimeout(); err != nil {
		return err
	}
	return nil
}

// LagThresholdValue resolves engine.lag_threshold. ok is false when the warning is
// switched off.
func (e EngineConfig) LagThresholdValue() (d time.Duration, ok bool, err error) {
	raw := strings.TrimSpace(e.LagThreshold)
	if strings.EqualFold(raw, "off") {
		return 0, false, nil
	}
	d, err = ParseDurationOrDefault("engine.lag_threshold", raw, DefaultLagThreshold)
	return d, err == nil, err
}

func (e EngineConfig) ShutdownTimeoutValue() (time.Duration, error) {
	return ParseDurationOrDefault("engine.shutdown_timeout", e.ShutdownTimeout, DefaultShutdownTimeout)
}

// Validate checks every section and returns the first problem found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := cfg.Logging.validate(cfg.NotifyEnabled()); err != nil {
		return err
	}
	if _, _, err := cfg.Engine.LagThresholdValue(); err != nil {
		return err
	}
	if _, err := cfg.Engine.ShutdownTimeoutValue(); err != nil {
		return err
	}
	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "off", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", s.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			return err
		}
		if _, err := ParseDurationField("storage.retention", s.Retention); err != nil {
			return err
		}
		if s.QueueSize < 0 {
			return errors.New("storage.queue_size must be >= 0")
		}
	}

	if d := cfg.Debug; d != nil {
		if err := d.validate(); err != nil {
			return err
		}
	}
	if n := cfg.Notify; n != nil {
		if err := n.validate(); err != nil {
			return err
		}
	}

	seen := make(map[string]int, len(cfg.Tasks))
	for i, t := range cfg.Tasks {
		if err := t.validate(); err != nil {
			return fmt.Errorf("tasks[%d] (%s): %w", i, t.Name, err)
		}
		if t.action() == ActionNotify && !cfg.NotifyEnabled() {
			return fmt.Errorf("tasks[%d] (%s): action notify requires notify.enabled", i, t.Name)
		}
		key := strings.ToLower(strings.TrimSpace(t.Name))
		if j, dup := seen[key]; dup {
			return fmt.Errorf("tasks[%d]: name %q already used by tasks[%d]", i, t.Name, j)
		}
		seen[key] = i
	}
	return nil
}
