package app

import (
	"fmt"
	"strings"
	"time"

	"sked/internal/config"
	"sked/internal/storage"
)

const (
	defaultBusyTimeout      = time.Second
	defaultDebugReadTimeout = 5 * time.Second
)

// mapStorageConfig translates the storage section. enabled is false when the
// section is omitted or the driver is none/off.
func mapStorageConfig(cfg *config.Config) (sc storage.Config, queue int, enabled bool, err error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, 0, false, nil
	}
	in := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(in.Driver))
	switch driver {
	case "", "none", "off":
		return storage.Config{}, 0, false, nil
	case "file", "sqlite", "sqlite3":
	default:
		return storage.Config{}, 0, false, fmt.Errorf("unknown storage.driver: %s", in.Driver)
	}

	path := strings.TrimSpace(in.Path)
	if path == "" {
		return storage.Config{}, 0, false, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", in.BusyTimeout, defaultBusyTimeout)
	if err != nil {
		return storage.Config{}, 0, false, err
	}
	retention, err := config.ParseDurationField("storage.retention", in.Retention)
	if err != nil {
		return storage.Config{}, 0, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        path,
		BusyTimeout: busy,
		Retention:   retention,
	}, in.QueueSize, true, nil
}
