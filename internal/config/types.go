package config

// Config is the skedd configuration file (JSON or YAML).
//
// Example (YAML):
//
//	logging:
//	  level: info
//	  console: true
//	engine:
//	  lag_threshold: 2s
//	storage:
//	  driver: sqlite
//	  path: ./skedd.db
//	debug:
//	  enabled: true
//	  addr: 127.0.0.1:6060
//	notify:
//	  enabled: true
//	  on_failure: true
//	  telegram:
//	    chat_ids: [123456789]
//	tasks:
//	  - name: heartbeat
//	    every: 5
//	    unit: second
//	    action: log
//	    message: still alive
//	  - name: weekly-report
//	    weekday: wednesday
//	    at: "13:45:35"
//	    action: exec
//	    command: ["/usr/local/bin/report", "--weekly"]
//	    timeout: 2m
type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Engine  EngineConfig   `json:"engine"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Debug   *DebugConfig   `json:"debug,omitempty"`
	Notify  *NotifyConfig  `json:"notify,omitempty"`
	Tasks   []TaskConfig   `json:"tasks"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	// Forward sends warnings/errors to the notify chats. Needs notify.enabled.
	Forward LoggingForward `json:"forward"`
}

type LoggingForward struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// EngineConfig tunes the scheduling engine.
//
// Durations are Go duration strings (e.g. "500ms", "10s").
//
// Defaults:
//   - lag_threshold: "1s"; "off" disables the late-dispatch warning
//   - shutdown_timeout: "30s"
//   - propagate_panics: false (a panicking task is logged and kept alive)
type EngineConfig struct {
	LagThreshold    string `json:"lag_threshold,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
	PropagatePanics bool   `json:"propagate_panics,omitempty"`
}

// StorageConfig controls the optional run-history store.
//
//	"storage": { "driver": "file", "path": "./skedd_runs" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	// Retention drops runs older than this (Go duration or "7d"). Empty keeps all.
	Retention string `json:"retention,omitempty"`
	// QueueSize bounds how many finished runs may wait for the writer.
	QueueSize int `json:"queue_size,omitempty"`
}

// TaskConfig declares one scheduled task.
//
// The rule is built from Unit (second, minute, hour, day, week), Every and At:
//
//	unit: second           every N seconds; at must be empty
//	unit: minute, at: "30" every N minutes at second 30
//	unit: hour, at: "15:00" every N hours at minute 15
//	unit: day, at: "04:00" every N days at 04:00:00
//	weekday: wednesday     weekly; unit may be omitted or "week"
//
// Times are UTC whatever the host zone: rules are anchored to the Unix epoch,
// so at: "04:00" fires at 04:00 UTC.
//
// Once removes the task after its first run. Every must then be 0 or 1.
type TaskConfig struct {
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled,omitempty"`
	Every   int    `json:"every,omitempty"`
	Unit    string `json:"unit,omitempty"`
	Weekday string `json:"weekday,omitempty"`
	At      string `json:"at,omitempty"`
	Once    bool   `json:"once,omitempty"`

	// Action is "log" (default), "exec", "systemd" or "notify". Message is
	// the text for log and notify.
	Action  string   `json:"action,omitempty"`
	Message string   `json:"message,omitempty"`
	Command []string `json:"command,omitempty"`
	Dir     string   `json:"dir,omitempty"`
	// Service and Operation drive the systemd action, e.g. service: nginx,
	// operation: recover.
	Service   string `json:"service,omitempty"`
	Operation string `json:"operation,omitempty"`
	// Timeout bounds an exec or systemd action; "0s" or empty means no limit.
	Timeout string `json:"timeout,omitempty"`
}

// IsEnabled reports whether the task should be scheduled. Omitted means yes.
func (t TaskConfig) IsEnabled() bool { return t.Enabled == nil || *t.Enabled }

// DebugConfig controls the optional status/pprof HTTP listener. It is applied
// live on reload.
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`   // default 127.0.0.1:6060
	Prefix  string `json:"prefix,omitempty"` // pprof prefix, default /debug/pprof/
	Token   string `json:"token,omitempty"`
	// AllowInsecure permits a non-loopback bind without a token.
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	WriteTimeout  string `json:"write_timeout,omitempty"`

	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
}

// NotifyConfig enables Telegram delivery for the notify action and, with
// OnFailure, alerts for failed or panicking runs.
type NotifyConfig struct {
	Enabled   bool           `json:"enabled"`
	OnFailure bool           `json:"on_failure,omitempty"`
	Telegram  TelegramConfig `json:"telegram"`

	QueueSize   int    `json:"queue_size,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	RetryMax    int    `json:"retry_max,omitempty"`
	RetryBase   string `json:"retry_base,omitempty"`
	DedupWindow string `json:"dedup_window,omitempty"`
}

type TelegramConfig struct {
	// Token falls back to $SKED_TELEGRAM_TOKEN so it can live in .env.
	Token    string  `json:"token,omitempty"`
	ChatIDs  []int64 `json:"chat_ids"`
	ThreadID int     `json:"thread_id,omitempty"`
	// APIURL overrides the Bot API endpoint (self-hosted API servers).
	APIURL string `json:"api_url,omitempty"`
}
