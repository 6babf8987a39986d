package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sked/pkg/sked"
)

const sampleYAML = `
logging:
  level: info
  console: true
engine:
  lag_threshold: 2s
storage:
  driver: sqlite
  path: ./runs.db
tasks:
  - name: heartbeat
    every: 5
    unit: second
    message: still alive
  - name: weekly-report
    weekday: wednesday
    at: "13:45:35"
    action: exec
    command: ["/bin/true"]
    timeout: 2m
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("skedd.yaml", []byte(sampleYAML))
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "2s", cfg.Engine.LagThreshold)
	require.Equal(t, "sqlite", cfg.Storage.Driver)
	require.Len(t, cfg.Tasks, 2)
	require.Equal(t, []string{"/bin/true"}, cfg.Tasks[1].Command)

	d, ok, err := cfg.Engine.LagThresholdValue()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2*time.Second, d)
}

func TestDecodeStrict(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		data string
	}{
		{name: "unknown json field", file: "c.json", data: `{"logging":{"level":"info"},"telegram":{}}`},
		{name: "unknown yaml field", file: "c.yml", data: "tasks:\n  - name: a\n    unit: second\n    cron: '* * *'\n"},
		{name: "trailing json", file: "c.json", data: `{"tasks":[]} {"tasks":[]}`},
		{name: "bad yaml", file: "c.yaml", data: "tasks: [\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.file, []byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestDecodeEmptyYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("c.yaml", []byte("# nothing here\n"))
	require.NoError(t, err)
	require.Empty(t, cfg.Tasks)
}

func TestTaskSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		task TaskConfig
		want sked.Period
		once bool
	}{
		{name: "seconds", task: TaskConfig{Unit: "second", Every: 5}, want: sked.Period{Granularity: sked.Second, Multiplier: 5}},
		{name: "every defaults to one", task: TaskConfig{Unit: "Second"}, want: sked.Period{Granularity: sked.Second, Multiplier: 1}},
		{name: "minute at second", task: TaskConfig{Unit: "minute", Every: 2, At: "30"}, want: sked.Period{Granularity: sked.Minute, Multiplier: 2, Second: 30}},
		{name: "minute at colon second", task: TaskConfig{Unit: "minute", At: ":07"}, want: sked.Period{Granularity: sked.Minute, Multiplier: 1, Second: 7}},
		{name: "hour at minute", task: TaskConfig{Unit: "hour", At: "15"}, want: sked.Period{Granularity: sked.Hour, Multiplier: 1, Minute: 15}},
		{name: "hour at minute second", task: TaskConfig{Unit: "hour", At: "45:36"}, want: sked.Period{Granularity: sked.Hour, Multiplier: 1, Minute: 45, Second: 36}},
		{name: "day", task: TaskConfig{Unit: "day", At: "4:00"}, want: sked.Period{Granularity: sked.Day, Multiplier: 1, Hour: 4}},
		{name: "weekday implies week", task: TaskConfig{Weekday: "wed", At: "13:45:35"}, want: sked.Period{Granularity: sked.Week, Multiplier: 1, Weekday: sked.Wednesday, Hour: 13, Minute: 45, Second: 35}},
		{name: "once", task: TaskConfig{Unit: "week", Weekday: "Friday", Once: true}, want: sked.Period{Granularity: sked.Week, Multiplier: 1, Weekday: sked.Friday}, once: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := tt.task.Schedule()
			require.NoError(t, err)
			require.Equal(t, tt.want, f.Period())
			cfg, err := f.BuildFunc(func(context.Context) sked.Result { return sked.Reschedule })
			require.NoError(t, err)
			require.Equal(t, tt.once, cfg.OneShot)
		})
	}
}

func TestTaskScheduleErrors(t *testing.T) {
	t.Parallel()
	bad := []TaskConfig{
		{},
		{Unit: "fortnight"},
		{Unit: "second", At: "10"},
		{Unit: "minute", At: "1:30"},
		{Unit: "minute", At: "75"},
		{Unit: "hour", At: "1:2:3"},
		{Unit: "day", At: "25:00"},
		{Unit: "week"},
		{Unit: "day", Weekday: "monday"},
		{Weekday: "someday"},
		{Unit: "second", Every: -2},
		{Unit: "second", Every: 3, Once: true},
	}
	for _, tc := range bad {
		_, err := tc.Schedule()
		require.Error(t, err, "%+v", tc)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	ok := func() *Config {
		return &Config{Tasks: []TaskConfig{{Name: "a", Unit: "second"}}}
	}
	require.NoError(t, Validate(ok()))

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "level", mutate: func(c *Config) { c.Logging.Level = "loud" }, want: "logging.level"},
		{name: "forward level", mutate: func(c *Config) { c.Logging.Forward.MinLevel = "panic!" }, want: "logging.forward.min_level"},
		{name: "forward without notify", mutate: func(c *Config) { c.Logging.Forward.Enabled = true }, want: "requires notify.enabled"},
		{name: "lag", mutate: func(c *Config) { c.Engine.LagThreshold = "soon" }, want: "engine.lag_threshold"},
		{name: "shutdown", mutate: func(c *Config) { c.Engine.ShutdownTimeout = "-1s" }, want: "engine.shutdown_timeout"},
		{name: "driver", mutate: func(c *Config) { c.Storage = &StorageConfig{Driver: "redis"} }, want: "storage.driver"},
		{name: "no name", mutate: func(c *Config) { c.Tasks[0].Name = " " }, want: "name is required"},
		{name: "dup", mutate: func(c *Config) { c.Tasks = append(c.Tasks, TaskConfig{Name: "A", Unit: "minute"}) }, want: "already used"},
		{name: "exec without command", mutate: func(c *Config) { c.Tasks[0].Action = "exec" }, want: "requires a command"},
		{name: "log with command", mutate: func(c *Config) { c.Tasks[0].Command = []string{"ls"} }, want: "only valid with action exec"},
		{name: "action", mutate: func(c *Config) { c.Tasks[0].Action = "email" }, want: "unknown action"},
		{name: "timeout", mutate: func(c *Config) { c.Tasks[0].Timeout = "forever" }, want: "timeout"},
		{name: "systemd without service", mutate: func(c *Config) { c.Tasks[0].Action = "systemd" }, want: "requires a service"},
		{name: "systemd op", mutate: func(c *Config) {
			c.Tasks[0].Action, c.Tasks[0].Service, c.Tasks[0].Operation = "systemd", "nginx", "kill"
		}, want: "unknown operation"},
		{name: "service on log", mutate: func(c *Config) { c.Tasks[0].Service = "nginx" }, want: "only valid with action systemd"},
		{name: "notify without section", mutate: func(c *Config) { c.Tasks[0].Action, c.Tasks[0].Message = "notify", "hi" }, want: "requires notify.enabled"},
		{name: "notify without message", mutate: func(c *Config) {
			c.Notify = &NotifyConfig{Enabled: true, Telegram: TelegramConfig{Token: "t", ChatIDs: []int64{1}}}
			c.Tasks[0].Action = "notify"
		}, want: "requires a message"},
		{name: "notify chats", mutate: func(c *Config) {
			c.Notify = &NotifyConfig{Enabled: true, Telegram: TelegramConfig{Token: "t"}}
		}, want: "chat_ids"},
		{name: "notify retry", mutate: func(c *Config) { c.Notify = &NotifyConfig{RetryBase: "soon"} }, want: "notify.retry_base"},
		{name: "debug addr", mutate: func(c *Config) { c.Debug = &DebugConfig{Enabled: true, Addr: "6060"} }, want: "debug.addr"},
		{name: "debug public", mutate: func(c *Config) { c.Debug = &DebugConfig{Enabled: true, Addr: ":6060"} }, want: "requires token"},
		{name: "debug timeout", mutate: func(c *Config) { c.Debug = &DebugConfig{ReadTimeout: "later"} }, want: "debug.read_timeout"},
	}
	for _, tt := range tests {
		c := ok()
		tt.mutate(c)
		err := Validate(c)
		require.Error(t, err, tt.name)
		require.Contains(t, err.Error(), tt.want, tt.name)
	}
}

func TestLagThresholdOff(t *testing.T) {
	t.Parallel()
	_, ok, err := EngineConfig{LagThreshold: "OFF"}.LagThresholdValue()
	require.NoError(t, err)
	require.False(t, ok)

	d, ok, err := EngineConfig{}.LagThresholdValue()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, DefaultLagThreshold, d)
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{
		Logging: LoggingConfig{Level: "info"},
		Tasks: []TaskConfig{
			{Name: "a", Unit: "second"},
			{Name: "b", Unit: "minute"},
			{Name: "c", Unit: "hour"},
		},
	}
	newCfg := &Config{
		Logging: LoggingConfig{Level: " INFO "},
		Engine:  EngineConfig{LagThreshold: "5s"},
		Tasks: []TaskConfig{
			{Name: "a", Unit: "second"},
			{Name: "b", Unit: "minute", At: "30"},
			{Name: "d", Unit: "day"},
		},
	}

	c := SummarizeChange(oldCfg, newCfg)
	require.Equal(t, []string{"engine", "tasks"}, c.Sections)
	require.Equal(t, []string{"d"}, c.Added)
	require.Equal(t, []string{"c"}, c.Removed)
	require.Equal(t, []string{"b"}, c.Modified)
	require.True(t, c.NeedsRestart())
	require.NotEmpty(t, c.Fields())

	c = SummarizeChange(oldCfg, &Config{Logging: LoggingConfig{Level: "debug"}, Tasks: oldCfg.Tasks})
	require.Equal(t, []string{"logging"}, c.Sections)
	require.False(t, c.NeedsRestart())

	c = SummarizeChange(oldCfg, &Config{Logging: oldCfg.Logging, Debug: &DebugConfig{Enabled: true}, Tasks: oldCfg.Tasks})
	require.Equal(t, []string{"debug"}, c.Sections)
	require.False(t, c.NeedsRestart())

	require.True(t, SummarizeChange(nil, &Config{}).Empty())
}

func TestNotifyToken(t *testing.T) {
	t.Setenv(TelegramTokenEnv, "from-env")
	require.Equal(t, "from-env", TelegramConfig{}.ResolveToken())
	require.Equal(t, "inline", TelegramConfig{Token: " inline "}.ResolveToken())

	cfg := &Config{
		Notify: &NotifyConfig{Enabled: true, Telegram: TelegramConfig{ChatIDs: []int64{42}}},
		Tasks:  []TaskConfig{{Name: "ping", Unit: "hour", Action: "notify", Message: "hourly ping"}},
	}
	require.NoError(t, Validate(cfg))

	t.Setenv(TelegramTokenEnv, "")
	require.ErrorContains(t, Validate(cfg), TelegramTokenEnv)
}

func TestDebugConfig(t *testing.T) {
	t.Parallel()
	require.Equal(t, DefaultDebugAddr, DebugConfig{}.DebugAddr())
	require.NoError(t, Validate(&Config{Debug: &DebugConfig{Enabled: true, Addr: "0.0.0.0:6060", Token: "s3cret"}}))
	require.NoError(t, Validate(&Config{Debug: &DebugConfig{Enabled: true, Addr: "[::]:6060", AllowInsecure: true}}))

	for addr, want := range map[string]bool{
		"127.0.0.1:1":  true,
		"localhost:80": true,
		"[::1]:6060":   true,
		":6060":        false,
		"10.0.0.1:80":  false,
		"nonsense":     false,
	} {
		require.Equal(t, want, IsLoopbackAddr(addr), addr)
	}
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(data), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestManagerLoadReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "skedd.yaml")
	writeFile(t, path, sampleYAML)

	m := NewManager(path)
	cfg, err := m.Load()
	require.NoError(t, err)
	require.Same(t, cfg, m.Get())

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	changed, err := m.Reload(context.Background())
	require.NoError(t, err)
	require.False(t, changed)

	writeFile(t, path, strings.Replace(sampleYAML, "level: info", "level: debug", 1))
	changed, err = m.Reload(context.Background())
	require.NoError(t, err)
	require.True(t, changed)
	got := <-sub
	require.Equal(t, "debug", got.Logging.Level)
	require.Same(t, got, m.Get())

	writeFile(t, path, strings.Replace(sampleYAML, "level: info", "level: loud", 1))
	_, err = m.Reload(context.Background())
	require.Error(t, err)
	require.Equal(t, "debug", m.Get().Logging.Level)
}

func TestManagerValidatorHook(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "skedd.json")
	writeFile(t, path, `{"tasks":[]}`)

	m := NewManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		if len(cfg.Tasks) > 1 {
			return context.Canceled
		}
		return nil
	})

	writeFile(t, path, `{"tasks":[{"name":"a","unit":"second"},{"name":"b","unit":"second"}]}`)
	_, err = m.Reload(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, m.Get().Tasks)
}

func TestManagerSlowSubscriberGetsLatest(t *testing.T) {
	t.Parallel()
	m := NewManager("unused.json")
	sub := m.Subscribe(1)
	a, b := &Config{}, &Config{}
	m.publish(a)
	m.publish(b)
	require.Same(t, b, <-sub)
	m.Unsubscribe(sub)
	_, open := <-sub
	require.False(t, open)
}

func TestManagerWatch(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "skedd.yaml")
	writeFile(t, path, sampleYAML)

	m := NewManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	sub := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// The watcher may not be registered yet; keep rewriting until a reload lands.
	deadline := time.After(10 * time.Second)
	for i := 0; ; i++ {
		writeFile(t, path, strings.Replace(sampleYAML, "level: info", "level: warn", 1)+strings.Repeat("\n", i))
		select {
		case got := <-sub:
			require.Equal(t, "warn", got.Logging.Level)
			return
		case <-time.After(500 * time.Millisecond):
		case <-deadline:
			t.Fatal("watch never published a reload")
		}
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr string
	}{
		{raw: "", want: 0},
		{raw: " 90s ", want: 90 * time.Second},
		{raw: "7d", want: 7 * 24 * time.Hour},
		{raw: "0d", want: 0},
		{raw: "-1s", wantErr: "must be >= 0"},
		{raw: "-2d", wantErr: "must be >= 0"},
		{raw: "1.5d", wantErr: "invalid duration"},
		{raw: "soon", wantErr: "invalid duration"},
	}
	for _, tt := range tests {
		got, err := ParseDurationField("storage.retention", tt.raw)
		if tt.wantErr != "" {
			require.ErrorContains(t, err, tt.wantErr, tt.raw)
			require.ErrorContains(t, err, "storage.retention", tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		require.Equal(t, tt.want, got, tt.raw)
	}

	d, err := ParseDurationOrDefault("x", "", time.Minute)
	require.NoError(t, err)
	require.Equal(t, time.Minute, d)
}
