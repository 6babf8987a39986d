package config

import (
	"reflect"
	"sort"
	"strings"

	logx "sked/pkg/logx"
)

// Change summarizes the difference between two configs.
type Change struct {
	// Sections lists changed top-level sections in file order.
	Sections []string
	// Added, Removed and Modified list task names.
	Added    []string
	Removed  []string
	Modified []string
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

func (c Change) Has(section string) bool {
	for _, s := range c.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// NeedsRestart reports whether the change touches sections that only apply
// at startup. Logging and debug are applied live.
func (c Change) NeedsRestart() bool {
	return c.Has("engine") || c.Has("storage") || c.Has("notify") || c.Has("tasks")
}

// Fields renders the change for a structured log line.
func (c Change) Fields() []logx.Field {
	f := []logx.Field{logx.String("sections", strings.Join(c.Sections, ","))}
	if c.Has("tasks") {
		f = append(f,
			logx.String("tasks.added", strings.Join(c.Added, ",")),
			logx.String("tasks.removed", strings.Join(c.Removed, ",")),
			logx.String("tasks.modified", strings.Join(c.Modified, ",")),
		)
	}
	if c.NeedsRestart() {
		f = append(f, logx.Bool("restart_required", true))
	}
	return f
}

// SummarizeChange compares oldCfg and newCfg section by section.
func SummarizeChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var c Change
	if !reflect.DeepEqual(normLogging(oldCfg.Logging), normLogging(newCfg.Logging)) {
		c.Sections = append(c.Sections, "logging")
	}
	if !reflect.DeepEqual(oldCfg.Engine, newCfg.Engine) {
		c.Sections = append(c.Sections, "engine")
	}
	if !reflect.DeepEqual(derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)) {
		c.Sections = append(c.Sections, "storage")
	}
	if !reflect.DeepEqual(derefDebug(oldCfg.Debug), derefDebug(newCfg.Debug)) {
		c.Sections = append(c.Sections, "debug")
	}
	if !reflect.DeepEqual(oldCfg.Notify, newCfg.Notify) {
		c.Sections = append(c.Sections, "notify")
	}

	oldTasks := indexTasks(oldCfg.Tasks)
	newTasks := indexTasks(newCfg.Tasks)
	for name, nt := range newTasks {
		ot, ok := oldTasks[name]
		switch {
		case !ok:
			c.Added = append(c.Added, name)
		case !reflect.DeepEqual(ot, nt):
			c.Modified = append(c.Modified, name)
		}
	}
	for name := range oldTasks {
		if _, ok := newTasks[name]; !ok {
			c.Removed = append(c.Removed, name)
		}
	}
	sort.Strings(c.Added)
	sort.Strings(c.Removed)
	sort.Strings(c.Modified)
	if len(c.Added)+len(c.Removed)+len(c.Modified) > 0 {
		c.Sections = append(c.Sections, "tasks")
	}
	return c
}

func normLogging(l LoggingConfig) LoggingConfig {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	l.File.Path = strings.TrimSpace(l.File.Path)
	l.Forward.MinLevel = strings.ToLower(strings.TrimSpace(l.Forward.MinLevel))
	return l
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}

func derefDebug(d *DebugConfig) DebugConfig {
	if d == nil {
		return DebugConfig{}
	}
	return *d
}

func indexTasks(ts []TaskConfig) map[string]TaskConfig {
	m := make(map[string]TaskConfig, len(ts))
	for _, t := range ts {
		m[strings.TrimSpace(t.Name)] = t
	}
	return m
}
