// Package unitctl drives systemd units over D-Bus for scheduled service
// maintenance (restart a unit nightly, recover a failed one, and so on).
package unitctl

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupported = errors.New("unitctl: systemd is only available on linux")
	ErrClosed      = errors.New("unitctl: connection closed")
	ErrUnknownOp   = errors.New("unitctl: unknown operation")
)

// Op is a unit operation.
type Op string

const (
	Start   Op = "start"
	Stop    Op = "stop"
	Restart Op = "restart"
	Reload  Op = "reload"
	// Recover restarts the unit only when it is not active.
	Recover Op = "recover"
)

// ParseOp accepts an operation name in any case.
func ParseOp(s string) (Op, error) {
	switch op := Op(strings.ToLower(strings.TrimSpace(s))); op {
	case Start, Stop, Restart, Reload, Recover:
		return op, nil
	}
	return "", fmt.Errorf("%w %q (want start, stop, restart, reload or recover)", ErrUnknownOp, s)
}

// Status is the core state of a unit.
type Status struct {
	Name      string
	Active    string // active, inactive, failed, activating...
	SubState  string // running, dead, exited...
	LoadState string // loaded, not-found...
}

// Found reports whether systemd knows the unit.
func (s Status) Found() bool { return s.LoadState != "" && s.LoadState != "not-found" }

// Healthy reports whether the unit is active or on its way there.
func (s Status) Healthy() bool {
	return s.Active == "active" || s.Active == "activating" || s.Active == "reloading"
}

// UnitName appends ".service" when name carries no unit type suffix.
func UnitName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		switch name[i+1:] {
		case "service", "socket", "timer", "target", "path", "mount", "slice", "scope":
			return name
		}
	}
	return name + ".service"
}

// Outcome describes what an Apply call did.
type Outcome struct {
	Unit    string
	Op      Op
	Skipped bool   // Recover found the unit healthy
	Result  string // systemd job result: done, failed, timeout...
	Before  Status
}

func (o Outcome) String() string {
	if o.Skipped {
		return fmt.Sprintf("%s %s: skipped (%s)", o.Op, o.Unit, o.Before.Active)
	}
	return fmt.Sprintf("%s %s: %s", o.Op, o.Unit, o.Result)
}
