package app

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"sked/internal/config"
	"sked/internal/notifier"
	logx "sked/pkg/logx"
	"sked/pkg/sked"
	"sked/pkg/unitctl"
)

const maxOutputLog = 512

// Runner executes an exec action. The default runs the command with os/exec.
type Runner interface {
	Run(ctx context.Context, dir string, argv []string) ([]byte, error)
}

// Units applies systemd actions. *unitctl.Manager is the default.
type Units interface {
	Apply(ctx context.Context, op unitctl.Op, unit string) (unitctl.Outcome, error)
	Close() error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// taskConfig builds the engine definition for one configured task.
func (a *App) taskConfig(tc config.TaskConfig) (sked.Config, error) {
	f, err := tc.Schedule()
	if err != nil {
		return sked.Config{}, err
	}
	body, err := a.body(tc)
	if err != nil {
		return sked.Config{}, err
	}
	return f.Named(tc.Name).BuildFunc(body)
}

func (a *App) body(tc config.TaskConfig) (sked.Func, error) {
	res := sked.Reschedule
	if tc.Once {
		res = sked.Done
	}
	log := a.log.With(logx.String("task", tc.Name))

	switch tc.ActionName() {
	case config.ActionLog:
		msg := tc.Message
		if strings.TrimSpace(msg) == "" {
			msg = "task fired"
		}
		return func(context.Context) sked.Result {
			log.Info(msg)
			return res
		}, nil

	case config.ActionExec:
		timeout, err := tc.ActionTimeout()
		if err != nil {
			return nil, err
		}
		argv := append([]string(nil), tc.Command...)
		dir := tc.Dir
		return func(ctx context.Context) sked.Result {
			if err := a.runCommand(ctx, log, dir, argv, timeout); err != nil {
				a.alertFailure(ctx, tc.Name, "command "+argv[0], err)
			}
			return res
		}, nil

	case config.ActionSystemd:
		timeout, err := tc.ActionTimeout()
		if err != nil {
			return nil, err
		}
		op, err := tc.UnitOp()
		if err != nil {
			return nil, err
		}
		service := tc.Service
		return func(ctx context.Context) sked.Result {
			if err := a.applyUnit(ctx, log, op, service, timeout); err != nil {
				a.alertFailure(ctx, tc.Name, string(op)+" "+unitctl.UnitName(service), err)
			}
			return res
		}, nil

	case config.ActionNotify:
		if a.notifier == nil {
			return nil, errors.New("notify action without an enabled notifier")
		}
		msg := tc.Message
		return func(ctx context.Context) sked.Result {
			a.send(ctx, log, notifier.Notification{Text: msg})
			return res
		}, nil

	default:
		return nil, errors.New("unknown action " + tc.Action)
	}
}

func (a *App) runCommand(ctx context.Context, log logx.Logger, dir string, argv []string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := a.runner.Run(ctx, dir, argv)
	took := time.Since(start)

	fields := []logx.Field{
		logx.String("cmd", argv[0]),
		logx.Duration("took", took),
	}
	if s := trimOutput(out); s != "" {
		fields = append(fields, logx.String("output", s))
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			fields = append(fields, logx.Duration("timeout", timeout))
		}
		log.Error("command failed", append(fields, logx.Err(err))...)
		return err
	}
	log.Info("command finished", fields...)
	return nil
}

func (a *App) applyUnit(ctx context.Context, log logx.Logger, op unitctl.Op, service string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := a.units.Apply(ctx, op, service)
	fields := []logx.Field{
		logx.String("unit", out.Unit),
		logx.String("op", string(op)),
		logx.Duration("took", time.Since(start)),
	}
	if err != nil {
		log.Error("unit operation failed", append(fields, logx.Err(err))...)
		return err
	}
	if out.Skipped {
		log.Debug("unit healthy; nothing to recover", append(fields, logx.String("state", out.Before.Active))...)
		return nil
	}
	if out.Before.Active != "" {
		fields = append(fields, logx.String("was", out.Before.Active))
	}
	log.Info("unit operation finished", append(fields, logx.String("result", out.Result))...)
	return nil
}

func trimOutput(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= maxOutputLog {
		return s
	}
	cut := maxOutputLog
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
