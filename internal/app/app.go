// Package app wires the skedd daemon: config, logging, run history and the
// scheduling engine, all driven by one supervisor.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"

	"sked/internal/config"
	"sked/internal/notifier"
	"sked/internal/observability/debugsrv"
	"sked/internal/runtime/supervisor"
	"sked/internal/storage"
	logx "sked/pkg/logx"
	"sked/pkg/sked"
	"sked/pkg/unitctl"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	store storage.Store
	rec   *storage.Recorder
	debug *debugsrv.Service

	notifier  *notifier.Service
	sender    notifier.Sender
	targets   []notifier.Target
	onFailure bool

	clock         sked.Clock
	runner        Runner
	units         Units
	notify        func(state string)
	levelOverride string

	mu     sync.Mutex
	sup    *supervisor.Supervisor
	engine *sked.Engine
	ids    map[string]sked.ID

	stopOnce sync.Once
	stopErr  error
}

type Option func(*App)

// WithClock drives the engine from c instead of the wall clock.
func WithClock(c sked.Clock) Option { return func(a *App) { a.clock = c } }

// WithRunner replaces the command runner used by exec actions.
func WithRunner(r Runner) Option { return func(a *App) { a.runner = r } }

// WithUnits replaces the systemd controller used by systemd actions.
func WithUnits(u Units) Option { return func(a *App) { a.units = u } }

// WithNotifier replaces the service manager notification hook (sd_notify).
func WithNotifier(fn func(state string)) Option { return func(a *App) { a.notify = fn } }

// WithSender replaces the Telegram sender used when notify is enabled.
func WithSender(s notifier.Sender) Option { return func(a *App) { a.sender = s } }

// WithLogLevel pins the log level regardless of the config file.
func WithLogLevel(level string) Option {
	return func(a *App) { a.levelOverride = strings.TrimSpace(level) }
}

// New loads the config and opens logging and storage. Nothing is scheduled
// until Start.
func New(cfgPath string, opts ...Option) (*App, error) {
	a := &App{
		cfgm:   config.NewManager(cfgPath),
		clock:  sked.SystemClock{},
		runner: execRunner{},
		units:  unitctl.New(),
		notify: sdNotify,
	}
	for _, o := range opts {
		o(a)
	}

	cfg, err := a.cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(a.logConfig(cfg))
	a.logs = logSvc
	a.log = log.With(logx.String("comp", "app"))
	a.cfgm.SetLogger(log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validateReload)

	sc, queue, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.store = st
		a.rec = storage.NewRecorder(st, queue, log.With(logx.String("comp", "recorder")))
		a.log.Info("run history enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	if cfg.NotifyEnabled() {
		if err := a.openNotifier(cfg.Notify, log.With(logx.String("comp", "notifier"))); err != nil {
			if a.store != nil {
				_ = a.store.Close()
			}
			_ = logSvc.Close()
			return nil, err
		}
	}

	src := debugsrv.Sources{Status: func() any { return a.Status() }}
	if a.store != nil {
		src.Runs = a.recentRuns
	}
	a.debug = debugsrv.New(src, log.With(logx.String("comp", "debug")))
	return a, nil
}

func (a *App) openNotifier(nc *config.NotifyConfig, log logx.Logger) error {
	pc, targets, err := mapNotifyConfig(nc)
	if err != nil {
		return err
	}
	if a.sender == nil {
		tg, err := notifier.NewTelegram(nc.Telegram.ResolveToken(), nc.Telegram.APIURL)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		a.sender = tg
	}
	a.notifier = notifier.New(pc, a.sender, log)
	a.targets = targets
	a.onFailure = nc.OnFailure
	a.logs.SetForwarder(a.forwardLog)
	a.log.Info("notifications enabled", logx.Int("chats", len(targets)), logx.Bool("on_failure", nc.OnFailure))
	return nil
}

// validateReload rejects a reloaded file whose sections the app could not
// map, so a bad edit never replaces the committed config.
func validateReload(_ context.Context, cfg *config.Config) error {
	if _, _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapDebugConfig(cfg); err != nil {
		return err
	}
	if cfg.NotifyEnabled() {
		if _, _, err := mapNotifyConfig(cfg.Notify); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) logConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging.LogConfig()
	if a.levelOverride != "" {
		lc.Level = a.levelOverride
	}
	return lc
}

// Start builds the engine from the committed config and starts the
// background goroutines under a supervisor derived from ctx.
func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()

	lag, lagOn, err := cfg.Engine.LagThresholdValue()
	if err != nil {
		return err
	}
	if !lagOn {
		lag = -1
	}

	sup := supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	opts := []sked.Option{
		sked.WithClock(a.clock),
		sked.WithLogger(a.log.With(logx.String("comp", "engine"))),
		sked.WithContext(sup.Context()),
		sked.WithLagThreshold(lag),
		sked.WithPanicPropagation(cfg.Engine.PropagatePanics),
	}
	if a.rec != nil {
		opts = append(opts, sked.WithObserver(a.rec))
	}
	if a.notifier != nil && a.onFailure {
		opts = append(opts, sked.WithObserver(sked.ObserverFunc(a.alertPanic)))
	}

	cfgs := make([]sked.Config, 0, len(cfg.Tasks))
	names := make([]string, 0, len(cfg.Tasks))
	for _, tc := range cfg.Tasks {
		if !tc.IsEnabled() {
			a.log.Info("task disabled", logx.String("task", tc.Name))
			continue
		}
		sc, err := a.taskConfig(tc)
		if err != nil {
			sup.Cancel()
			return fmt.Errorf("task %s: %w", tc.Name, err)
		}
		cfgs = append(cfgs, sc)
		names = append(names, tc.Name)
	}

	if a.rec != nil {
		sup.Go("storage.recorder", a.rec.Run)
	}
	eng, err := sked.NewWith(cfgs, opts...)
	if err != nil {
		sup.Cancel()
		return err
	}
	if a.notifier != nil {
		// Detached from the supervisor so queued alerts drain after the
		// engine stops.
		a.notifier.Start(context.WithoutCancel(ctx))
	}

	// NewWith assigns IDs in submission order starting at 1.
	ids := make(map[string]sked.ID, len(names))
	for i, n := range names {
		ids[n] = sked.ID(i + 1)
	}

	a.mu.Lock()
	a.sup = sup
	a.engine = eng
	a.ids = ids
	a.mu.Unlock()

	a.applyDebug(ctx, cfg)

	sub := a.cfgm.Subscribe(8)
	sup.GoRestart("config.watch", a.cfgm.Watch)
	sup.Go("config.apply", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.applyLoop(c, sub, cfg)
		return nil
	})

	for _, ti := range eng.Snapshot().Tasks {
		a.log.Info("task scheduled",
			logx.String("task", ti.Name),
			logx.String("period", ti.Period.String()),
			logx.Time("next", ti.Next),
		)
	}
	a.log.Info("engine started", logx.Int("tasks", eng.Len()))
	return nil
}

// applyLoop applies live-reloadable sections and reports the rest.
func (a *App) applyLoop(ctx context.Context, sub <-chan *config.Config, applied *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts to the newest config.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					drained = true
				}
			}
			a.apply(applied, next)
			applied = next
		}
	}
}

func (a *App) apply(prev, next *config.Config) {
	ch := config.SummarizeChange(prev, next)
	if ch.Empty() {
		a.log.Debug("config reload received; no effective changes")
		return
	}
	if ch.Has("logging") {
		a.logs.Apply(a.logConfig(next))
		a.log.Info("logging reconfigured", logx.String("level", a.logs.Config().Level))
	}
	if ch.Has("debug") {
		a.applyDebug(context.Background(), next)
	}
	if ch.NeedsRestart() {
		a.log.Warn("config change takes effect after restart", ch.Fields()...)
		return
	}
	a.log.Debug("config change applied", ch.Fields()...)
}

// applyDebug reconciles the debug listener with cfg. Failures are logged and
// never stop the daemon.
func (a *App) applyDebug(ctx context.Context, cfg *config.Config) {
	dc, err := mapDebugConfig(cfg)
	if err == nil {
		err = a.debug.Reconfigure(ctx, dc)
	}
	if err != nil {
		a.log.Warn("debug listener unavailable", logx.Err(err))
	}
}

// DebugAddr returns the debug listener address, or "" when it is off.
func (a *App) DebugAddr() string { return a.debug.Addr() }

// Run starts the app, reports readiness, and blocks until sd fires, ctx
// ends or a supervised goroutine fails. It then stops within the configured
// shutdown timeout.
func (a *App) Run(ctx context.Context, sd *sked.Shutdown) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	a.notify(daemon.SdNotifyReady)

	var sdDone <-chan struct{}
	if sd != nil {
		sdDone = sd.Done()
	}
	select {
	case <-sdDone:
		a.log.Info("shutdown requested")
	case <-ctx.Done():
	case <-a.Done():
	}
	a.notify(daemon.SdNotifyStopping)

	timeout, err := a.cfgm.Get().Engine.ShutdownTimeoutValue()
	if err != nil {
		timeout = config.DefaultShutdownTimeout
	}
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return a.Stop(sctx)
}

// Stop closes the engine, drains run history and releases resources. Only
// the first call does work.
func (a *App) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() { a.stopErr = a.stop(ctx) })
	return a.stopErr
}

func (a *App) stop(ctx context.Context) error {
	a.mu.Lock()
	eng, sup := a.engine, a.sup
	a.mu.Unlock()

	var errs []error
	if err := a.debug.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("debug stop: %w", err))
	}
	if eng != nil {
		done := make(chan struct{})
		go func() {
			_ = eng.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("engine close: %w", ctx.Err()))
		}
	}
	if a.notifier != nil {
		if err := a.notifier.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("notifier stop: %w", err))
		}
	}
	if sup != nil {
		if err := sup.Stop(ctx); err != nil && ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("supervisor stop: %w", err))
		}
		if err := sup.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if err := a.units.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close systemd: %w", err))
	}
	a.log.Info("stopped")
	if err := a.logs.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	a.mu.Lock()
	sup := a.sup
	a.mu.Unlock()
	if sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	a.mu.Lock()
	sup := a.sup
	a.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Err()
}

// Engine returns the running engine, or nil before Start.
func (a *App) Engine() *sked.Engine {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine
}

// TaskID resolves a configured task name to its engine ID.
func (a *App) TaskID(name string) (sked.ID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.ids[name]
	return id, ok
}

// Store returns the run history store, or nil when storage is disabled.
func (a *App) Store() storage.Store { return a.store }

func sdNotify(state string) {
	_, _ = daemon.SdNotify(false, state)
}
