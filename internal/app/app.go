// Package app wires the courier daemon together: config, logging, the
// receipt database, the queue store, the Telegram gateway and the dispatch
// loop, all supervised under one context.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdnotify "github.com/coreos/go-systemd/v22/daemon"

	"tgcourier/internal/config"
	"tgcourier/internal/dispatch"
	"tgcourier/internal/gateway"
	"tgcourier/internal/maintenance"
	"tgcourier/internal/queue"
	"tgcourier/internal/receipt"
	"tgcourier/internal/runtime/supervisor"
	logx "tgcourier/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	receipts receipt.Store
	store    *queue.DirStore
	gw       gateway.Gateway
	daemon   *dispatch.Daemon
	maint    *maintenance.Service

	queueWatch bool
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	busyTimeout, err := config.DurationOr("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	receipts, err := receipt.Open(receipt.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "receipts")))
	if err != nil {
		return nil, err
	}

	store, err := queue.Open(cfg.Queue.Dir, log.With(logx.String("comp", "queue")))
	if err != nil {
		_ = receipts.Close()
		return nil, err
	}

	callTimeout, err := config.DurationOr("telegram.call_timeout", cfg.Telegram.CallTimeout, 60*time.Second)
	if err != nil {
		_ = receipts.Close()
		return nil, err
	}
	tg, err := gateway.NewTelegram(gateway.Config{
		Token:       cfg.Telegram.Token,
		APIURL:      cfg.Telegram.APIURL,
		CallTimeout: callTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = receipts.Close()
		return nil, err
	}

	var gw gateway.Gateway = tg
	if cfg.Dispatch.RetryMax > 0 {
		retryBase, err := config.DurationOr("dispatch.retry_base", cfg.Dispatch.RetryBase, 200*time.Millisecond)
		if err != nil {
			_ = receipts.Close()
			return nil, err
		}
		gw = gateway.WithRetry(gw, gateway.RetryConfig{
			Max:  cfg.Dispatch.RetryMax,
			Base: retryBase,
		}, log.With(logx.String("comp", "retry")))
	}

	dcfg, err := dispatchConfig(cfg)
	if err != nil {
		_ = receipts.Close()
		return nil, err
	}
	d := dispatch.New(dcfg, store, receipts, gw, log.With(logx.String("comp", "dispatch")))

	var maint *maintenance.Service
	if mc := cfg.Maintenance; mc != nil && mc.Enabled {
		maxAge, err := config.DurationOr("maintenance.quarantine_max_age", mc.QuarantineMaxAge, 7*24*time.Hour)
		if err != nil {
			_ = receipts.Close()
			return nil, err
		}
		maint = maintenance.New(maintenance.Config{
			Enabled:          true,
			Cron:             mc.Cron,
			QuarantineMaxAge: maxAge,
		}, store, receipts, log.With(logx.String("comp", "maintenance")))
	}

	return &App{
		cfgPath:    cfgPath,
		cfgm:       cfgm,
		log:        log,
		logs:       logSvc,
		receipts:   receipts,
		store:      store,
		gw:         gw,
		daemon:     d,
		maint:      maint,
		queueWatch: cfg.Queue.Watch,
	}, nil
}

// Done is closed when the supervisor context ends (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validate)

	a.sup.Go("dispatch.run", func(c context.Context) error {
		return a.daemon.Run(c)
	})

	if a.queueWatch {
		a.sup.Go0("queue.watch", func(c context.Context) {
			a.store.Watch(c, a.daemon.Nudge())
		})
	}

	if a.maint != nil && a.maint.Enabled() {
		if err := a.maint.Start(a.sup.Context()); err != nil {
			return err
		}
	}

	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	// hot reload fan-out: logging and dispatch pacing can change live;
	// queue dir, storage path and telegram token need a restart.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(newCfg)
			}
		}
	})

	a.notifySystemd()

	a.log.Info("courier started",
		logx.String("config", a.cfgPath),
		logx.Bool("queue_watch", a.queueWatch),
		logx.Bool("maintenance", a.maint != nil))
	return nil
}

func (a *App) applyReload(cfg *config.Config) {
	if cfg == nil {
		return
	}

	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	dcfg, err := dispatchConfig(cfg)
	if err != nil {
		// validator should have rejected this; keep the old pacing
		a.log.Warn("dispatch config not applied", logx.Err(err))
		return
	}
	a.daemon.Apply(dcfg)
	a.log.Info("config applied", logx.String("level", cfg.Logging.Level))
}

// notifySystemd sends READY=1 and keeps the watchdog fed when the process
// runs under systemd with Type=notify. A no-op everywhere else.
func (a *App) notifySystemd() {
	sent, err := sdnotify.SdNotify(false, sdnotify.SdNotifyReady)
	if err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
		return
	}
	if !sent {
		return
	}

	interval, err := sdnotify.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				_, _ = sdnotify.SdNotify(false, sdnotify.SdNotifyWatchdog)
			}
		}
	})
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = sdnotify.SdNotify(false, sdnotify.SdNotifyStopping)

	if a.maint != nil {
		a.maint.Stop(ctx)
	}

	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}

	if cerr := a.receipts.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}

func dispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	poll, err := config.DurationOr("queue.poll_interval", cfg.Queue.PollInterval, 2*time.Second)
	if err != nil {
		return dispatch.Config{}, err
	}
	send, err := config.DurationOr("dispatch.send_interval", cfg.Dispatch.SendInterval, 3*time.Second)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		PollInterval: poll,
		SendInterval: send,
	}, nil
}

func validate(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if strings.TrimSpace(cfg.Queue.Dir) == "" {
		return fmt.Errorf("queue.dir is required")
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	if cfg.Dispatch.RetryMax < 0 {
		return fmt.Errorf("dispatch.retry_max must be >= 0")
	}
	for _, f := range []struct{ path, raw string }{
		{"telegram.call_timeout", cfg.Telegram.CallTimeout},
		{"queue.poll_interval", cfg.Queue.PollInterval},
		{"dispatch.send_interval", cfg.Dispatch.SendInterval},
		{"dispatch.retry_base", cfg.Dispatch.RetryBase},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
	} {
		if _, err := config.Duration(f.path, f.raw); err != nil {
			return err
		}
	}
	if mc := cfg.Maintenance; mc != nil {
		if _, err := config.Duration("maintenance.quarantine_max_age", mc.QuarantineMaxAge); err != nil {
			return err
		}
	}
	return nil
}
