package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/runnerr0/dwell/internal/browser"
	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/daemon"
	"github.com/runnerr0/dwell/internal/logfields"
	"github.com/runnerr0/dwell/internal/metrics"
	"github.com/runnerr0/dwell/internal/tracker"
)

const shutdownTimeout = 5 * time.Second

// Execute implements the go-flags Commander interface for RunCommand.
func (c *RunCommand) Execute(args []string) error {
	cfg, cfgPath, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	c.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := newLogger(cfg.Logging, c.globals.Verbose)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.serve(ctx, cfg, cfgPath, logger)
}

func (c *RunCommand) applyOverrides(cfg *config.Config) {
	if c.Host != "" {
		cfg.Daemon.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Daemon.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
}

// serve runs the daemon until ctx is canceled or the HTTP server fails.
// On the way out it stops intake first, then lets the tracker drain its
// queue and commit the open session.
func (c *RunCommand) serve(ctx context.Context, cfg *config.Config, cfgPath string, logger *slog.Logger) error {
	store, db, dbPath, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()
	logger.Info("Ledger opened", logfields.Path(dbPath))

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	resolver := tracker.NewResolver(cfg.Tracking.IgnoredSchemes, cfg.Capture.Denylist())
	state := browser.NewState()
	trk := tracker.New(store, state, resolver,
		tracker.WithRecorder(recorder),
		tracker.WithLogger(logger),
		tracker.WithAlarmName(cfg.Tracking.AlarmName))
	queue := tracker.NewQueue(trk, cfg.Tracking.QueueSize)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		queue.Run(runCtx)
	}()

	sched, err := tracker.NewScheduler(queue, cfg.Tracking.AlarmName, nil, tracker.WithSchedulerLogger(logger))
	if err != nil {
		cancel()
		<-queueDone
		return err
	}
	if err := sched.Start(runCtx, cfg.Tracking.FlushInterval()); err != nil {
		cancel()
		<-queueDone
		return err
	}

	srv := daemon.NewServer(state, queue, trk, store, settingsFrom(cfg), daemon.Options{
		Addr:           cfg.Daemon.Address(),
		AuthToken:      cfg.Daemon.AuthToken,
		MaxRequestSize: int64(cfg.Daemon.MaxRequestSize),
		Version:        c.version,
		Metrics:        metrics.HTTPHandler(reg),
		Logger:         logger,
	})

	live := &liveConfig{resolver: resolver, tracker: trk, scheduler: sched, server: srv, logger: logger}
	watcher, err := config.NewWatcher(cfgPath, live.apply, config.WithWatcherLogger(logger))
	if err == nil {
		if err = watcher.Start(runCtx); err != nil {
			_ = watcher.Stop()
		}
	}
	if err != nil {
		logger.Warn("Config hot reload disabled", logfields.Error(err))
		watcher = nil
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("daemon server: %w", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("HTTP shutdown failed", logfields.Error(err))
	}
	if err := sched.Stop(); err != nil {
		logger.Warn("Scheduler shutdown failed", logfields.Error(err))
	}
	if watcher != nil {
		_ = watcher.Stop()
	}

	cancel()
	<-queueDone
	return runErr
}

// liveConfig is the part of a running daemon that follows config edits.
type liveConfig struct {
	resolver  *tracker.Resolver
	tracker   *tracker.Tracker
	scheduler *tracker.Scheduler
	server    *daemon.Server
	logger    *slog.Logger
}

// apply hands a reloaded configuration to the running components. The
// tracker and scheduler switch alarms before the server advertises the new
// settings.
func (l *liveConfig) apply(next *config.Config) {
	l.resolver.Update(next.Tracking.IgnoredSchemes, next.Capture.Denylist())

	settings := settingsFrom(next)
	if err := l.scheduler.Update(next.Tracking.FlushInterval(), next.Tracking.AlarmName); err != nil {
		l.logger.Warn("Flush alarm not rescheduled", logfields.Error(err))
		settings.FlushIntervalSeconds = int(l.scheduler.Interval() / time.Second)
	}
	settings.AlarmName = l.scheduler.Name()
	l.tracker.SetAlarmName(settings.AlarmName)
	l.server.SetSettings(settings)

	l.logger.Info("Tracking settings applied",
		logfields.Alarm(settings.AlarmName),
		logfields.Duration(l.scheduler.Interval()))
}

func settingsFrom(cfg *config.Config) daemon.Settings {
	return daemon.Settings{
		IdleThresholdSeconds: cfg.Tracking.IdleThresholdSeconds,
		FlushIntervalSeconds: cfg.Tracking.FlushIntervalSeconds,
		AlarmName:            cfg.Tracking.AlarmName,
	}
}
