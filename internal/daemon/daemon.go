package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"letterpod/internal/api"
	"letterpod/internal/config"
	"letterpod/internal/logging"
	"letterpod/internal/workflow"
)

// Options configures the daemon.
type Options struct {
	Schedule   string
	Location   *time.Location
	LockPath   string
	APIEnabled bool
	APIBind    string
	APIToken   string
}

// OptionsFromConfig derives daemon options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	loc := time.Local
	if cfg.Schedule.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Schedule.Timezone); err == nil {
			loc = l
		}
	}
	return Options{
		Schedule:   cfg.Schedule.Cron,
		Location:   loc,
		LockPath:   filepath.Join(cfg.Logging.Dir, "letterpod-serve.lock"),
		APIEnabled: cfg.API.Enabled,
		APIBind:    cfg.API.Bind,
		APIToken:   cfg.API.Token,
	}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	NextRun      time.Time
	LockFilePath string
	APIAddress   string
}

// Daemon schedules runs and serves the API.
type Daemon struct {
	opts   Options
	runner api.Runner
	logger *slog.Logger
	lock   *flock.Flock

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	server  *api.Server
	cancel  context.CancelFunc
	running atomic.Bool
}

// New constructs a daemon around runner.
func New(opts Options, runner api.Runner, logger *slog.Logger) (*Daemon, error) {
	if runner == nil {
		return nil, errors.New("daemon requires a workflow runner")
	}
	if opts.LockPath == "" {
		return nil, errors.New("daemon requires a lock path")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Daemon{
		opts:   opts,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "daemon"),
		lock:   flock.New(opts.LockPath),
	}, nil
}

// Start acquires the instance lock, registers the schedule, and starts the
// API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.opts.LockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another letterpod daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	scheduler := cron.New(cron.WithLocation(d.opts.Location))
	entry, err := scheduler.AddFunc(d.opts.Schedule, func() { d.tick(runCtx) })
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("add cron job: %w", err)
	}

	var server *api.Server
	if d.opts.APIEnabled {
		router := api.NewRouter(d.runner, api.Options{
			Token:       d.opts.APIToken,
			BaseContext: runCtx,
			NextRun:     d.NextRun,
		}, d.logger)
		server = api.NewServer(d.opts.APIBind, router, d.logger)
		if err := server.Start(runCtx); err != nil {
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}

	d.cron = scheduler
	d.entry = entry
	d.server = server
	d.cancel = cancel
	scheduler.Start()
	d.running.Store(true)

	d.logger.Info("letterpod daemon started",
		logging.String("lock", d.opts.LockPath),
		logging.String("schedule", d.opts.Schedule),
		logging.String("next_run", scheduler.Entry(entry).Next.Format(time.RFC3339)),
	)
	return nil
}

// tick runs the pipeline for one scheduled firing.
func (d *Daemon) tick(ctx context.Context) {
	if d.runner.Busy() {
		logging.WarnWithContext(d.logger, "scheduled run skipped; a run is still active", "schedule_skipped",
			logging.String(logging.FieldErrorHint, "runs are taking longer than the schedule interval"),
			logging.String(logging.FieldImpact, "this period's newsletters are picked up by the next run"),
		)
		return
	}
	d.logger.Info("scheduled run triggered", logging.String(logging.FieldEventType, "schedule_fired"))
	if _, err := d.runner.Run(ctx, "schedule"); err != nil {
		d.logger.Info("scheduled run ended with error",
			logging.String(logging.FieldEventType, "schedule_run_failed"),
			logging.Error(err),
		)
	}
}

// Stop cancels any active run, stops the schedule and the API server, and
// releases the instance lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.cron != nil {
		stopped := d.cron.Stop()
		select {
		case <-stopped.Done():
		case <-time.After(30 * time.Second):
			d.logger.Warn("timed out waiting for the active run to stop")
		}
	}
	if d.server != nil {
		d.server.Stop()
		d.server = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("letterpod daemon stopped")
}

// NextRun is the next scheduled firing, zero when not running.
func (d *Daemon) NextRun() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cron == nil || !d.running.Load() {
		return time.Time{}
	}
	return d.cron.Entry(d.entry).Next
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		Workflow:     d.runner.Status(ctx),
		NextRun:      d.NextRun(),
		LockFilePath: d.opts.LockPath,
	}
	d.mu.Lock()
	if d.server != nil {
		status.APIAddress = d.server.Addr()
	}
	d.mu.Unlock()
	return status
}
