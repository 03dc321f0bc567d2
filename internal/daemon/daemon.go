package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/zackaholic/VHS-Coffeeman/internal/config"
	"github.com/zackaholic/VHS-Coffeeman/internal/deps"
	"github.com/zackaholic/VHS-Coffeeman/internal/journal"
	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
	"github.com/zackaholic/VHS-Coffeeman/internal/notifications"
	"github.com/zackaholic/VHS-Coffeeman/internal/orchestrator"
	"github.com/zackaholic/VHS-Coffeeman/internal/recipes"
)

// LockFileName is the single-instance lock, kept in the log directory.
const LockFileName = "coffeemand.lock"

// Machine is the orchestrator surface the daemon exposes over IPC.
type Machine interface {
	Start(ctx context.Context)
	Stop()
	Status() orchestrator.Status
	Pour(ctx context.Context, tag string) error
	Reset(ctx context.Context) error
	Prime(ctx context.Context, channel int) error
	Clean(ctx context.Context, channel int) error
	RunPump(ctx context.Context, channel int, distanceMM float64) error
}

// SensorRunner is the poller lifecycle the daemon drives.
type SensorRunner interface {
	Start(ctx context.Context)
	Stop()
}

// RecipeLister is the recipe library surface exposed over IPC.
type RecipeLister interface {
	List() ([]recipes.Recipe, error)
	Reload() (int, error)
}

// Daemon coordinates the machine components and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	machine  Machine
	poller   SensorRunner
	library  RecipeLister
	store    *journal.Store
	notifier notifications.Service
	monitor  *serialMonitor
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Machine      orchestrator.Status
	Journal      journal.Stats
	JournalPath  string
	LockFilePath string
	Devices      []deps.Status
}

// Options bundles the daemon's collaborators.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	Machine  Machine
	Poller   SensorRunner
	Library  RecipeLister
	Store    *journal.Store
	Notifier notifications.Service
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Logger == nil || opts.Machine == nil || opts.Poller == nil || opts.Library == nil {
		return nil, errors.New("daemon requires config, logger, machine, poller, and recipe library")
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.NewService(opts.Config, opts.Logger)
	}

	lockPath := filepath.Join(opts.Config.Paths.LogDir, LockFileName)
	d := &Daemon{
		cfg:      opts.Config,
		logger:   opts.Logger,
		machine:  opts.Machine,
		poller:   opts.Poller,
		library:  opts.Library,
		store:    opts.Store,
		notifier: opts.Notifier,
		logPath:  filepath.Join(opts.Config.Paths.LogDir, "coffeeman.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.monitor = newSerialMonitor(opts.Config, opts.Logger, opts.Notifier)
	return d, nil
}

// Start acquires the daemon lock and launches the poller, the machine, and
// the serial hotplug monitor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another coffeeman daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.poller.Start(runCtx)
	d.machine.Start(runCtx)
	if err := d.monitor.Start(runCtx); err != nil {
		// Hotplug awareness is best-effort; the machine runs without it.
		logging.WarnWithContext(d.logger, "serial hotplug monitor unavailable", "serial_monitor_failed",
			logging.Error(err))
	}

	d.running.Store(true)
	d.notifier.NotifyDaemonStarted()
	d.logger.Info("coffeeman daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops the machine and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.monitor.Stop()
	d.machine.Stop()
	d.poller.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err))
	}
	d.running.Store(false)
	d.notifier.NotifyDaemonStopped()
	d.logger.Info("coffeeman daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		Machine:      d.machine.Status(),
		JournalPath:  d.cfg.JournalPath(),
		LockFilePath: d.lockPath,
		Devices:      deps.Resolve(d.cfg),
	}
	if d.store != nil {
		if stats, err := d.store.Stats(ctx); err == nil {
			status.Journal = stats
		}
	}
	return status
}

// Pour runs a cycle for tag as if its tape had been inserted.
func (d *Daemon) Pour(ctx context.Context, tag string) error {
	return d.machine.Pour(ctx, tag)
}

// Reset clears the machine's error state.
func (d *Daemon) Reset(ctx context.Context) error {
	return d.machine.Reset(ctx)
}

// Prime fills one channel's line.
func (d *Daemon) Prime(ctx context.Context, channel int) error {
	return d.machine.Prime(ctx, channel)
}

// Clean flushes one channel.
func (d *Daemon) Clean(ctx context.Context, channel int) error {
	return d.machine.Clean(ctx, channel)
}

// RunPump drives one channel through an arbitrary distance.
func (d *Daemon) RunPump(ctx context.Context, channel int, distanceMM float64) error {
	return d.machine.RunPump(ctx, channel, distanceMM)
}

// Recipes lists the loaded recipe library.
func (d *Daemon) Recipes() ([]recipes.Recipe, error) {
	return d.library.List()
}

// ReloadRecipes rescans the recipe directory immediately.
func (d *Daemon) ReloadRecipes() (int, error) {
	return d.library.Reload()
}

// History returns recent journal entries, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]journal.Entry, error) {
	if d.store == nil {
		return nil, errors.New("journal unavailable")
	}
	return d.store.List(ctx, limit)
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}
