// Package daemonrun wires the daemon process together: it opens every piece
// of hardware, builds the machine, and serves IPC until a signal arrives.
// All device handles live and die with this process.
package daemonrun

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/zackaholic/VHS-Coffeeman/internal/actuator"
	"github.com/zackaholic/VHS-Coffeeman/internal/config"
	"github.com/zackaholic/VHS-Coffeeman/internal/daemon"
	"github.com/zackaholic/VHS-Coffeeman/internal/gpio"
	"github.com/zackaholic/VHS-Coffeeman/internal/i2c"
	"github.com/zackaholic/VHS-Coffeeman/internal/ipc"
	"github.com/zackaholic/VHS-Coffeeman/internal/journal"
	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
	"github.com/zackaholic/VHS-Coffeeman/internal/media"
	"github.com/zackaholic/VHS-Coffeeman/internal/motion"
	"github.com/zackaholic/VHS-Coffeeman/internal/notifications"
	"github.com/zackaholic/VHS-Coffeeman/internal/orchestrator"
	"github.com/zackaholic/VHS-Coffeeman/internal/recipes"
	"github.com/zackaholic/VHS-Coffeeman/internal/rfid"
	"github.com/zackaholic/VHS-Coffeeman/internal/sensors"
	"github.com/zackaholic/VHS-Coffeeman/internal/vcr"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	SocketPath  string
}

// Run starts the coffeeman daemon runtime loop. It fails fast when any
// configured device cannot be opened: a machine that cannot drive its pumps
// or read its sensors must not come up half-alive.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("coffeeman-%s.log", runID))

	logger, err := logging.New(logging.Options{
		Level:            opts.LogLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update coffeeman.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "coffeeman-*.log", logPath)
	pidPath := filepath.Join(cfg.Paths.LogDir, "coffeeman.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	hw, err := openHardware(cfg, logger)
	if err != nil {
		return err
	}
	defer hw.Close()

	store, err := journal.Open(cfg.JournalPath())
	if err != nil {
		logger.Error("open pour journal", logging.Error(err))
		return err
	}

	notifier := notifications.NewService(cfg, logger)

	driver := actuator.NewDriver(hw.motion, hw.pumps, actuator.Limits{
		MMPerOunce:      cfg.Pumps.MMPerOunce,
		MinVolumeOunces: cfg.Pumps.MinVolumeOunces,
		MaxVolumeOunces: cfg.Pumps.MaxVolumeOunces,
		FeedRate:        cfg.Motion.FeedRate,
	}, logger)

	poller := sensors.NewPoller(hw.reader, hw.cup, sensors.PollerOptions{
		Interval:         time.Duration(cfg.Sensors.PollIntervalMS) * time.Millisecond,
		CupThreshold:     uint16(cfg.Cup.Threshold),
		FailureThreshold: cfg.Cup.FailureThreshold,
	}, logger)

	library := recipes.NewLibrary(recipes.LibraryOptions{
		Dir:        cfg.Paths.RecipesDir,
		DefaultTag: cfg.Recipes.DefaultTag,
		CacheTTL:   time.Duration(cfg.Recipes.CacheTTLSeconds) * time.Second,
		Bounds: recipes.Bounds{
			ChannelCount:    cfg.ChannelCount(),
			MinVolumeOunces: cfg.Pumps.MinVolumeOunces,
			MaxVolumeOunces: cfg.Pumps.MaxVolumeOunces,
		},
	}, logger)

	player := media.NewPlayer(media.PlayerOptions{
		Dir:        cfg.Paths.MediaDir,
		Candidates: cfg.Media.Players,
		Extensions: cfg.Media.Extensions,
		StopGrace:  time.Duration(cfg.Media.StopGraceMS) * time.Millisecond,
	}, logger)

	transport := vcr.NewTransport(hw.buttons, time.Duration(cfg.VCR.PressMS)*time.Millisecond, logger)

	machine := orchestrator.New(orchestrator.Config{
		Actuators: driver,
		Recipes:   library,
		Media:     player,
		Tape:      transport,
		Sensors:   poller,
		Journal:   store,
		Notifier:  notifier,
		Sink:      orchestrator.LogStatusSink{Logger: logging.NewComponentLogger(logger, "indicator")},
		Options: orchestrator.Options{
			PrimeDistanceMM: cfg.Pumps.PrimeDistanceMM,
			CleanDistanceMM: cfg.Pumps.CleanDistanceMM,
		},
		Logger: logger,
	})

	d, err := daemon.New(daemon.Options{
		Config:   cfg,
		Logger:   logger,
		Machine:  machine,
		Poller:   poller,
		Library:  library,
		Store:    store,
		Notifier: notifier,
	})
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = filepath.Join(cfg.Paths.LogDir, "coffeeman.sock")
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check for another running instance and device permissions"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("coffeeman daemon shutting down")
	return nil
}

// hardware bundles every device handle the daemon owns.
type hardware struct {
	motion  *motion.Client
	pumps   *gpio.OutputLines
	buttons *gpio.OutputLines
	reader  *rfid.Reader
	cup     *i2c.Vcnl4010

	closers []io.Closer
}

// Close releases device handles in reverse open order.
func (h *hardware) Close() {
	for i := len(h.closers) - 1; i >= 0; i-- {
		_ = h.closers[i].Close()
	}
	h.closers = nil
}

func openHardware(cfg *config.Config, logger *slog.Logger) (*hardware, error) {
	hw := &hardware{}
	fail := func(err error) (*hardware, error) {
		hw.Close()
		return nil, err
	}

	port, err := motion.OpenSerial(cfg.Motion.SerialPort, cfg.Motion.BaudRate)
	if err != nil {
		return fail(fmt.Errorf("open motion controller: %w", err))
	}
	hw.closers = append(hw.closers, port)

	statusChip, err := gpio.Open(cfg.Motion.StatusChip)
	if err != nil {
		return fail(fmt.Errorf("open motion status chip: %w", err))
	}
	hw.closers = append(hw.closers, statusChip)

	statusLine, err := statusChip.RequestInputLine(cfg.Motion.StatusLine, "coffeeman-motion-status", false)
	if err != nil {
		return fail(fmt.Errorf("request motion status line: %w", err))
	}
	hw.closers = append(hw.closers, statusLine)

	hw.motion = motion.NewClient(port, motion.NewGPIOStatusLine(statusLine, cfg.Motion.BusyActiveLow), motion.Options{
		DefaultFeedRate: cfg.Motion.FeedRate,
		Timeout:         time.Duration(cfg.Motion.TimeoutSeconds) * time.Second,
		PollInterval:    time.Duration(cfg.Motion.PollIntervalMS) * time.Millisecond,
	}, logger)

	pumpChip, err := gpio.Open(cfg.Pumps.GPIOChip)
	if err != nil {
		return fail(fmt.Errorf("open pump gpio chip: %w", err))
	}
	hw.closers = append(hw.closers, pumpChip)

	hw.pumps, err = pumpChip.RequestOutputLines(cfg.Pumps.EnableLines, "coffeeman-pumps", cfg.Pumps.ActiveLow)
	if err != nil {
		return fail(fmt.Errorf("request pump enable lines: %w", err))
	}
	hw.closers = append(hw.closers, hw.pumps)

	vcrChip, err := gpio.Open(cfg.VCR.GPIOChip)
	if err != nil {
		return fail(fmt.Errorf("open vcr gpio chip: %w", err))
	}
	hw.closers = append(hw.closers, vcrChip)

	hw.buttons, err = vcrChip.RequestOutputLines([]int{cfg.VCR.PlayLine, cfg.VCR.EjectLine}, "coffeeman-vcr", false)
	if err != nil {
		return fail(fmt.Errorf("request vcr button lines: %w", err))
	}
	hw.closers = append(hw.closers, hw.buttons)

	cupDev, err := i2c.Open(cfg.Cup.I2CDevice, cfg.Cup.Address)
	if err != nil {
		return fail(fmt.Errorf("open cup sensor: %w", err))
	}
	hw.closers = append(hw.closers, cupDev)

	hw.cup, err = i2c.NewVcnl4010(cupDev)
	if err != nil {
		return fail(fmt.Errorf("init cup sensor: %w", err))
	}

	bus, err := rfid.OpenBus(cfg.RFID.SPIDevice, 0)
	if err != nil {
		return fail(fmt.Errorf("open tag reader bus: %w", err))
	}
	hw.closers = append(hw.closers, bus)

	var reset rfid.ResetLine
	if cfg.RFID.ResetChip != "" {
		resetChip, err := gpio.Open(cfg.RFID.ResetChip)
		if err != nil {
			return fail(fmt.Errorf("open tag reader reset chip: %w", err))
		}
		hw.closers = append(hw.closers, resetChip)

		resetLines, err := resetChip.RequestOutputLines([]int{cfg.RFID.ResetLine}, "coffeeman-rfid-reset", false)
		if err != nil {
			return fail(fmt.Errorf("request tag reader reset line: %w", err))
		}
		hw.closers = append(hw.closers, resetLines)
		reset = resetLines
	}

	hw.reader, err = rfid.NewReader(bus, reset)
	if err != nil {
		return fail(fmt.Errorf("init tag reader: %w", err))
	}

	return hw, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "coffeeman.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
