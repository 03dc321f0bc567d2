package actuator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zackaholic/VHS-Coffeeman/internal/faults"
	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
)

// Motion is the subset of the motion controller client the driver needs.
type Motion interface {
	Move(ctx context.Context, distanceMM, feedRate float64) error
	WaitForCompletion(ctx context.Context, timeout time.Duration) error
	ResetPosition(ctx context.Context) error
	SoftReset() error
}

// Switcher controls a bank of enable lines. gpio.OutputLines satisfies it.
type Switcher interface {
	Set(index int, active bool) error
	SetAll(active bool) error
	Count() int
}

// Limits holds the dispense validation and scaling parameters.
type Limits struct {
	// MMPerOunce converts a requested volume to axis travel.
	MMPerOunce float64
	// MinVolumeOunces and MaxVolumeOunces bound a single dispense.
	MinVolumeOunces float64
	MaxVolumeOunces float64
	// FeedRate is the axis speed for dispense moves.
	FeedRate float64
}

// Driver sequences pump enables against motion controller moves.
type Driver struct {
	motion Motion
	pumps  Switcher
	limits Limits
	logger *slog.Logger
}

// NewDriver builds a Driver. Zero limit fields fall back to the install's
// standard values.
func NewDriver(motion Motion, pumps Switcher, limits Limits, logger *slog.Logger) *Driver {
	if limits.MMPerOunce <= 0 {
		limits.MMPerOunce = 100
	}
	if limits.MinVolumeOunces <= 0 {
		limits.MinVolumeOunces = 0.1
	}
	if limits.MaxVolumeOunces <= 0 {
		limits.MaxVolumeOunces = 10
	}
	if limits.FeedRate <= 0 {
		limits.FeedRate = 2000
	}
	return &Driver{
		motion: motion,
		pumps:  pumps,
		limits: limits,
		logger: logging.NewComponentLogger(logger, "actuator"),
	}
}

// ChannelCount reports how many pump channels are wired.
func (d *Driver) ChannelCount() int {
	return d.pumps.Count()
}

// Dispense pours one measured volume through one channel. The channel is
// disabled before Dispense returns regardless of outcome, and the axis is
// rezeroed after a successful move.
func (d *Driver) Dispense(ctx context.Context, channel int, volumeOunces float64) error {
	if err := d.validateChannel(channel); err != nil {
		return err
	}
	if volumeOunces < d.limits.MinVolumeOunces || volumeOunces > d.limits.MaxVolumeOunces {
		return faults.Wrap(faults.ErrInvalidVolume, "actuator", "dispense",
			fmt.Sprintf("volume %.2foz outside [%.2f, %.2f]", volumeOunces, d.limits.MinVolumeOunces, d.limits.MaxVolumeOunces), nil)
	}

	distance := volumeOunces * d.limits.MMPerOunce
	d.logger.Info("dispensing",
		logging.Int(logging.FieldChannel, channel),
		logging.Float64("volume_oz", volumeOunces),
		logging.Float64("distance_mm", distance))

	if err := d.pumps.Set(channel, true); err != nil {
		return faults.Wrap(faults.ErrMotionCommand, "actuator", "dispense", "enable pump", err)
	}
	defer d.disable(channel)

	if err := d.motion.Move(ctx, distance, d.limits.FeedRate); err != nil {
		return err
	}
	if err := d.motion.WaitForCompletion(ctx, 0); err != nil {
		return err
	}

	if err := d.motion.ResetPosition(ctx); err != nil {
		// Position drift is recoverable; the next G92 rezeroes it.
		logging.WarnWithContext(d.logger, "position reset failed after dispense", "motion_reset_failed",
			logging.Int(logging.FieldChannel, channel),
			logging.Error(err))
	}
	return nil
}

// Run moves the axis through an arbitrary distance with one channel enabled.
// Used by prime and clean maintenance operations; distance may be negative.
func (d *Driver) Run(ctx context.Context, channel int, distanceMM float64) error {
	if err := d.validateChannel(channel); err != nil {
		return err
	}
	d.logger.Info("running channel",
		logging.Int(logging.FieldChannel, channel),
		logging.Float64("distance_mm", distanceMM))

	if err := d.pumps.Set(channel, true); err != nil {
		return faults.Wrap(faults.ErrMotionCommand, "actuator", "run", "enable pump", err)
	}
	defer d.disable(channel)

	if err := d.motion.Move(ctx, distanceMM, d.limits.FeedRate); err != nil {
		return err
	}
	if err := d.motion.WaitForCompletion(ctx, 0); err != nil {
		return err
	}

	if err := d.motion.ResetPosition(ctx); err != nil {
		logging.WarnWithContext(d.logger, "position reset failed after run", "motion_reset_failed",
			logging.Int(logging.FieldChannel, channel),
			logging.Error(err))
	}
	return nil
}

// DisableAll forces every channel off and halts any in-flight move. Safe to
// call repeatedly; this is the emergency stop path.
func (d *Driver) DisableAll() {
	if err := d.motion.SoftReset(); err != nil {
		logging.WarnWithContext(d.logger, "soft reset failed during disable-all", "motion_reset_failed",
			logging.Error(err))
	}
	if err := d.pumps.SetAll(false); err != nil {
		logging.ErrorWithContext(d.logger, "failed to disable pump bank", "pump_disable_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "pumps may remain energized; cut power manually"))
	}
}

func (d *Driver) validateChannel(channel int) error {
	if channel < 0 || channel >= d.pumps.Count() {
		return faults.Wrap(faults.ErrInvalidChannel, "actuator", "validate",
			fmt.Sprintf("channel %d outside [0, %d)", channel, d.pumps.Count()), nil)
	}
	return nil
}

func (d *Driver) disable(channel int) {
	if err := d.pumps.Set(channel, false); err != nil {
		logging.ErrorWithContext(d.logger, "failed to disable pump channel", "pump_disable_failed",
			logging.Int(logging.FieldChannel, channel),
			logging.Error(err),
			logging.String(logging.FieldImpact, "channel may remain energized; cut power manually"))
	}
}
