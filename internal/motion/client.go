package motion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/zackaholic/VHS-Coffeeman/internal/faults"
	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
)

const softResetByte = 0x18 // Ctrl-X: GRBL immediate soft reset

// errWaitBudget marks a wait phase that ran out its time budget.
var errWaitBudget = errors.New("wait budget exhausted")

// Options configures a Client.
type Options struct {
	// DefaultFeedRate applies when Move is called with a non-positive rate.
	DefaultFeedRate float64
	// Timeout bounds each phase budget of WaitForCompletion when the caller
	// passes zero.
	Timeout time.Duration
	// PollInterval is the status line sampling cadence.
	PollInterval time.Duration
}

// Client issues movement and reset commands and observes completion on the
// busy/idle status line. It is not safe for concurrent use; the actuator
// driver is its only caller and dispenses strictly sequentially.
type Client struct {
	port     Port
	status   StatusLine
	feedRate float64
	timeout  time.Duration
	poll     time.Duration
	logger   *slog.Logger
}

// NewClient builds a controller client over the given transport and status
// line.
func NewClient(port Port, status StatusLine, opts Options, logger *slog.Logger) *Client {
	feedRate := opts.DefaultFeedRate
	if feedRate <= 0 {
		feedRate = 2000
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	return &Client{
		port:     port,
		status:   status,
		feedRate: feedRate,
		timeout:  timeout,
		poll:     poll,
		logger:   logging.NewComponentLogger(logger, "motion"),
	}
}

// Timeout returns the per-phase wait budget.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Move transmits one linear move. Distance is signed millimeters (negative
// runs the axis in reverse); a non-positive feed rate selects the default.
// Move does not wait for completion.
func (c *Client) Move(ctx context.Context, distanceMM, feedRate float64) error {
	if err := ctx.Err(); err != nil {
		return faults.Wrap(faults.ErrMotionCommand, "motion", "move", "canceled", err)
	}
	if feedRate <= 0 {
		feedRate = c.feedRate
	}
	command := FormatMove(distanceMM, feedRate)
	c.logger.Debug("sending move", logging.String("command", command))
	return c.port.WriteLine(command)
}

// WaitForCompletion blocks until the controller has gone busy and returned
// to idle, or until the per-phase timeout expires. A zero timeout uses the
// configured default.
func (c *Client) WaitForCompletion(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.timeout
	}

	if err := c.awaitBusyState(ctx, true, timeout); err != nil {
		return c.wrapWaitError(err, "controller never reported busy; move may not have started")
	}
	if err := c.awaitBusyState(ctx, false, timeout); err != nil {
		return c.wrapWaitError(err, "controller never returned to idle")
	}
	return nil
}

// wrapWaitError keeps the fault taxonomy honest: only a blown wait budget is
// a motion timeout. Cancellation and status line read failures carry their
// own markers so the journal does not misattribute them.
func (c *Client) wrapWaitError(err error, timeoutMsg string) error {
	switch {
	case errors.Is(err, errWaitBudget):
		return faults.Wrap(faults.ErrMotionTimeout, "motion", "wait", timeoutMsg, err)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return faults.Wrap(faults.ErrMotionCommand, "motion", "wait", "canceled", err)
	default:
		return faults.Wrap(faults.ErrSensorRead, "motion", "wait", "status line read failed", err)
	}
}

// ResetPosition redefines the current position as absolute zero. Callers
// treat failure as best-effort: log it, do not fail the pour.
func (c *Client) ResetPosition(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return faults.Wrap(faults.ErrMotionCommand, "motion", "reset position", "canceled", err)
	}
	return c.port.WriteLine("G92X0Y0")
}

// SoftReset sends the controller's immediate soft-reset byte, halting any
// in-flight move. Used on emergency stop.
func (c *Client) SoftReset() error {
	return c.port.WriteByte(softResetByte)
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.port.Close()
}

func (c *Client) awaitBusyState(ctx context.Context, wantBusy bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		busy, err := c.status.Busy()
		if err != nil {
			return err
		}
		if busy == wantBusy {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %s", errWaitBudget, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.poll):
		}
	}
}

// FormatMove renders the controller's one-line move command.
func FormatMove(distanceMM, feedRate float64) string {
	return "G1X" + strconv.FormatFloat(distanceMM, 'f', 3, 64) +
		"F" + strconv.FormatFloat(feedRate, 'f', 0, 64)
}
