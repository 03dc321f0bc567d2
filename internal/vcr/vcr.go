// Package vcr presses the deck's front-panel buttons. The original buttons
// are bypassed with transistors on two GPIO lines; a press is a short pulse
// high, then release.
package vcr

import (
	"context"
	"log/slog"
	"time"

	"github.com/zackaholic/VHS-Coffeeman/internal/faults"
	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
)

// Line indices on the transport's GPIO request.
const (
	playIndex  = 0
	ejectIndex = 1
)

// ButtonLines drives the button bypass lines. gpio.OutputLines satisfies it.
type ButtonLines interface {
	Set(index int, active bool) error
}

// Transport pulses the deck's play and eject buttons.
type Transport struct {
	lines   ButtonLines
	pressMS time.Duration
	logger  *slog.Logger
}

// NewTransport builds a Transport. A non-positive press duration takes the
// deck's standard 200 ms.
func NewTransport(lines ButtonLines, press time.Duration, logger *slog.Logger) *Transport {
	if press <= 0 {
		press = 200 * time.Millisecond
	}
	return &Transport{
		lines:   lines,
		pressMS: press,
		logger:  logging.NewComponentLogger(logger, "vcr"),
	}
}

// Play presses the play button.
func (t *Transport) Play(ctx context.Context) error {
	return t.press(ctx, "play", playIndex)
}

// Eject presses the eject button.
func (t *Transport) Eject(ctx context.Context) error {
	return t.press(ctx, "eject", ejectIndex)
}

func (t *Transport) press(ctx context.Context, name string, index int) error {
	t.logger.Info("pressing deck button", logging.String("button", name))
	if err := t.lines.Set(index, true); err != nil {
		return faults.Wrap(faults.ErrUnavailable, "vcr", name, "asserting button line", err)
	}
	select {
	case <-time.After(t.pressMS):
	case <-ctx.Done():
		// Still release the button before reporting cancellation.
	}
	if err := t.lines.Set(index, false); err != nil {
		return faults.Wrap(faults.ErrUnavailable, "vcr", name, "releasing button line", err)
	}
	return ctx.Err()
}
