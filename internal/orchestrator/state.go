package orchestrator

import (
	"log/slog"

	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
)

// State is the machine's single mode. Every externally visible action is
// gated on the correct state.
type State string

const (
	// StateIdle means the machine is waiting for a tape.
	StateIdle State = "idle"
	// StateRecipeLoaded means a tag resolved and the cup check is next.
	StateRecipeLoaded State = "recipe_loaded"
	// StateWaitingForCup means a recipe is loaded but no cup is present.
	StateWaitingForCup State = "waiting_for_cup"
	// StatePouring means ingredients are dispensing.
	StatePouring State = "pouring"
	// StatePouringComplete means the drink is done and the tape is about
	// to eject.
	StatePouringComplete State = "pouring_complete"
	// StateDrinkReady means the drink is waiting to be picked up.
	StateDrinkReady State = "drink_ready"
	// StateError is sticky. All actuators are disabled on entry and only
	// an operator reset leaves it.
	StateError State = "error"
)

// Indicator is the coarse front-of-house status the machine shows between
// the states.
type Indicator string

const (
	// IndicatorAttractor invites a tape.
	IndicatorAttractor Indicator = "attractor"
	// IndicatorNoCup asks for a cup.
	IndicatorNoCup Indicator = "no_cup"
	// IndicatorBusy covers recipe-loaded through drink-ready.
	IndicatorBusy Indicator = "busy"
	// IndicatorError signals operator attention.
	IndicatorError Indicator = "error"
)

// StatusSink receives indicator changes on every state transition. The
// shipped implementation logs them; an installation with real lights plugs
// in here.
type StatusSink interface {
	SetIndicator(indicator Indicator)
}

// NopStatusSink discards indicator changes.
type NopStatusSink struct{}

func (NopStatusSink) SetIndicator(Indicator) {}

// LogStatusSink records indicator changes in the structured log.
type LogStatusSink struct {
	Logger *slog.Logger
}

func (s LogStatusSink) SetIndicator(indicator Indicator) {
	if s.Logger == nil {
		return
	}
	s.Logger.Info("indicator changed",
		logging.String("indicator", string(indicator)),
		logging.String(logging.FieldEventType, "indicator_changed"),
	)
}

func indicatorFor(state State) Indicator {
	switch state {
	case StateIdle:
		return IndicatorAttractor
	case StateWaitingForCup:
		return IndicatorNoCup
	case StateError:
		return IndicatorError
	default:
		return IndicatorBusy
	}
}
