package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/zackaholic/VHS-Coffeeman/internal/faults"
	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
	"github.com/zackaholic/VHS-Coffeeman/internal/recipes"
	"github.com/zackaholic/VHS-Coffeeman/internal/sensors"
)

// Actuators is the pump driver surface the orchestrator needs.
type Actuators interface {
	Dispense(ctx context.Context, channel int, volumeOunces float64) error
	Run(ctx context.Context, channel int, distanceMM float64) error
	DisableAll()
	ChannelCount() int
}

// RecipeSource resolves tags to recipes.
type RecipeSource interface {
	Resolve(tag string) (recipes.Recipe, error)
}

// MediaPlayer plays the per-drink clip. Both methods are best-effort.
type MediaPlayer interface {
	Play(ctx context.Context, tag string) bool
	Stop()
}

// TapeTransport presses the deck's physical buttons.
type TapeTransport interface {
	Play(ctx context.Context) error
	Eject(ctx context.Context) error
}

// SensorSource is the poller surface the orchestrator consumes.
type SensorSource interface {
	Events() <-chan sensors.Event
	CupPresent() bool
	Faulted() bool
	ClearFault()
}

// Journal records pour history. Write failures degrade to logging.
type Journal interface {
	BeginPour(ctx context.Context, id, tag, recipe string, ingredientsTotal int) error
	MarkProgress(ctx context.Context, id string, ingredientsDone int) error
	CompletePour(ctx context.Context, id string) error
	FailPour(ctx context.Context, id, fault string) error
	RecordMaintenance(ctx context.Context, id, operation, description string) error
}

// Notifier pushes operator notifications. All methods are fire-and-forget.
type Notifier interface {
	NotifyPourStarted(recipe, tag string)
	NotifyPourCompleted(recipe string)
	NotifyPourFailed(recipe, fault string)
	NotifyFault(fault string)
	NotifyOperatorReset()
}

// Options carries the orchestrator's tunables.
type Options struct {
	// PrimeDistanceMM is the forward travel for the prime maintenance
	// operation.
	PrimeDistanceMM float64
	// CleanDistanceMM is the forward travel for the clean maintenance
	// operation.
	CleanDistanceMM float64
}

// Status is a point-in-time snapshot for the status surfaces.
type Status struct {
	State      State  `json:"state"`
	JobID      string `json:"job_id,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Recipe     string `json:"recipe,omitempty"`
	Fault      string `json:"fault,omitempty"`
	CupPresent bool   `json:"cup_present"`
}

type pourJob struct {
	id     string
	tag    string
	recipe recipes.Recipe
}

type commandKind int

const (
	cmdPour commandKind = iota
	cmdReset
	cmdPrime
	cmdClean
	cmdRunPump
)

type command struct {
	kind     commandKind
	tag      string
	channel  int
	distance float64
	reply    chan error
}

// Manager is the orchestration state machine.
type Manager struct {
	actuators Actuators
	recipes   RecipeSource
	media     MediaPlayer
	tape      TapeTransport
	sensors   SensorSource
	journal   Journal
	notifier  Notifier
	sink      StatusSink
	opts      Options
	logger    *slog.Logger

	commands chan command

	mu     sync.Mutex
	state  State
	job    *pourJob
	fault  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Config bundles the Manager's collaborators. Journal, Notifier, and Sink
// may be nil; they default to no-ops.
type Config struct {
	Actuators Actuators
	Recipes   RecipeSource
	Media     MediaPlayer
	Tape      TapeTransport
	Sensors   SensorSource
	Journal   Journal
	Notifier  Notifier
	Sink      StatusSink
	Options   Options
	Logger    *slog.Logger
}

// New builds a Manager in Idle.
func New(cfg Config) *Manager {
	if cfg.Journal == nil {
		cfg.Journal = nopJournal{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.Sink == nil {
		cfg.Sink = NopStatusSink{}
	}
	if cfg.Options.PrimeDistanceMM <= 0 {
		cfg.Options.PrimeDistanceMM = 200
	}
	if cfg.Options.CleanDistanceMM <= 0 {
		cfg.Options.CleanDistanceMM = 150
	}
	return &Manager{
		actuators: cfg.Actuators,
		recipes:   cfg.Recipes,
		media:     cfg.Media,
		tape:      cfg.Tape,
		sensors:   cfg.Sensors,
		journal:   cfg.Journal,
		notifier:  cfg.Notifier,
		sink:      cfg.Sink,
		opts:      cfg.Options,
		logger:    logging.NewComponentLogger(cfg.Logger, "orchestrator"),
		commands:  make(chan command),
		state:     StateIdle,
	}
}

// Start launches the reactor. It returns immediately.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.sink.SetIndicator(indicatorFor(m.state))
	go m.run(ctx)
}

// Stop disables all actuators and ends the reactor, blocking until it has
// exited.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.actuators.DisableAll()
	m.media.Stop()
}

// Status returns a snapshot of the machine.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := Status{
		State:      m.state,
		Fault:      m.fault,
		CupPresent: m.sensors.CupPresent(),
	}
	if m.job != nil {
		status.JobID = m.job.id
		status.Tag = m.job.tag
		status.Recipe = m.job.recipe.Name
	}
	return status
}

// Pour runs a full cycle for tag as if its tape had been inserted. It
// returns when the machine is waiting for a cup, the drink is done, or the
// cycle failed.
func (m *Manager) Pour(ctx context.Context, tag string) error {
	if state := m.currentState(); state != StateIdle {
		return faults.Wrap(faults.ErrUnavailable, "orchestrator", "pour",
			fmt.Sprintf("machine is %s, not idle", state), nil)
	}
	return m.send(ctx, command{kind: cmdPour, tag: tag})
}

// Reset clears a fault or an abandoned job: all actuators disabled, media
// stopped, job state dropped, back to Idle. Rejected while pouring.
func (m *Manager) Reset(ctx context.Context) error {
	return m.send(ctx, command{kind: cmdReset})
}

// Prime pushes liquid through one channel to fill its line. Idle or Error
// only.
func (m *Manager) Prime(ctx context.Context, channel int) error {
	return m.send(ctx, command{kind: cmdPrime, channel: channel})
}

// Clean runs a channel forward to flush it. Idle or Error only.
func (m *Manager) Clean(ctx context.Context, channel int) error {
	return m.send(ctx, command{kind: cmdClean, channel: channel})
}

// RunPump drives one channel through an arbitrary signed distance. Idle or
// Error only.
func (m *Manager) RunPump(ctx context.Context, channel int, distanceMM float64) error {
	return m.send(ctx, command{kind: cmdRunPump, channel: channel, distance: distanceMM})
}

func (m *Manager) currentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) send(ctx context.Context, cmd command) error {
	m.mu.Lock()
	done := m.done
	running := m.cancel != nil
	m.mu.Unlock()
	if !running {
		return faults.Wrap(faults.ErrUnavailable, "orchestrator", "command", "not running", nil)
	}

	cmd.reply = make(chan error, 1)
	select {
	case m.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return faults.Wrap(faults.ErrUnavailable, "orchestrator", "command", "shutting down", nil)
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-done:
		return faults.Wrap(faults.ErrUnavailable, "orchestrator", "command", "shutting down", nil)
	}
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.sensors.Events():
			m.handleEvent(ctx, ev)
		case cmd := <-m.commands:
			cmd.reply <- m.handleCommand(ctx, cmd)
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, ev sensors.Event) {
	state := m.currentState()
	if state == StateError && ev.Kind != sensors.SensorFault {
		m.logger.Info("event ignored in error state",
			logging.String("event", string(ev.Kind)),
			logging.String(logging.FieldState, string(state)))
		return
	}

	switch ev.Kind {
	case sensors.TagDetected:
		if state != StateIdle {
			m.logger.Debug("tag ignored",
				logging.String(logging.FieldTag, ev.Tag),
				logging.String(logging.FieldState, string(state)))
			return
		}
		_ = m.beginJob(ctx, ev.Tag)
	case sensors.CupPlaced:
		if state == StateWaitingForCup {
			m.pour(ctx)
		}
	case sensors.CupRemoved:
		if state == StateDrinkReady {
			m.logger.Info("drink taken")
			m.finishCycle()
		}
	case sensors.SensorFault:
		if state != StateError {
			m.enterError("sensor_failure", faults.Wrap(faults.ErrSensorRead, "orchestrator", "poll", "cup sensor latched failed", nil))
		}
	}
}

func (m *Manager) handleCommand(ctx context.Context, cmd command) error {
	state := m.currentState()
	switch cmd.kind {
	case cmdPour:
		if state != StateIdle {
			return faults.Wrap(faults.ErrUnavailable, "orchestrator", "pour",
				fmt.Sprintf("machine is %s, not idle", state), nil)
		}
		return m.beginJob(ctx, cmd.tag)
	case cmdReset:
		if state == StatePouring {
			return faults.Wrap(faults.ErrUnavailable, "orchestrator", "reset", "pour in progress", nil)
		}
		m.reset()
		return nil
	case cmdPrime:
		return m.maintenance(ctx, state, "prime", cmd.channel, m.opts.PrimeDistanceMM)
	case cmdClean:
		return m.maintenance(ctx, state, "clean", cmd.channel, m.opts.CleanDistanceMM)
	case cmdRunPump:
		return m.maintenance(ctx, state, "run_pump", cmd.channel, cmd.distance)
	default:
		return faults.Wrap(faults.ErrUnavailable, "orchestrator", "command", "unknown command", nil)
	}
}

// beginJob resolves the tag and drives the cycle as far as it can go
// without a cup. The returned error is the terminal fault, for the Pour
// command path; tape-driven calls ignore it.
func (m *Manager) beginJob(ctx context.Context, tag string) error {
	if m.sensors.Faulted() {
		err := faults.Wrap(faults.ErrSensorRead, "orchestrator", "pour",
			"cup sensor latched failed; pour refused", nil)
		m.enterError("sensor_failure", err)
		return err
	}

	recipe, err := m.recipes.Resolve(tag)
	if err != nil {
		logging.ErrorWithContext(m.logger, "recipe resolution failed", "recipe_unresolved",
			logging.String(logging.FieldTag, tag),
			logging.Error(err))
		m.enterError(faults.Kind(err), err)
		return err
	}

	job := &pourJob{id: uuid.NewString(), tag: tag, recipe: recipe}
	m.mu.Lock()
	m.job = job
	m.mu.Unlock()

	m.logger.Info("recipe loaded",
		logging.String(logging.FieldJobID, job.id),
		logging.String(logging.FieldTag, tag),
		logging.String("recipe", recipe.Name),
		logging.Int("ingredients", len(recipe.Ingredients)))
	m.setState(StateRecipeLoaded)

	// Re-check presence instead of waiting for a placement edge that may
	// already have happened.
	if !m.sensors.CupPresent() {
		m.setState(StateWaitingForCup)
		return nil
	}
	return m.pour(ctx)
}

// pour dispenses the loaded recipe. Cup removal or a sensor fault during
// the pour cancels it and forces Error.
func (m *Manager) pour(ctx context.Context) error {
	m.mu.Lock()
	job := m.job
	m.mu.Unlock()
	if job == nil {
		err := faults.Wrap(faults.ErrUnavailable, "orchestrator", "pour", "no recipe loaded", nil)
		m.enterError(faults.Kind(err), err)
		return err
	}

	m.setState(StatePouring)
	if err := m.journal.BeginPour(ctx, job.id, job.tag, job.recipe.Name, len(job.recipe.Ingredients)); err != nil {
		logging.WarnWithContext(m.logger, "journal write failed", "journal_write_failed",
			logging.String(logging.FieldJobID, job.id),
			logging.Error(err))
	}
	m.notifier.NotifyPourStarted(job.recipe.Name, job.tag)

	// The tape plays for the show; neither the deck nor the clip can
	// stop the pour.
	if err := m.tape.Play(ctx); err != nil {
		logging.WarnWithContext(m.logger, "deck play failed", "deck_press_failed",
			logging.Error(err))
	}
	m.media.Play(ctx, job.tag)

	fault, dispErr := m.dispense(ctx, job)
	if fault != "" {
		m.actuators.DisableAll()
		m.media.Stop()
		if err := m.journal.FailPour(ctx, job.id, fault); err != nil {
			logging.WarnWithContext(m.logger, "journal write failed", "journal_write_failed",
				logging.String(logging.FieldJobID, job.id),
				logging.Error(err))
		}
		m.notifier.NotifyPourFailed(job.recipe.Name, fault)
		m.enterError(fault, dispErr)
		if dispErr == nil {
			dispErr = faults.Wrap(faults.ErrUnavailable, "orchestrator", "pour", fault, nil)
		}
		return dispErr
	}

	if err := m.journal.CompletePour(ctx, job.id); err != nil {
		logging.WarnWithContext(m.logger, "journal write failed", "journal_write_failed",
			logging.String(logging.FieldJobID, job.id),
			logging.Error(err))
	}
	m.notifier.NotifyPourCompleted(job.recipe.Name)
	m.logger.Info("pour complete", logging.String(logging.FieldJobID, job.id))

	m.setState(StatePouringComplete)
	m.media.Stop()
	if err := m.tape.Eject(ctx); err != nil {
		logging.WarnWithContext(m.logger, "deck eject failed", "deck_press_failed",
			logging.Error(err))
	}
	m.setState(StateDrinkReady)

	// The removal edge may have been consumed while pouring; a missing
	// cup now means the drink is already gone.
	if !m.sensors.CupPresent() {
		m.finishCycle()
	}
	return nil
}

// dispense runs the ingredient loop under a watcher that cancels on cup
// removal or sensor fault. It returns the fault kind ("" on success) and
// the underlying error, if any.
func (m *Manager) dispense(ctx context.Context, job *pourJob) (string, error) {
	pourCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	abort := make(chan string, 1)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			case ev := <-m.sensors.Events():
				switch ev.Kind {
				case sensors.CupRemoved:
					abort <- "cup_removed"
					cancel()
					return
				case sensors.SensorFault:
					abort <- "sensor_failure"
					cancel()
					return
				}
			}
		}
	}()

	var dispErr error
	for i, ing := range job.recipe.Ingredients {
		m.logger.Info("dispensing ingredient",
			logging.String(logging.FieldJobID, job.id),
			logging.Int("step", i+1),
			logging.Int("steps", len(job.recipe.Ingredients)),
			logging.Int(logging.FieldChannel, ing.Pump),
			logging.Float64("volume_oz", ing.AmountOz))
		if dispErr = m.actuators.Dispense(pourCtx, ing.Pump, ing.AmountOz); dispErr != nil {
			break
		}
		if err := m.journal.MarkProgress(ctx, job.id, i+1); err != nil {
			logging.WarnWithContext(m.logger, "journal write failed", "journal_write_failed",
				logging.String(logging.FieldJobID, job.id),
				logging.Error(err))
		}
	}

	close(stop)
	wg.Wait()

	select {
	case fault := <-abort:
		// A removal observed after the last ingredient finished is a
		// completed drink walking away, not an abort.
		if dispErr == nil && fault == "cup_removed" {
			return "", nil
		}
		logging.ErrorWithContext(m.logger, "pour aborted", "pour_aborted",
			logging.String(logging.FieldJobID, job.id),
			logging.String("fault", fault))
		return fault, dispErr
	default:
	}

	if dispErr != nil {
		logging.ErrorWithContext(m.logger, "dispense failed", "dispense_failed",
			logging.String(logging.FieldJobID, job.id),
			logging.Error(dispErr))
		return faults.Kind(dispErr), dispErr
	}
	return "", nil
}

func (m *Manager) maintenance(ctx context.Context, state State, operation string, channel int, distanceMM float64) error {
	if state != StateIdle && state != StateError {
		return faults.Wrap(faults.ErrUnavailable, "orchestrator", operation,
			fmt.Sprintf("machine is %s; maintenance needs idle or error", state), nil)
	}
	m.logger.Info("maintenance operation",
		logging.String(logging.FieldOperation, operation),
		logging.Int(logging.FieldChannel, channel),
		logging.Float64("distance_mm", distanceMM))

	if err := m.actuators.Run(ctx, channel, distanceMM); err != nil {
		return err
	}
	description := fmt.Sprintf("%s channel %d (%.0f mm)", operation, channel, distanceMM)
	if err := m.journal.RecordMaintenance(ctx, uuid.NewString(), operation, description); err != nil {
		logging.WarnWithContext(m.logger, "journal write failed", "journal_write_failed",
			logging.Error(err))
	}
	return nil
}

// finishCycle returns to Idle after a successful drink.
func (m *Manager) finishCycle() {
	m.mu.Lock()
	m.job = nil
	m.mu.Unlock()
	m.setState(StateIdle)
}

// reset is the operator escape hatch out of Error or an abandoned cycle.
// Clearing the sensor fault latch lets the poller retry a repaired sensor;
// one that is still dead latches again before the next pour is allowed.
func (m *Manager) reset() {
	m.actuators.DisableAll()
	m.media.Stop()
	m.sensors.ClearFault()
	m.mu.Lock()
	m.job = nil
	m.fault = ""
	m.mu.Unlock()
	m.logger.Info("operator reset")
	m.notifier.NotifyOperatorReset()
	m.setState(StateIdle)
}

// enterError forces the machine safe and latches the fault.
func (m *Manager) enterError(fault string, err error) {
	m.actuators.DisableAll()
	m.media.Stop()
	m.mu.Lock()
	m.fault = fault
	m.mu.Unlock()
	logging.ErrorWithContext(m.logger, "entering error state", "state_error",
		logging.String("fault", fault),
		logging.Error(err),
		logging.String(logging.FieldImpact, "machine locked until operator reset"))
	m.notifier.NotifyFault(fault)
	m.setState(StateError)
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	prior := m.state
	m.state = state
	m.mu.Unlock()
	if prior != state {
		m.logger.Info("state transition",
			logging.String("from", string(prior)),
			logging.String(logging.FieldState, string(state)))
	}
	m.sink.SetIndicator(indicatorFor(state))
}

type nopJournal struct{}

func (nopJournal) BeginPour(context.Context, string, string, string, int) error { return nil }
func (nopJournal) MarkProgress(context.Context, string, int) error              { return nil }
func (nopJournal) CompletePour(context.Context, string) error                   { return nil }
func (nopJournal) FailPour(context.Context, string, string) error               { return nil }
func (nopJournal) RecordMaintenance(context.Context, string, string, string) error {
	return nil
}

type nopNotifier struct{}

func (nopNotifier) NotifyPourStarted(string, string) {}
func (nopNotifier) NotifyPourCompleted(string)       {}
func (nopNotifier) NotifyPourFailed(string, string)  {}
func (nopNotifier) NotifyFault(string)               {}
func (nopNotifier) NotifyOperatorReset()             {}
