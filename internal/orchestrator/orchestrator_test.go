package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zackaholic/VHS-Coffeeman/internal/faults"
	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
	"github.com/zackaholic/VHS-Coffeeman/internal/recipes"
	"github.com/zackaholic/VHS-Coffeeman/internal/sensors"
)

type stubActuators struct {
	mu          sync.Mutex
	dispensed   []dispenseCall
	runs        []runCall
	disableAlls int

	dispenseErr error
	// failAfter fails the dispense whose ordinal (1-based) exceeds it;
	// zero disables the behavior.
	failAfter int
	// block, when set, makes Dispense wait for ctx cancellation.
	block bool
	// started is signalled once per Dispense entry when non-nil.
	started chan struct{}
}

type dispenseCall struct {
	channel int
	volume  float64
}

type runCall struct {
	channel  int
	distance float64
}

func (a *stubActuators) Dispense(ctx context.Context, channel int, volumeOunces float64) error {
	if a.started != nil {
		a.started <- struct{}{}
	}
	if a.block {
		<-ctx.Done()
		return faults.Wrap(faults.ErrMotionCommand, "motion", "move", "canceled", ctx.Err())
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dispenseErr != nil {
		return a.dispenseErr
	}
	if a.failAfter > 0 && len(a.dispensed)+1 > a.failAfter {
		return faults.Wrap(faults.ErrMotionTimeout, "motion", "wait", "never idle", nil)
	}
	a.dispensed = append(a.dispensed, dispenseCall{channel, volumeOunces})
	return nil
}

func (a *stubActuators) Run(ctx context.Context, channel int, distanceMM float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs = append(a.runs, runCall{channel, distanceMM})
	return nil
}

func (a *stubActuators) DisableAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disableAlls++
}

func (a *stubActuators) ChannelCount() int { return 10 }

func (a *stubActuators) dispenses() []dispenseCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]dispenseCall(nil), a.dispensed...)
}

func (a *stubActuators) disables() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disableAlls
}

type stubRecipes struct {
	byTag map[string]recipes.Recipe
}

func (r *stubRecipes) Resolve(tag string) (recipes.Recipe, error) {
	if recipe, ok := r.byTag[tag]; ok {
		return recipe, nil
	}
	return recipes.Recipe{}, faults.Wrap(faults.ErrRecipeNotFound, "recipes", "resolve",
		fmt.Sprintf("no recipe for tag %s", tag), nil)
}

type stubMedia struct {
	mu     sync.Mutex
	plays  []string
	stops  int
	refuse bool
}

func (m *stubMedia) Play(_ context.Context, tag string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refuse {
		return false
	}
	m.plays = append(m.plays, tag)
	return true
}

func (m *stubMedia) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
}

type stubTape struct {
	mu      sync.Mutex
	plays   int
	ejects  int
	err     error
	onEject func()
}

func (t *stubTape) Play(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.plays++
	return t.err
}

func (t *stubTape) Eject(context.Context) error {
	t.mu.Lock()
	t.ejects++
	hook := t.onEject
	err := t.err
	t.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (t *stubTape) ejectCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ejects
}

type stubSensors struct {
	events chan sensors.Event
	mu     sync.Mutex
	cup    bool
	fault  bool
	// dead keeps the fault latched through ClearFault, like a sensor that
	// is still broken when the operator resets.
	dead   bool
	clears int
}

func newStubSensors() *stubSensors {
	return &stubSensors{events: make(chan sensors.Event, 16)}
}

func (s *stubSensors) Events() <-chan sensors.Event { return s.events }

func (s *stubSensors) CupPresent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cup
}

func (s *stubSensors) Faulted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}

func (s *stubSensors) ClearFault() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	if !s.dead {
		s.fault = false
	}
}

func (s *stubSensors) setCup(present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cup = present
}

func (s *stubSensors) setFault(faulted, dead bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = faulted
	s.dead = dead
}

func (s *stubSensors) clearCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

func (s *stubSensors) emit(kind sensors.EventKind, tag string) {
	s.events <- sensors.Event{Kind: kind, Tag: tag}
}

type journalCall struct {
	op    string
	id    string
	fault string
}

type stubJournal struct {
	mu    sync.Mutex
	calls []journalCall
}

func (j *stubJournal) BeginPour(_ context.Context, id, _, _ string, _ int) error {
	return j.record("begin", id, "")
}

func (j *stubJournal) MarkProgress(_ context.Context, id string, _ int) error {
	return j.record("progress", id, "")
}

func (j *stubJournal) CompletePour(_ context.Context, id string) error {
	return j.record("complete", id, "")
}

func (j *stubJournal) FailPour(_ context.Context, id, fault string) error {
	return j.record("fail", id, fault)
}

func (j *stubJournal) RecordMaintenance(_ context.Context, id, operation, _ string) error {
	return j.record("maintenance:"+operation, id, "")
}

func (j *stubJournal) record(op, id, fault string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, journalCall{op, id, fault})
	return nil
}

func (j *stubJournal) ops() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.calls))
	for i, c := range j.calls {
		out[i] = c.op
	}
	return out
}

func (j *stubJournal) lastFault() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.calls) - 1; i >= 0; i-- {
		if j.calls[i].op == "fail" {
			return j.calls[i].fault
		}
	}
	return ""
}

type sinkRecorder struct {
	mu         sync.Mutex
	indicators []Indicator
}

func (s *sinkRecorder) SetIndicator(indicator Indicator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indicators = append(s.indicators, indicator)
}

func (s *sinkRecorder) last() Indicator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.indicators) == 0 {
		return ""
	}
	return s.indicators[len(s.indicators)-1]
}

type rig struct {
	manager   *Manager
	actuators *stubActuators
	sensors   *stubSensors
	media     *stubMedia
	tape      *stubTape
	journal   *stubJournal
	sink      *sinkRecorder
}

func margarita() recipes.Recipe {
	return recipes.Recipe{
		Name: "Margarita",
		Tag:  "DEADBEEF",
		Ingredients: []recipes.Ingredient{
			{Pump: 2, AmountOz: 1.5},
			{Pump: 5, AmountOz: 0.5},
		},
	}
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		actuators: &stubActuators{},
		sensors:   newStubSensors(),
		media:     &stubMedia{},
		tape:      &stubTape{},
		journal:   &stubJournal{},
		sink:      &sinkRecorder{},
	}
	r.manager = New(Config{
		Actuators: r.actuators,
		Recipes:   &stubRecipes{byTag: map[string]recipes.Recipe{"DEADBEEF": margarita()}},
		Media:     r.media,
		Tape:      r.tape,
		Sensors:   r.sensors,
		Journal:   r.journal,
		Sink:      r.sink,
		Logger:    logging.NewNop(),
	})
	r.manager.Start(context.Background())
	t.Cleanup(r.manager.Stop)
	return r
}

func waitForState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Status().State == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("machine never reached %s, stuck in %s", want, m.Status().State)
}

func TestHappyPathWithCupAlreadyPresent(t *testing.T) {
	r := newRig(t)
	r.sensors.setCup(true)

	if err := r.manager.Pour(context.Background(), "DEADBEEF"); err != nil {
		t.Fatalf("Pour failed: %v", err)
	}

	if got := r.manager.Status().State; got != StateDrinkReady {
		t.Fatalf("state = %s, want drink_ready", got)
	}
	dispensed := r.actuators.dispenses()
	if len(dispensed) != 2 {
		t.Fatalf("dispensed %d ingredients, want 2", len(dispensed))
	}
	if dispensed[0] != (dispenseCall{2, 1.5}) || dispensed[1] != (dispenseCall{5, 0.5}) {
		t.Errorf("dispense order = %v", dispensed)
	}
	if r.tape.ejectCount() != 1 {
		t.Errorf("ejects = %d, want 1", r.tape.ejectCount())
	}

	// Drink picked up: back to Idle.
	r.sensors.setCup(false)
	r.sensors.emit(sensors.CupRemoved, "")
	waitForState(t, r.manager, StateIdle)
}

func TestTagEventDrivesFullCycle(t *testing.T) {
	r := newRig(t)
	r.sensors.setCup(true)

	r.sensors.emit(sensors.TagDetected, "DEADBEEF")
	waitForState(t, r.manager, StateDrinkReady)

	if len(r.actuators.dispenses()) != 2 {
		t.Errorf("dispensed %d ingredients, want 2", len(r.actuators.dispenses()))
	}
}

func TestWaitsForCupThenPours(t *testing.T) {
	r := newRig(t)

	if err := r.manager.Pour(context.Background(), "DEADBEEF"); err != nil {
		t.Fatalf("Pour failed: %v", err)
	}
	if got := r.manager.Status().State; got != StateWaitingForCup {
		t.Fatalf("state = %s, want waiting_for_cup", got)
	}
	if len(r.actuators.dispenses()) != 0 {
		t.Fatal("dispensed before cup arrived")
	}
	if r.sink.last() != IndicatorNoCup {
		t.Errorf("indicator = %s, want no_cup", r.sink.last())
	}

	r.sensors.setCup(true)
	r.sensors.emit(sensors.CupPlaced, "")
	waitForState(t, r.manager, StateDrinkReady)

	if len(r.actuators.dispenses()) != 2 {
		t.Errorf("dispensed %d ingredients, want 2", len(r.actuators.dispenses()))
	}
}

func TestResolutionFailureEntersError(t *testing.T) {
	r := newRig(t)

	err := r.manager.Pour(context.Background(), "UNKNOWN")
	if !errors.Is(err, faults.ErrRecipeNotFound) {
		t.Fatalf("expected ErrRecipeNotFound, got %v", err)
	}
	status := r.manager.Status()
	if status.State != StateError {
		t.Errorf("state = %s, want error", status.State)
	}
	if r.actuators.disables() == 0 {
		t.Error("actuators not forced off on error entry")
	}
	if r.sink.last() != IndicatorError {
		t.Errorf("indicator = %s, want error", r.sink.last())
	}
}

func TestDispenseFailureAbortsWholeRecipe(t *testing.T) {
	r := newRig(t)
	r.sensors.setCup(true)
	r.actuators.failAfter = 1

	err := r.manager.Pour(context.Background(), "DEADBEEF")
	if !errors.Is(err, faults.ErrMotionTimeout) {
		t.Fatalf("expected ErrMotionTimeout, got %v", err)
	}
	if got := r.manager.Status().State; got != StateError {
		t.Errorf("state = %s, want error", got)
	}
	if len(r.actuators.dispenses()) != 1 {
		t.Errorf("dispensed %d ingredients after failure, want 1", len(r.actuators.dispenses()))
	}
	if r.actuators.disables() == 0 {
		t.Error("actuators not disabled after aborted pour")
	}
	if r.journal.lastFault() != "motion_timeout" {
		t.Errorf("journaled fault = %q, want motion_timeout", r.journal.lastFault())
	}
}

func TestCupRemovalMidPourEmergencyStops(t *testing.T) {
	r := newRig(t)
	r.sensors.setCup(true)
	r.actuators.block = true
	r.actuators.started = make(chan struct{}, 4)

	pourDone := make(chan error, 1)
	go func() { pourDone <- r.manager.Pour(context.Background(), "DEADBEEF") }()

	// First ingredient is mid-dispense; yank the cup.
	<-r.actuators.started
	r.sensors.setCup(false)
	r.sensors.emit(sensors.CupRemoved, "")

	if err := <-pourDone; err == nil {
		t.Fatal("pour reported success after cup removal")
	}
	if got := r.manager.Status().State; got != StateError {
		t.Errorf("state = %s, want error", got)
	}
	if r.actuators.disables() == 0 {
		t.Error("actuators not emergency stopped")
	}
	if r.journal.lastFault() != "cup_removed" {
		t.Errorf("journaled fault = %q, want cup_removed", r.journal.lastFault())
	}
}

func TestSensorFaultMidPourEmergencyStops(t *testing.T) {
	r := newRig(t)
	r.sensors.setCup(true)
	r.actuators.block = true
	r.actuators.started = make(chan struct{}, 4)

	pourDone := make(chan error, 1)
	go func() { pourDone <- r.manager.Pour(context.Background(), "DEADBEEF") }()

	<-r.actuators.started
	r.sensors.emit(sensors.SensorFault, "")

	if err := <-pourDone; err == nil {
		t.Fatal("pour reported success after sensor fault")
	}
	waitForState(t, r.manager, StateError)
	if r.journal.lastFault() != "sensor_failure" {
		t.Errorf("journaled fault = %q, want sensor_failure", r.journal.lastFault())
	}
}

func TestSensorFaultWhileIdleEntersError(t *testing.T) {
	r := newRig(t)

	r.sensors.emit(sensors.SensorFault, "")
	waitForState(t, r.manager, StateError)
	if r.actuators.disables() == 0 {
		t.Error("actuators not forced off on sensor fault")
	}
}

func TestErrorIgnoresEventsUntilReset(t *testing.T) {
	r := newRig(t)
	r.sensors.emit(sensors.SensorFault, "")
	waitForState(t, r.manager, StateError)

	r.sensors.emit(sensors.TagDetected, "DEADBEEF")
	r.sensors.emit(sensors.CupPlaced, "")
	time.Sleep(20 * time.Millisecond)
	if got := r.manager.Status().State; got != StateError {
		t.Fatalf("state = %s, error was not sticky", got)
	}
	if len(r.actuators.dispenses()) != 0 {
		t.Error("dispensed while in error state")
	}

	if err := r.manager.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	status := r.manager.Status()
	if status.State != StateIdle || status.Fault != "" {
		t.Errorf("status after reset = %+v", status)
	}
}

func TestResetDoesNotRearmDeadCupSensor(t *testing.T) {
	r := newRig(t)
	r.sensors.setFault(true, true)
	r.sensors.emit(sensors.SensorFault, "")
	waitForState(t, r.manager, StateError)

	if err := r.manager.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if r.sensors.clearCalls() == 0 {
		t.Error("reset did not ask the poller to clear its fault latch")
	}

	// The sensor is still dead, so the latch survived the reset and the
	// machine must refuse to pour blind.
	r.sensors.setCup(true)
	err := r.manager.Pour(context.Background(), "DEADBEEF")
	if !errors.Is(err, faults.ErrSensorRead) {
		t.Fatalf("expected ErrSensorRead, got %v", err)
	}
	if got := r.manager.Status().State; got != StateError {
		t.Errorf("state = %s, want error", got)
	}
	if len(r.actuators.dispenses()) != 0 {
		t.Error("dispensed with the cup sensor latched failed")
	}
}

func TestResetRestoresPourAfterSensorRepair(t *testing.T) {
	r := newRig(t)
	r.sensors.setFault(true, false)
	r.sensors.emit(sensors.SensorFault, "")
	waitForState(t, r.manager, StateError)

	if err := r.manager.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	r.sensors.setCup(true)
	if err := r.manager.Pour(context.Background(), "DEADBEEF"); err != nil {
		t.Fatalf("Pour after reset failed: %v", err)
	}
	if got := r.manager.Status().State; got != StateDrinkReady {
		t.Errorf("state = %s, want drink_ready", got)
	}
}

func TestResetClearsAbandonedJob(t *testing.T) {
	r := newRig(t)

	if err := r.manager.Pour(context.Background(), "DEADBEEF"); err != nil {
		t.Fatalf("Pour failed: %v", err)
	}
	// Waiting for a cup that never comes; the operator resets.
	if err := r.manager.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	status := r.manager.Status()
	if status.State != StateIdle || status.JobID != "" {
		t.Errorf("status after reset = %+v", status)
	}
}

func TestMaintenanceAllowedIdleAndError(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	if err := r.manager.Prime(ctx, 2); err != nil {
		t.Fatalf("Prime from idle failed: %v", err)
	}
	r.sensors.emit(sensors.SensorFault, "")
	waitForState(t, r.manager, StateError)
	if err := r.manager.Clean(ctx, 3); err != nil {
		t.Fatalf("Clean from error failed: %v", err)
	}

	r.actuators.mu.Lock()
	runs := append([]runCall(nil), r.actuators.runs...)
	r.actuators.mu.Unlock()
	if len(runs) != 2 {
		t.Fatalf("runs = %v, want 2 entries", runs)
	}
	if runs[0] != (runCall{2, 200}) {
		t.Errorf("prime run = %v, want {2 200}", runs[0])
	}
	if runs[1] != (runCall{3, 150}) {
		t.Errorf("clean run = %v, want {3 150}", runs[1])
	}
}

func TestMaintenanceRejectedWhileWaitingForCup(t *testing.T) {
	r := newRig(t)
	if err := r.manager.Pour(context.Background(), "DEADBEEF"); err != nil {
		t.Fatalf("Pour failed: %v", err)
	}

	err := r.manager.RunPump(context.Background(), 0, 50)
	if !errors.Is(err, faults.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPourRejectedWhenNotIdle(t *testing.T) {
	r := newRig(t)
	if err := r.manager.Pour(context.Background(), "DEADBEEF"); err != nil {
		t.Fatalf("Pour failed: %v", err)
	}

	err := r.manager.Pour(context.Background(), "DEADBEEF")
	if !errors.Is(err, faults.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMediaRefusalDoesNotStopPour(t *testing.T) {
	r := newRig(t)
	r.sensors.setCup(true)
	r.media.refuse = true

	if err := r.manager.Pour(context.Background(), "DEADBEEF"); err != nil {
		t.Fatalf("Pour failed with refusing media: %v", err)
	}
	if got := r.manager.Status().State; got != StateDrinkReady {
		t.Errorf("state = %s, want drink_ready", got)
	}
}

func TestDeckFailureDoesNotStopPour(t *testing.T) {
	r := newRig(t)
	r.sensors.setCup(true)
	r.tape.err = errors.New("button line stuck")

	if err := r.manager.Pour(context.Background(), "DEADBEEF"); err != nil {
		t.Fatalf("Pour failed with broken deck: %v", err)
	}
}

func TestJournalSequenceOnSuccess(t *testing.T) {
	r := newRig(t)
	r.sensors.setCup(true)

	if err := r.manager.Pour(context.Background(), "DEADBEEF"); err != nil {
		t.Fatalf("Pour failed: %v", err)
	}
	want := []string{"begin", "progress", "progress", "complete"}
	got := r.journal.ops()
	if len(got) != len(want) {
		t.Fatalf("journal ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("journal ops = %v, want %v", got, want)
		}
	}
}

func TestCupGoneAfterPourSkipsDrinkReadyWait(t *testing.T) {
	r := newRig(t)
	r.sensors.setCup(true)
	// Cup disappears while the tape ejects; its removal edge was consumed
	// during the pour, so the ready check has to notice on its own.
	r.tape.onEject = func() { r.sensors.setCup(false) }

	if err := r.manager.Pour(context.Background(), "DEADBEEF"); err != nil {
		t.Fatalf("Pour failed: %v", err)
	}
	waitForState(t, r.manager, StateIdle)
}
