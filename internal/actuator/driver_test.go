package actuator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zackaholic/VHS-Coffeeman/internal/faults"
	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
)

type fakeMotion struct {
	moves       []float64
	feeds       []float64
	waits       int
	resets      int
	softResets  int
	moveErr     error
	waitErr     error
	resetPosErr error
}

func (m *fakeMotion) Move(_ context.Context, distanceMM, feedRate float64) error {
	if m.moveErr != nil {
		return m.moveErr
	}
	m.moves = append(m.moves, distanceMM)
	m.feeds = append(m.feeds, feedRate)
	return nil
}

func (m *fakeMotion) WaitForCompletion(context.Context, time.Duration) error {
	m.waits++
	return m.waitErr
}

func (m *fakeMotion) ResetPosition(context.Context) error {
	m.resets++
	return m.resetPosErr
}

func (m *fakeMotion) SoftReset() error {
	m.softResets++
	return nil
}

// fakePumps records the enable/disable order so tests can assert the channel
// was released on every exit path.
type fakePumps struct {
	count     int
	states    []bool
	order     []string
	setErr    error
	setAllErr error
}

func newFakePumps(count int) *fakePumps {
	return &fakePumps{count: count, states: make([]bool, count)}
}

func (p *fakePumps) Set(index int, active bool) error {
	if p.setErr != nil {
		return p.setErr
	}
	p.states[index] = active
	if active {
		p.order = append(p.order, "enable")
	} else {
		p.order = append(p.order, "disable")
	}
	return nil
}

func (p *fakePumps) SetAll(active bool) error {
	if p.setAllErr != nil {
		return p.setAllErr
	}
	for i := range p.states {
		p.states[i] = active
	}
	p.order = append(p.order, "all-off")
	return nil
}

func (p *fakePumps) Count() int { return p.count }

func (p *fakePumps) anyEnabled() bool {
	for _, s := range p.states {
		if s {
			return true
		}
	}
	return false
}

func newTestDriver(motion *fakeMotion, pumps *fakePumps) *Driver {
	return NewDriver(motion, pumps, Limits{}, logging.NewNop())
}

func TestDispenseHappyPath(t *testing.T) {
	motion := &fakeMotion{}
	pumps := newFakePumps(10)
	driver := newTestDriver(motion, pumps)

	if err := driver.Dispense(context.Background(), 3, 1.5); err != nil {
		t.Fatalf("Dispense failed: %v", err)
	}
	if len(motion.moves) != 1 || motion.moves[0] != 150 {
		t.Errorf("moves = %v, want [150]", motion.moves)
	}
	if motion.waits != 1 {
		t.Errorf("waits = %d, want 1", motion.waits)
	}
	if motion.resets != 1 {
		t.Errorf("position resets = %d, want 1", motion.resets)
	}
	if pumps.anyEnabled() {
		t.Error("a pump is still enabled after dispense")
	}
	want := []string{"enable", "disable"}
	if len(pumps.order) != 2 || pumps.order[0] != want[0] || pumps.order[1] != want[1] {
		t.Errorf("pump order = %v, want %v", pumps.order, want)
	}
}

func TestDispenseInvalidChannelTouchesNothing(t *testing.T) {
	motion := &fakeMotion{}
	pumps := newFakePumps(10)
	driver := newTestDriver(motion, pumps)

	for _, ch := range []int{-1, 10, 42} {
		err := driver.Dispense(context.Background(), ch, 1.0)
		if !errors.Is(err, faults.ErrInvalidChannel) {
			t.Fatalf("channel %d: expected ErrInvalidChannel, got %v", ch, err)
		}
	}
	if len(motion.moves) != 0 || len(pumps.order) != 0 {
		t.Errorf("hardware touched on invalid channel: moves=%v order=%v", motion.moves, pumps.order)
	}
}

func TestDispenseInvalidVolumeTouchesNothing(t *testing.T) {
	motion := &fakeMotion{}
	pumps := newFakePumps(10)
	driver := newTestDriver(motion, pumps)

	for _, oz := range []float64{0, 0.05, 10.5, -1} {
		err := driver.Dispense(context.Background(), 0, oz)
		if !errors.Is(err, faults.ErrInvalidVolume) {
			t.Fatalf("volume %v: expected ErrInvalidVolume, got %v", oz, err)
		}
	}
	if len(motion.moves) != 0 || len(pumps.order) != 0 {
		t.Errorf("hardware touched on invalid volume: moves=%v order=%v", motion.moves, pumps.order)
	}
}

func TestDispenseBoundaryVolumes(t *testing.T) {
	motion := &fakeMotion{}
	pumps := newFakePumps(10)
	driver := newTestDriver(motion, pumps)

	if err := driver.Dispense(context.Background(), 0, 0.1); err != nil {
		t.Errorf("minimum volume rejected: %v", err)
	}
	if err := driver.Dispense(context.Background(), 0, 10.0); err != nil {
		t.Errorf("maximum volume rejected: %v", err)
	}
}

func TestDispenseDisablesChannelOnMoveFailure(t *testing.T) {
	motion := &fakeMotion{moveErr: faults.Wrap(faults.ErrMotionCommand, "motion", "move", "port gone", nil)}
	pumps := newFakePumps(10)
	driver := newTestDriver(motion, pumps)

	err := driver.Dispense(context.Background(), 2, 1.0)
	if !errors.Is(err, faults.ErrMotionCommand) {
		t.Fatalf("expected ErrMotionCommand, got %v", err)
	}
	if pumps.anyEnabled() {
		t.Error("pump left enabled after move failure")
	}
}

func TestDispenseDisablesChannelOnWaitTimeout(t *testing.T) {
	motion := &fakeMotion{waitErr: faults.Wrap(faults.ErrMotionTimeout, "motion", "wait", "never idle", nil)}
	pumps := newFakePumps(10)
	driver := newTestDriver(motion, pumps)

	err := driver.Dispense(context.Background(), 2, 1.0)
	if !errors.Is(err, faults.ErrMotionTimeout) {
		t.Fatalf("expected ErrMotionTimeout, got %v", err)
	}
	if pumps.anyEnabled() {
		t.Error("pump left enabled after wait timeout")
	}
	if motion.resets != 0 {
		t.Error("position reset issued after failed move")
	}
}

func TestDispensePositionResetFailureIsNotFatal(t *testing.T) {
	motion := &fakeMotion{resetPosErr: errors.New("write failed")}
	pumps := newFakePumps(10)
	driver := newTestDriver(motion, pumps)

	if err := driver.Dispense(context.Background(), 0, 1.0); err != nil {
		t.Fatalf("Dispense failed on position reset error: %v", err)
	}
}

func TestRunMovesArbitraryDistance(t *testing.T) {
	motion := &fakeMotion{}
	pumps := newFakePumps(10)
	driver := newTestDriver(motion, pumps)

	if err := driver.Run(context.Background(), 5, 200); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(motion.moves) != 1 || motion.moves[0] != 200 {
		t.Errorf("moves = %v, want [200]", motion.moves)
	}
	if pumps.anyEnabled() {
		t.Error("pump left enabled after run")
	}
}

func TestRunRejectsInvalidChannel(t *testing.T) {
	driver := newTestDriver(&fakeMotion{}, newFakePumps(10))

	err := driver.Run(context.Background(), 10, 200)
	if !errors.Is(err, faults.ErrInvalidChannel) {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
}

func TestDisableAllHaltsMotionAndClearsBank(t *testing.T) {
	motion := &fakeMotion{}
	pumps := newFakePumps(10)
	for i := range pumps.states {
		pumps.states[i] = true
	}
	driver := newTestDriver(motion, pumps)

	driver.DisableAll()
	driver.DisableAll()

	if motion.softResets != 2 {
		t.Errorf("soft resets = %d, want 2", motion.softResets)
	}
	if pumps.anyEnabled() {
		t.Error("pumps still enabled after DisableAll")
	}
}
