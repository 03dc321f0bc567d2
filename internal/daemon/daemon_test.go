package daemon

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
	"github.com/zackaholic/VHS-Coffeeman/internal/orchestrator"
	"github.com/zackaholic/VHS-Coffeeman/internal/recipes"
	"github.com/zackaholic/VHS-Coffeeman/internal/testsupport"
)

type stubMachine struct {
	started atomic.Bool
	pours   atomic.Int32
	resets  atomic.Int32
}

func (m *stubMachine) Start(context.Context) { m.started.Store(true) }
func (m *stubMachine) Stop()                 { m.started.Store(false) }

func (m *stubMachine) Status() orchestrator.Status {
	return orchestrator.Status{State: orchestrator.StateIdle}
}

func (m *stubMachine) Pour(context.Context, string) error {
	m.pours.Add(1)
	return nil
}

func (m *stubMachine) Reset(context.Context) error {
	m.resets.Add(1)
	return nil
}

func (m *stubMachine) Prime(context.Context, int) error            { return nil }
func (m *stubMachine) Clean(context.Context, int) error            { return nil }
func (m *stubMachine) RunPump(context.Context, int, float64) error { return nil }

type stubPoller struct {
	running atomic.Bool
}

func (p *stubPoller) Start(context.Context) { p.running.Store(true) }
func (p *stubPoller) Stop()                 { p.running.Store(false) }

type stubLibrary struct{}

func (stubLibrary) List() ([]recipes.Recipe, error) {
	return []recipes.Recipe{{Name: "Margarita", Tag: "DEADBEEF"}}, nil
}

func (stubLibrary) Reload() (int, error) { return 1, nil }

func newTestDaemon(t *testing.T) (*Daemon, *stubMachine, *stubPoller) {
	t.Helper()
	machine := &stubMachine{}
	poller := &stubPoller{}
	d, err := New(Options{
		Config:  testsupport.NewConfig(t),
		Logger:  logging.NewNop(),
		Machine: machine,
		Poller:  poller,
		Library: stubLibrary{},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d, machine, poller
}

func TestStartStopLifecycle(t *testing.T) {
	d, machine, poller := newTestDaemon(t)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if !machine.started.Load() {
		t.Error("machine not started")
	}
	if !poller.running.Load() {
		t.Error("poller not started")
	}
	if !d.Status(context.Background()).Running {
		t.Error("status reports not running")
	}

	d.Stop()
	if machine.started.Load() {
		t.Error("machine still running after Stop")
	}
	if poller.running.Load() {
		t.Error("poller still running after Stop")
	}
	if d.Status(context.Background()).Running {
		t.Error("status reports running after Stop")
	}
}

func TestSecondStartWhileRunningFails(t *testing.T) {
	d, _, _ := newTestDaemon(t)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second Start succeeded")
	}
}

func TestLockExcludesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	machine := &stubMachine{}
	poller := &stubPoller{}
	first, err := New(Options{Config: cfg, Logger: logging.NewNop(), Machine: machine, Poller: poller, Library: stubLibrary{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })

	second, err := New(Options{Config: cfg, Logger: logging.NewNop(), Machine: &stubMachine{}, Poller: &stubPoller{}, Library: stubLibrary{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second daemon acquired the lock")
	}
}

func TestDelegatesToMachine(t *testing.T) {
	d, machine, _ := newTestDaemon(t)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Pour(ctx, "DEADBEEF"); err != nil {
		t.Fatalf("Pour failed: %v", err)
	}
	if err := d.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if machine.pours.Load() != 1 || machine.resets.Load() != 1 {
		t.Errorf("delegations = pours %d resets %d", machine.pours.Load(), machine.resets.Load())
	}

	list, err := d.Recipes()
	if err != nil || len(list) != 1 {
		t.Fatalf("Recipes = %v, %v", list, err)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	d, _, _ := newTestDaemon(t)

	ok, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if ok || message == "" {
		t.Errorf("expected not-configured result, got ok=%v message=%q", ok, message)
	}
}
