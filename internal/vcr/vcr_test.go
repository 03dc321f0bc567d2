package vcr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
)

type recordedSet struct {
	index  int
	active bool
}

type fakeLines struct {
	sets   []recordedSet
	setErr error
}

func (f *fakeLines) Set(index int, active bool) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.sets = append(f.sets, recordedSet{index, active})
	return nil
}

func TestPlayPulsesPlayLine(t *testing.T) {
	lines := &fakeLines{}
	transport := NewTransport(lines, time.Millisecond, logging.NewNop())

	if err := transport.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	want := []recordedSet{{0, true}, {0, false}}
	if len(lines.sets) != 2 || lines.sets[0] != want[0] || lines.sets[1] != want[1] {
		t.Errorf("sets = %v, want %v", lines.sets, want)
	}
}

func TestEjectPulsesEjectLine(t *testing.T) {
	lines := &fakeLines{}
	transport := NewTransport(lines, time.Millisecond, logging.NewNop())

	if err := transport.Eject(context.Background()); err != nil {
		t.Fatalf("Eject failed: %v", err)
	}
	want := []recordedSet{{1, true}, {1, false}}
	if len(lines.sets) != 2 || lines.sets[0] != want[0] || lines.sets[1] != want[1] {
		t.Errorf("sets = %v, want %v", lines.sets, want)
	}
}

func TestPressReleasesOnCancel(t *testing.T) {
	lines := &fakeLines{}
	transport := NewTransport(lines, time.Minute, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := transport.Play(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// The button must not be left pressed.
	last := lines.sets[len(lines.sets)-1]
	if last.active {
		t.Error("button line left asserted after cancellation")
	}
}
