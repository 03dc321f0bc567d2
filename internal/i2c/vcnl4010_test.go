package i2c

import (
	"errors"
	"testing"
)

type fakeRegs struct {
	readyAfter int
	polls      int
	reading    uint16
	writes     []byte
	failReads  bool
}

func (f *fakeRegs) WriteReg(reg, value byte) error {
	f.writes = append(f.writes, reg)
	return nil
}

func (f *fakeRegs) ReadReg(reg byte) (byte, error) {
	if f.failReads {
		return 0, errors.New("bus glitch")
	}
	if reg != vcnlRegCommand {
		return 0, nil
	}
	f.polls++
	if f.polls > f.readyAfter {
		return vcnlBitProximityReady, nil
	}
	return 0, nil
}

func (f *fakeRegs) ReadReg16(reg byte) (uint16, error) {
	if reg != vcnlRegProximityData {
		return 0, errors.New("unexpected register")
	}
	return f.reading, nil
}

func TestProximityWaitsForReadyBit(t *testing.T) {
	regs := &fakeRegs{readyAfter: 3, reading: 3100}
	value, err := proximity(regs)
	if err != nil {
		t.Fatalf("proximity returned error: %v", err)
	}
	if value != 3100 {
		t.Fatalf("proximity = %d, want 3100", value)
	}
	if len(regs.writes) == 0 || regs.writes[0] != vcnlRegCommand {
		t.Fatalf("expected measurement trigger write, got %v", regs.writes)
	}
}

func TestProximityPropagatesBusErrors(t *testing.T) {
	regs := &fakeRegs{failReads: true}
	if _, err := proximity(regs); err == nil {
		t.Fatal("expected error from failing bus")
	}
}

func TestProximityTimesOutWhenNeverReady(t *testing.T) {
	regs := &fakeRegs{readyAfter: 1000}
	if _, err := proximity(regs); err == nil {
		t.Fatal("expected timeout error")
	}
}
