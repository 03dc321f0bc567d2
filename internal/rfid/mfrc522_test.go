package rfid

import (
	"errors"
	"testing"
)

// scriptedBus emulates enough of the MFRC522 register file for detection:
// writes land in regs, reads come from regs, and the FIFO drains from a
// queued response frame.
type scriptedBus struct {
	regs  map[byte]byte
	fifo  []byte
	fail  bool
	resps [][]byte
}

func newScriptedBus() *scriptedBus {
	return &scriptedBus{regs: map[byte]byte{regVersion: 0x92}}
}

func (b *scriptedBus) queueResponse(frame []byte) {
	b.resps = append(b.resps, frame)
}

func (b *scriptedBus) Transfer(tx, rx []byte) error {
	if b.fail {
		return errors.New("spi failure")
	}
	addr := tx[0]
	reg := (addr >> 1) & 0x3F
	if addr&0x80 != 0 {
		rx[1] = b.readReg(reg)
		return nil
	}
	b.writeReg(reg, tx[1])
	return nil
}

func (b *scriptedBus) readReg(reg byte) byte {
	switch reg {
	case regFIFOLevel:
		return byte(len(b.fifo))
	case regFIFOData:
		if len(b.fifo) == 0 {
			return 0
		}
		value := b.fifo[0]
		b.fifo = b.fifo[1:]
		return value
	}
	return b.regs[reg]
}

func (b *scriptedBus) writeReg(reg, value byte) {
	switch reg {
	case regCommand:
		if value == cmdTransceive {
			// Arm the next scripted response and signal completion or a
			// timer timeout when nothing is queued.
			if len(b.resps) > 0 {
				b.fifo = b.resps[0]
				b.resps = b.resps[1:]
				b.regs[regComIrq] = 0x30
			} else {
				b.regs[regComIrq] = 0x01
			}
		}
	case regComIrq:
		// IRQ clear writes keep whatever the transceive scripted.
		return
	}
	b.regs[reg] = value
}

func uidFrame(uid [4]byte) []byte {
	return []byte{uid[0], uid[1], uid[2], uid[3], uid[0] ^ uid[1] ^ uid[2] ^ uid[3]}
}

func TestReadTagReturnsUppercaseHexUID(t *testing.T) {
	bus := newScriptedBus()
	reader, err := NewReader(bus, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	bus.queueResponse([]byte{0x04, 0x00}) // ATQA
	bus.queueResponse(uidFrame([4]byte{0xDE, 0xAD, 0xBE, 0xEF}))

	tag, present, err := reader.ReadTag()
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if !present {
		t.Fatal("expected tag present")
	}
	if tag != "DEADBEEF" {
		t.Fatalf("tag = %q, want DEADBEEF", tag)
	}
}

func TestReadTagAbsenceIsNotAnError(t *testing.T) {
	bus := newScriptedBus()
	reader, err := NewReader(bus, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	tag, present, err := reader.ReadTag()
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if present || tag != "" {
		t.Fatalf("expected absence, got %q present=%v", tag, present)
	}
}

func TestReadTagRejectsCorruptUID(t *testing.T) {
	bus := newScriptedBus()
	reader, err := NewReader(bus, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	bus.queueResponse([]byte{0x04, 0x00})
	bus.queueResponse([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00}) // bad check byte

	_, present, err := reader.ReadTag()
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if present {
		t.Fatal("corrupt UID must read as absent")
	}
}

func TestNewReaderRejectsDeadChip(t *testing.T) {
	bus := newScriptedBus()
	bus.regs[regVersion] = 0x00
	if _, err := NewReader(bus, nil); err == nil {
		t.Fatal("expected error for unresponsive chip")
	}
}

func TestReadTagPropagatesSPIErrors(t *testing.T) {
	bus := newScriptedBus()
	reader, err := NewReader(bus, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	bus.fail = true
	if _, _, err := reader.ReadTag(); err == nil {
		t.Fatal("expected SPI error to propagate")
	}
}
