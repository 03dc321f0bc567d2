package rfid

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// MFRC522 registers.
const (
	regCommand    = 0x01
	regComIEn     = 0x02
	regComIrq     = 0x04
	regError      = 0x06
	regFIFOData   = 0x09
	regFIFOLevel  = 0x0A
	regControl    = 0x0C
	regBitFraming = 0x0D
	regMode       = 0x11
	regTxControl  = 0x14
	regTxASK      = 0x15
	regTMode      = 0x2A
	regTPrescaler = 0x2B
	regTReloadH   = 0x2C
	regTReloadL   = 0x2D
	regVersion    = 0x37
)

// MFRC522 commands.
const (
	cmdIdle       = 0x00
	cmdTransceive = 0x0C
	cmdSoftReset  = 0x0F
)

// ISO 14443A frames used for detection.
const (
	piccReqIdle  = 0x26
	piccAnticoll = 0x93
)

// Transport is the SPI surface the reader needs, satisfied by *Bus.
type Transport interface {
	Transfer(tx, rx []byte) error
}

// ResetLine drives the reader's hardware reset. Satisfied by a single-line
// gpio output request; asserting it holds the chip in reset.
type ResetLine interface {
	Set(index int, active bool) error
}

// Reader is an initialized MFRC522.
type Reader struct {
	bus   Transport
	reset ResetLine
}

// NewReader resets and configures the MFRC522 and switches its antenna on.
func NewReader(bus Transport, reset ResetLine) (*Reader, error) {
	if bus == nil {
		return nil, fmt.Errorf("rfid: nil transport")
	}
	r := &Reader{bus: bus, reset: reset}

	if reset != nil {
		if err := reset.Set(0, true); err != nil {
			return nil, fmt.Errorf("rfid: assert reset: %w", err)
		}
		time.Sleep(50 * time.Millisecond)
		if err := reset.Set(0, false); err != nil {
			return nil, fmt.Errorf("rfid: release reset: %w", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err := r.writeReg(regCommand, cmdSoftReset); err != nil {
		return nil, err
	}
	time.Sleep(50 * time.Millisecond)

	version, err := r.readReg(regVersion)
	if err != nil {
		return nil, err
	}
	if version == 0x00 || version == 0xFF {
		return nil, fmt.Errorf("rfid: reader not responding (version %#x)", version)
	}

	// Timer: ~25ms timeout, TAuto so it starts on transmit end.
	init := []struct{ reg, value byte }{
		{regTMode, 0x8D},
		{regTPrescaler, 0x3E},
		{regTReloadL, 30},
		{regTReloadH, 0},
		{regTxASK, 0x40},
		{regMode, 0x3D},
	}
	for _, step := range init {
		if err := r.writeReg(step.reg, step.value); err != nil {
			return nil, err
		}
	}
	if err := r.antennaOn(); err != nil {
		return nil, err
	}
	return r, nil
}

// ReadTag probes the field for a tag. Absence is (_, false, nil); an error is
// returned only for SPI or protocol failures.
func (r *Reader) ReadTag() (string, bool, error) {
	// REQA is a 7-bit frame.
	if err := r.writeReg(regBitFraming, 0x07); err != nil {
		return "", false, err
	}
	if _, found, err := r.transceive([]byte{piccReqIdle}); err != nil {
		return "", false, err
	} else if !found {
		return "", false, nil
	}

	if err := r.writeReg(regBitFraming, 0x00); err != nil {
		return "", false, err
	}
	uid, found, err := r.transceive([]byte{piccAnticoll, 0x20})
	if err != nil || !found {
		return "", false, err
	}
	if len(uid) != 5 {
		return "", false, nil
	}
	if uid[0]^uid[1]^uid[2]^uid[3] != uid[4] {
		// Collision or noise corrupted the UID; skip this poll.
		return "", false, nil
	}
	return strings.ToUpper(hex.EncodeToString(uid[:4])), true, nil
}

// Close switches the antenna off and parks the chip in reset when a reset
// line is wired.
func (r *Reader) Close() error {
	if r == nil {
		return nil
	}
	value, err := r.readReg(regTxControl)
	if err == nil {
		_ = r.writeReg(regTxControl, value&^0x03)
	}
	if r.reset != nil {
		return r.reset.Set(0, true)
	}
	return nil
}

// transceive runs one Transceive command and returns the FIFO contents. A
// timer timeout (no tag answered) is reported as found=false.
func (r *Reader) transceive(data []byte) ([]byte, bool, error) {
	// Enable transceive interrupts: Tx, Rx, idle, error, timer.
	if err := r.writeReg(regComIEn, 0x77|0x80); err != nil {
		return nil, false, err
	}
	if err := r.writeReg(regCommand, cmdIdle); err != nil {
		return nil, false, err
	}
	// Clear pending IRQs and flush the FIFO.
	if err := r.writeReg(regComIrq, 0x7F); err != nil {
		return nil, false, err
	}
	if err := r.writeReg(regFIFOLevel, 0x80); err != nil {
		return nil, false, err
	}
	for _, b := range data {
		if err := r.writeReg(regFIFOData, b); err != nil {
			return nil, false, err
		}
	}
	if err := r.writeReg(regCommand, cmdTransceive); err != nil {
		return nil, false, err
	}
	// StartSend, preserving the framing bits set by the caller.
	framing, err := r.readReg(regBitFraming)
	if err != nil {
		return nil, false, err
	}
	if err := r.writeReg(regBitFraming, framing|0x80); err != nil {
		return nil, false, err
	}

	deadline := time.Now().Add(50 * time.Millisecond)
	for {
		irq, err := r.readReg(regComIrq)
		if err != nil {
			return nil, false, err
		}
		if irq&0x30 != 0 { // RxIRq or IdleIRq: frame received
			break
		}
		if irq&0x01 != 0 { // TimerIRq: nothing answered
			return nil, false, nil
		}
		if time.Now().After(deadline) {
			return nil, false, nil
		}
	}

	errorBits, err := r.readReg(regError)
	if err != nil {
		return nil, false, err
	}
	if errorBits&0x1B != 0 { // BufferOvfl, ParityErr, ProtocolErr
		return nil, false, nil
	}

	level, err := r.readReg(regFIFOLevel)
	if err != nil {
		return nil, false, err
	}
	buf := make([]byte, 0, level)
	for i := 0; i < int(level); i++ {
		b, err := r.readReg(regFIFOData)
		if err != nil {
			return nil, false, err
		}
		buf = append(buf, b)
	}
	return buf, true, nil
}

func (r *Reader) antennaOn() error {
	value, err := r.readReg(regTxControl)
	if err != nil {
		return err
	}
	if value&0x03 == 0x03 {
		return nil
	}
	return r.writeReg(regTxControl, value|0x03)
}

// The MFRC522 SPI address byte puts the register in bits 6..1; bit 7 set
// marks a read.
func (r *Reader) writeReg(reg, value byte) error {
	tx := []byte{(reg << 1) & 0x7E, value}
	rx := make([]byte, len(tx))
	return r.bus.Transfer(tx, rx)
}

func (r *Reader) readReg(reg byte) (byte, error) {
	tx := []byte{((reg << 1) & 0x7E) | 0x80, 0x00}
	rx := make([]byte, len(tx))
	if err := r.bus.Transfer(tx, rx); err != nil {
		return 0, err
	}
	return rx[1], nil
}
