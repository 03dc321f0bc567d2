package i2c

import (
	"fmt"
	"time"
)

// VCNL4010 register map and command bits.
const (
	vcnlRegCommand       = 0x80
	vcnlRegProductID     = 0x81
	vcnlRegProximityRate = 0x82
	vcnlRegIRLEDCurrent  = 0x83
	vcnlRegProximityData = 0x87

	vcnlCmdMeasureProximity = 0x08
	vcnlBitProximityReady   = 0x20

	// Upper nibble of the product ID register identifies a VCNL4010.
	vcnlProductID = 0x21

	// IR LED current in 10mA units: 0x14 = 200mA.
	vcnlIRLEDCurrent200mA = 0x14
)

// Vcnl4010 drives the VCNL4010 proximity sensor. Readings are 16-bit raw
// counts where higher values mean closer objects; threshold comparison is the
// caller's concern.
type Vcnl4010 struct {
	dev *Device
}

// Regs is the register surface Vcnl4010 needs, satisfied by *Device.
type Regs interface {
	WriteReg(reg, value byte) error
	ReadReg(reg byte) (byte, error)
	ReadReg16(reg byte) (uint16, error)
}

// NewVcnl4010 verifies the sensor's product ID and programs the measurement
// rate and IR LED current.
func NewVcnl4010(dev *Device) (*Vcnl4010, error) {
	if dev == nil {
		return nil, fmt.Errorf("vcnl4010: nil device")
	}
	id, err := dev.ReadReg(vcnlRegProductID)
	if err != nil {
		return nil, fmt.Errorf("vcnl4010: read product id: %w", err)
	}
	if id != vcnlProductID {
		return nil, fmt.Errorf("vcnl4010: unexpected product id %#x (want %#x)", id, vcnlProductID)
	}
	// Slowest self-timed rate; measurements are triggered on demand anyway.
	if err := dev.WriteReg(vcnlRegProximityRate, 0x00); err != nil {
		return nil, fmt.Errorf("vcnl4010: set proximity rate: %w", err)
	}
	if err := dev.WriteReg(vcnlRegIRLEDCurrent, vcnlIRLEDCurrent200mA); err != nil {
		return nil, fmt.Errorf("vcnl4010: set ir led current: %w", err)
	}
	return &Vcnl4010{dev: dev}, nil
}

// Proximity triggers one on-demand measurement and returns the raw reading.
func (s *Vcnl4010) Proximity() (uint16, error) {
	return proximity(s.dev)
}

func proximity(regs Regs) (uint16, error) {
	if err := regs.WriteReg(vcnlRegCommand, vcnlCmdMeasureProximity); err != nil {
		return 0, fmt.Errorf("vcnl4010: trigger measurement: %w", err)
	}
	for attempt := 0; attempt < 50; attempt++ {
		status, err := regs.ReadReg(vcnlRegCommand)
		if err != nil {
			return 0, fmt.Errorf("vcnl4010: poll measurement: %w", err)
		}
		if status&vcnlBitProximityReady != 0 {
			return regs.ReadReg16(vcnlRegProximityData)
		}
		time.Sleep(time.Millisecond)
	}
	return 0, fmt.Errorf("vcnl4010: measurement never became ready")
}
