package motion

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/zackaholic/VHS-Coffeeman/internal/faults"
)

// Port is the byte transport to the controller, satisfied by *SerialPort.
type Port interface {
	WriteLine(line string) error
	WriteByte(b byte) error
	Close() error
}

// SerialPort is the serial link to the controller.
type SerialPort struct {
	port serial.Port
	path string
}

// OpenSerial opens the controller's serial port and runs the GRBL wake
// sequence: a bare newline, a settle delay for the controller's banner, and
// an input flush so stale response bytes never pair with later commands.
func OpenSerial(path string, baudRate int) (*SerialPort, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, faults.Wrap(faults.ErrConfiguration, "motion", "open", "empty serial port path", nil)
	}
	if baudRate <= 0 {
		baudRate = 115200
	}
	port, err := serial.Open(path, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, faults.Wrap(faults.ErrUnavailable, "motion", "open", fmt.Sprintf("open %s", path), err)
	}

	sp := &SerialPort{port: port, path: path}
	if err := sp.WriteLine(""); err != nil {
		_ = port.Close()
		return nil, err
	}
	time.Sleep(2 * time.Second)
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, faults.Wrap(faults.ErrUnavailable, "motion", "open", "flush controller banner", err)
	}
	return sp, nil
}

// Path returns the device node the port was opened from.
func (p *SerialPort) Path() string {
	if p == nil {
		return ""
	}
	return p.path
}

// WriteLine transmits one newline-terminated command.
func (p *SerialPort) WriteLine(line string) error {
	if p == nil || p.port == nil {
		return faults.Wrap(faults.ErrMotionCommand, "motion", "write", "serial port not open", nil)
	}
	if _, err := p.port.Write([]byte(line + "\n")); err != nil {
		return faults.Wrap(faults.ErrMotionCommand, "motion", "write", fmt.Sprintf("send %q", line), err)
	}
	return nil
}

// WriteByte transmits a single raw byte, used for the soft-reset control
// character.
func (p *SerialPort) WriteByte(b byte) error {
	if p == nil || p.port == nil {
		return faults.Wrap(faults.ErrMotionCommand, "motion", "write", "serial port not open", nil)
	}
	if _, err := p.port.Write([]byte{b}); err != nil {
		return faults.Wrap(faults.ErrMotionCommand, "motion", "write", fmt.Sprintf("send byte %#x", b), err)
	}
	return nil
}

// Close closes the serial port.
func (p *SerialPort) Close() error {
	if p == nil || p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	return err
}
