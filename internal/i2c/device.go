package i2c

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// I2C_SLAVE from the kernel's i2c-dev uAPI; x/sys/unix does not generate
// the i2c-dev ioctl numbers.
const i2cSlave = 0x0703

// Device is a single I2C peripheral bound to a bus device node and a 7-bit
// address via the I2C_SLAVE ioctl.
type Device struct {
	fd   int
	path string
	addr int
}

// Open opens the bus device node and selects the peripheral address.
func Open(path string, addr int) (*Device, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("i2c: empty device path")
	}
	if addr <= 0 || addr > 0x7f {
		return nil, fmt.Errorf("i2c: invalid 7-bit address %#x", addr)
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("i2c: open %s: %w", path, err)
	}
	if err := unix.IoctlSetInt(fd, i2cSlave, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("i2c: select address %#x on %s: %w", addr, path, err)
	}
	return &Device{fd: fd, path: path, addr: addr}, nil
}

// Path returns the bus device node.
func (d *Device) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

// WriteReg writes one byte to a register.
func (d *Device) WriteReg(reg, value byte) error {
	if d == nil || d.fd < 0 {
		return fmt.Errorf("i2c: device not open")
	}
	if _, err := unix.Write(d.fd, []byte{reg, value}); err != nil {
		return fmt.Errorf("i2c: write reg %#x: %w", reg, err)
	}
	return nil
}

// ReadReg reads one byte from a register.
func (d *Device) ReadReg(reg byte) (byte, error) {
	buf, err := d.readRegs(reg, 1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadReg16 reads a big-endian 16-bit value starting at a register.
func (d *Device) ReadReg16(reg byte) (uint16, error) {
	buf, err := d.readRegs(reg, 2)
	if err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

func (d *Device) readRegs(reg byte, n int) ([]byte, error) {
	if d == nil || d.fd < 0 {
		return nil, fmt.Errorf("i2c: device not open")
	}
	if _, err := unix.Write(d.fd, []byte{reg}); err != nil {
		return nil, fmt.Errorf("i2c: select reg %#x: %w", reg, err)
	}
	buf := make([]byte, n)
	read, err := unix.Read(d.fd, buf)
	if err != nil {
		return nil, fmt.Errorf("i2c: read reg %#x: %w", reg, err)
	}
	if read != n {
		return nil, fmt.Errorf("i2c: short read from reg %#x: got %d of %d bytes", reg, read, n)
	}
	return buf, nil
}

// Close releases the device descriptor.
func (d *Device) Close() error {
	if d == nil || d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}
