package rfid

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// spidev ioctl numbers, computed from the kernel's _IOW('k', nr, size)
// encoding; x/sys/unix does not generate them.
const (
	spiIOCWrMode        = 0x40016b01 // _IOW('k', 1, u8)
	spiIOCWrBitsPerWord = 0x40016b03 // _IOW('k', 3, u8)
	spiIOCWrMaxSpeedHz  = 0x40046b04 // _IOW('k', 4, u32)
	spiIOCMessage1      = 0x40206b00 // _IOW('k', 0, struct spi_ioc_transfer[1])
)

// spiTransfer mirrors struct spi_ioc_transfer.
type spiTransfer struct {
	txBuf         uint64
	rxBuf         uint64
	length        uint32
	speedHz       uint32
	delayUsecs    uint16
	bitsPerWord   uint8
	csChange      uint8
	txNbits       uint8
	rxNbits       uint8
	wordDelayUsec uint8
	pad           uint8
}

// Bus is an open spidev node configured for the MFRC522 (mode 0, 8-bit
// words).
type Bus struct {
	fd    int
	path  string
	speed uint32
}

// OpenBus opens a spidev node and configures it for the reader.
func OpenBus(path string, speedHz int) (*Bus, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("rfid: empty spi device path")
	}
	if speedHz <= 0 {
		speedHz = 1_000_000
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("rfid: open %s: %w", path, err)
	}
	bus := &Bus{fd: fd, path: path, speed: uint32(speedHz)}

	mode := uint8(0)
	bits := uint8(8)
	speed := bus.speed
	if err := bus.ioctl(spiIOCWrMode, unsafe.Pointer(&mode)); err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("rfid: set spi mode on %s: %w", path, err)
	}
	if err := bus.ioctl(spiIOCWrBitsPerWord, unsafe.Pointer(&bits)); err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("rfid: set spi word size on %s: %w", path, err)
	}
	if err := bus.ioctl(spiIOCWrMaxSpeedHz, unsafe.Pointer(&speed)); err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("rfid: set spi speed on %s: %w", path, err)
	}
	return bus, nil
}

// Path returns the spidev node this bus was opened from.
func (b *Bus) Path() string {
	if b == nil {
		return ""
	}
	return b.path
}

// Transfer clocks tx out while reading len(tx) bytes into rx in one
// full-duplex transaction. rx must be at least as long as tx.
func (b *Bus) Transfer(tx, rx []byte) error {
	if b == nil || b.fd < 0 {
		return fmt.Errorf("rfid: spi bus not open")
	}
	if len(rx) < len(tx) {
		return fmt.Errorf("rfid: rx buffer shorter than tx (%d < %d)", len(rx), len(tx))
	}
	if len(tx) == 0 {
		return nil
	}
	transfer := spiTransfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&tx[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&rx[0]))),
		length:      uint32(len(tx)),
		speedHz:     b.speed,
		bitsPerWord: 8,
	}
	if err := b.ioctl(spiIOCMessage1, unsafe.Pointer(&transfer)); err != nil {
		return fmt.Errorf("rfid: spi transfer: %w", err)
	}
	return nil
}

// Close releases the bus descriptor.
func (b *Bus) Close() error {
	if b == nil || b.fd < 0 {
		return nil
	}
	err := unix.Close(b.fd)
	b.fd = -1
	return err
}

func (b *Bus) ioctl(request uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(b.fd), uintptr(request), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
