package gpio

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// OutputLines is a claimed set of output lines addressed by request index,
// in the order they were passed to RequestOutputLines.
type OutputLines struct {
	fd    int
	count int
}

// Count returns the number of lines in the request.
func (l *OutputLines) Count() int {
	if l == nil {
		return 0
	}
	return l.count
}

// Set asserts or deasserts a single line by request index.
func (l *OutputLines) Set(index int, active bool) error {
	if l == nil || l.fd < 0 {
		return fmt.Errorf("gpio: output lines not open")
	}
	if index < 0 || index >= l.count {
		return fmt.Errorf("gpio: line index %d out of range [0, %d)", index, l.count)
	}
	values := lineValues{mask: 1 << uint(index)}
	if active {
		values.bits = 1 << uint(index)
	}
	if err := ioctl(l.fd, gpioV2LineSetValuesIoctl, unsafePointer(&values)); err != nil {
		return fmt.Errorf("gpio: set line %d: %w", index, err)
	}
	return nil
}

// SetAll drives every line in the request to the same state in one ioctl.
func (l *OutputLines) SetAll(active bool) error {
	if l == nil || l.fd < 0 {
		return fmt.Errorf("gpio: output lines not open")
	}
	mask := uint64(1)<<uint(l.count) - 1
	values := lineValues{mask: mask}
	if active {
		values.bits = mask
	}
	if err := ioctl(l.fd, gpioV2LineSetValuesIoctl, unsafePointer(&values)); err != nil {
		return fmt.Errorf("gpio: set all lines: %w", err)
	}
	return nil
}

// Close releases the line request.
func (l *OutputLines) Close() error {
	if l == nil || l.fd < 0 {
		return nil
	}
	err := unix.Close(l.fd)
	l.fd = -1
	return err
}

// InputLine is a single claimed input line.
type InputLine struct {
	fd int
}

// Get reads the logical state of the line.
func (l *InputLine) Get() (bool, error) {
	if l == nil || l.fd < 0 {
		return false, fmt.Errorf("gpio: input line not open")
	}
	values := lineValues{mask: 1}
	if err := ioctl(l.fd, gpioV2LineGetValuesIoctl, unsafePointer(&values)); err != nil {
		return false, fmt.Errorf("gpio: get line: %w", err)
	}
	return values.bits&1 != 0, nil
}

// Close releases the line request.
func (l *InputLine) Close() error {
	if l == nil || l.fd < 0 {
		return nil
	}
	err := unix.Close(l.fd)
	l.fd = -1
	return err
}

func ioctl(fd int, request uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(request), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func unsafePointer[T any](v *T) unsafe.Pointer {
	return unsafe.Pointer(v)
}
