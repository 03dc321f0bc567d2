package gpio

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Chip wraps an open GPIO character device such as /dev/gpiochip0.
type Chip struct {
	fd   int
	path string
}

// Open opens the GPIO character device at path.
func Open(path string) (*Chip, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gpio: empty chip path")
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("gpio: open %s: %w", path, err)
	}
	return &Chip{fd: fd, path: path}, nil
}

// Path returns the device node this chip was opened from.
func (c *Chip) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// Close releases the chip descriptor. Line requests obtained from the chip
// remain valid until closed themselves.
func (c *Chip) Close() error {
	if c == nil || c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}

func (c *Chip) requestLines(offsets []int, consumer string, flags uint64) (int, error) {
	if c == nil || c.fd < 0 {
		return -1, fmt.Errorf("gpio: chip not open")
	}
	if len(offsets) == 0 {
		return -1, fmt.Errorf("gpio: no line offsets requested")
	}
	if len(offsets) > maxRequestLines {
		return -1, fmt.Errorf("gpio: too many line offsets (%d)", len(offsets))
	}

	var req lineRequest
	for i, offset := range offsets {
		if offset < 0 {
			return -1, fmt.Errorf("gpio: invalid line offset %d", offset)
		}
		req.offsets[i] = uint32(offset)
	}
	req.numLines = uint32(len(offsets))
	req.config.flags = flags
	copyConsumer(&req, consumer)

	if err := ioctl(c.fd, gpioV2GetLineIoctl, unsafePointer(&req)); err != nil {
		return -1, fmt.Errorf("gpio: request lines %v on %s: %w", offsets, c.path, err)
	}
	return int(req.fd), nil
}

// RequestOutputLines claims the given offsets as a single output request.
// All lines start deasserted.
func (c *Chip) RequestOutputLines(offsets []int, consumer string, activeLow bool) (*OutputLines, error) {
	flags := uint64(lineFlagOutput)
	if activeLow {
		flags |= lineFlagActiveLow
	}
	fd, err := c.requestLines(offsets, consumer, flags)
	if err != nil {
		return nil, err
	}
	lines := &OutputLines{fd: fd, count: len(offsets)}
	if err := lines.SetAll(false); err != nil {
		_ = lines.Close()
		return nil, err
	}
	return lines, nil
}

// RequestInputLine claims a single offset as an input request.
func (c *Chip) RequestInputLine(offset int, consumer string, activeLow bool) (*InputLine, error) {
	flags := uint64(lineFlagInput)
	if activeLow {
		flags |= lineFlagActiveLow
	}
	fd, err := c.requestLines([]int{offset}, consumer, flags)
	if err != nil {
		return nil, err
	}
	return &InputLine{fd: fd}, nil
}

func copyConsumer(req *lineRequest, consumer string) {
	// Leave room for the NUL terminator the kernel expects.
	max := len(req.consumer) - 1
	if len(consumer) > max {
		consumer = consumer[:max]
	}
	for i := 0; i < len(consumer); i++ {
		req.consumer[i] = consumer[i]
	}
}
