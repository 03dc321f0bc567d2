package gpio

// GPIO character device v2 ioctl numbers, computed from the kernel's
// _IOWR(0xB4, nr, size) encoding; x/sys/unix does not generate them.
const (
	gpioV2GetLineIoctl       = 0xc250b407 // _IOWR(0xB4, 0x07, struct gpio_v2_line_request)
	gpioV2LineGetValuesIoctl = 0xc010b40e // _IOWR(0xB4, 0x0E, struct gpio_v2_line_values)
	gpioV2LineSetValuesIoctl = 0xc010b40f // _IOWR(0xB4, 0x0F, struct gpio_v2_line_values)
)

// Line flags from the GPIO_V2_LINE_FLAG_* set.
const (
	lineFlagActiveLow = 1 << 1
	lineFlagInput     = 1 << 2
	lineFlagOutput    = 1 << 3
)

const (
	maxRequestLines  = 64
	consumerNameSize = 32
	maxConfigAttrs   = 10
)

// lineAttribute mirrors struct gpio_v2_line_attribute. The value field is a
// union in the kernel header; only the 64-bit view is needed here.
type lineAttribute struct {
	id      uint32
	padding uint32
	value   uint64
}

// lineConfigAttribute mirrors struct gpio_v2_line_config_attribute.
type lineConfigAttribute struct {
	attr lineAttribute
	mask uint64
}

// lineConfig mirrors struct gpio_v2_line_config.
type lineConfig struct {
	flags    uint64
	numAttrs uint32
	padding  [5]uint32
	attrs    [maxConfigAttrs]lineConfigAttribute
}

// lineRequest mirrors struct gpio_v2_line_request.
type lineRequest struct {
	offsets         [maxRequestLines]uint32
	consumer        [consumerNameSize]byte
	config          lineConfig
	numLines        uint32
	eventBufferSize uint32
	padding         [5]uint32
	fd              int32
}

// lineValues mirrors struct gpio_v2_line_values.
type lineValues struct {
	bits uint64
	mask uint64
}
