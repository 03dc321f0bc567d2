package gpio

import (
	"testing"
	"unsafe"
)

// The kernel rejects a v2 ioctl whose argument size does not match the size
// encoded in the request number, so the Go struct layouts must reproduce the
// C layouts exactly.
func TestUAPIStructSizesMatchIoctlEncoding(t *testing.T) {
	ioctlSize := func(request uint32) uintptr {
		return uintptr((request >> 16) & 0x3fff)
	}

	if got, want := unsafe.Sizeof(lineRequest{}), ioctlSize(gpioV2GetLineIoctl); got != want {
		t.Errorf("sizeof lineRequest = %d, ioctl encodes %d", got, want)
	}
	if got, want := unsafe.Sizeof(lineValues{}), ioctlSize(gpioV2LineGetValuesIoctl); got != want {
		t.Errorf("sizeof lineValues = %d, ioctl encodes %d", got, want)
	}
	if got, want := unsafe.Sizeof(lineValues{}), ioctlSize(gpioV2LineSetValuesIoctl); got != want {
		t.Errorf("sizeof lineValues = %d, set ioctl encodes %d", got, want)
	}
	if got := unsafe.Sizeof(lineConfig{}); got != 272 {
		t.Errorf("sizeof lineConfig = %d, want 272", got)
	}
	if got := unsafe.Sizeof(lineAttribute{}); got != 16 {
		t.Errorf("sizeof lineAttribute = %d, want 16", got)
	}
	if got := unsafe.Sizeof(lineConfigAttribute{}); got != 24 {
		t.Errorf("sizeof lineConfigAttribute = %d, want 24", got)
	}
}

func TestCopyConsumerLeavesNulTerminator(t *testing.T) {
	var req lineRequest
	long := "coffeeman-pump-lines-with-a-very-long-consumer-name"
	copyConsumer(&req, long)
	if req.consumer[len(req.consumer)-1] != 0 {
		t.Error("consumer name overwrote the NUL terminator slot")
	}
	if req.consumer[0] != 'c' {
		t.Errorf("consumer[0] = %q, want 'c'", req.consumer[0])
	}
}
