package motion

// StatusLine reports whether the controller is executing a move.
type StatusLine interface {
	Busy() (bool, error)
}

// LineReader is the single-input-line surface a gpio request provides.
type LineReader interface {
	Get() (bool, error)
}

// gpioStatusLine adapts a raw input line to busy/idle terms. With
// busyActiveLow wiring the line reads low while a move executes.
type gpioStatusLine struct {
	line          LineReader
	busyActiveLow bool
}

// NewGPIOStatusLine wraps the controller's status line.
func NewGPIOStatusLine(line LineReader, busyActiveLow bool) StatusLine {
	return &gpioStatusLine{line: line, busyActiveLow: busyActiveLow}
}

func (s *gpioStatusLine) Busy() (bool, error) {
	high, err := s.line.Get()
	if err != nil {
		return false, err
	}
	if s.busyActiveLow {
		return !high, nil
	}
	return high, nil
}
