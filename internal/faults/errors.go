// Package faults carries the error taxonomy and context plumbing shared by
// every device client and the orchestrator.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for fault classification. Device clients wrap their errors
// with exactly one marker so callers can classify with errors.Is.
var (
	// ErrInvalidChannel marks a pump index outside the configured channel set.
	ErrInvalidChannel = errors.New("invalid channel")
	// ErrInvalidVolume marks a dispense volume outside the configured bounds.
	ErrInvalidVolume = errors.New("invalid volume")
	// ErrMotionTimeout marks a move that never started or never finished
	// within the timeout window.
	ErrMotionTimeout = errors.New("motion timeout")
	// ErrMotionCommand marks a command that could not be transmitted to the
	// motion controller.
	ErrMotionCommand = errors.New("motion command failed")
	// ErrRecipeNotFound marks a tag with no fully resolvable recipe.
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrSensorRead marks a sensor I/O failure. Single occurrences are
	// transient; the poller escalates only past its absorb threshold.
	ErrSensorRead = errors.New("sensor read failure")
	// ErrMediaUnavailable marks missing or unplayable media. Never fatal.
	ErrMediaUnavailable = errors.New("media unavailable")
	// ErrConfiguration marks invalid or missing configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnavailable marks a device or service that is not reachable.
	ErrUnavailable = errors.New("unavailable")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps a fault to the stable label journaled with failed pours and shown
// in status output.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidChannel):
		return "invalid_channel"
	case errors.Is(err, ErrInvalidVolume):
		return "invalid_volume"
	case errors.Is(err, ErrMotionTimeout):
		return "motion_timeout"
	case errors.Is(err, ErrMotionCommand):
		return "motion_command_failed"
	case errors.Is(err, ErrRecipeNotFound):
		return "recipe_not_found"
	case errors.Is(err, ErrSensorRead):
		return "sensor_read_failure"
	case errors.Is(err, ErrMediaUnavailable):
		return "media_unavailable"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "failure"
	}
}

// Fatal reports whether a fault occurring during active dispensing must abort
// the pour. Media faults never qualify; everything else does.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrMediaUnavailable)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "device failure"
	}
	return strings.Join(parts, ": ")
}
