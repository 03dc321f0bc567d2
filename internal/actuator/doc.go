// Package actuator drives the pump bank. A dispense is a fixed sequence:
// validate the request, enable exactly one pump channel, command the motion
// controller to pull the syringe bank through the scaled distance, wait for
// the move to finish, then disable the channel and rezero the axis. The
// channel is disabled on every exit path so a failed move can never leave a
// pump energized.
package actuator
