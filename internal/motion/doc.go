// Package motion serializes commands to the GRBL-style motion controller
// that drives every pump through one shared stepper axis.
//
// Moves are fire-and-forget over the serial link; completion is observed on
// a digital busy/idle status line. The wait is two-phase by design: first the
// line must show busy (the controller actually started the move), then idle
// again (it finished). A controller that never leaves idle did not
// necessarily obey the command, so "never started" and "never finished" are
// both timeouts.
package motion
