// Package gpio provides access to Linux GPIO character devices through the
// v2 uAPI.
//
// It requests output line sets (pump enables, VCR buttons) and single input
// lines (the motion controller's busy/idle signal) by offset, labelled with a
// consumer string so `gpioinfo` shows who holds each line. Active-low wiring
// is handled at request time; callers always work in logical terms where true
// means asserted.
//
// Every request owns its file descriptor exclusively. Close requests when
// done so other processes can claim the lines.
package gpio
