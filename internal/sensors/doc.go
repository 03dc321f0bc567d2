// Package sensors polls the tag reader and the cup proximity sensor on one
// loop and turns raw readings into edge events. Tag detections are suppressed
// while the same tag stays in the field; cup presence is reported only on
// transitions. Isolated proximity read failures are absorbed up to a
// configured streak, after which the poller latches faulted and emits a
// single fault event.
package sensors
