// Package orchestrator owns the drink state machine. A single reactor
// goroutine consumes sensor events and operator commands, so state
// transitions never run concurrently. A pour blocks the reactor for its
// whole duration; only cup removal or a sensor fault can cut it short, and
// both end in the sticky Error state with every actuator disabled. Error is
// left only by an explicit operator reset.
package orchestrator
