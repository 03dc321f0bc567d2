// Package notifications delivers machine events to the operator's phone.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Categories (pours, errors, hardware) can be gated independently so a busy
// party night does not page the operator for every drink.
//
// All delivery is fire-and-forget; the pour path never waits on the network,
// and machine code depends only on the Service interface.
package notifications
