// Package ipc is the wire between the CLI and the daemon: a JSON-RPC
// service on a Unix socket plus the typed client that dials it.
//
// The request/response types here are the protocol. Machine state, recipes,
// and journal rows are converted into flat wire structs so the CLI never
// imports the domain packages, and the client dials with a short timeout so
// commands fail fast when the daemon is offline.
package ipc
