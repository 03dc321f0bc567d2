// Package journal persists pour and maintenance history in SQLite. The
// journal is an audit trail for the operator, not a control surface; the
// orchestrator degrades to logging when a write fails.
package journal
