package logging

import (
	"context"
	"log/slog"

	"github.com/zackaholic/VHS-Coffeeman/internal/faults"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for pour-job identifiers.
	FieldJobID = "job_id"
	// FieldTag is the standardized structured logging key for RFID tag identifiers.
	FieldTag = "tag"
	// FieldState is the standardized structured logging key for orchestrator states.
	FieldState = "state"
	// FieldChannel is the standardized structured logging key for pump channel indices.
	FieldChannel = "channel"
	// FieldOperation is the standardized structured logging key for operation names
	// (pour, prime, clean, run_pump).
	FieldOperation = "operation"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType is the standardized structured logging key classifying log events.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's suggested next step on warnings and errors.
	FieldErrorHint = "error_hint"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := faults.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if op, ok := faults.OperationFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOperation, op))
	}
	if rid, ok := faults.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
