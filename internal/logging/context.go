package logging

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	runIDKey contextKey = iota
	stageKey
	documentIDKey
	documentPathKey
)

// ContextWithRunID tags the context with a per-run correlation identifier.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, runID)
}

// ContextWithStage tags the context with the active pipeline stage name.
func ContextWithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// ContextWithDocument tags the context with the ledger document being worked.
func ContextWithDocument(ctx context.Context, id int64, path string) context.Context {
	ctx = context.WithValue(ctx, documentIDKey, id)
	if path != "" {
		ctx = context.WithValue(ctx, documentPathKey, path)
	}
	return ctx
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if runID, ok := ctx.Value(runIDKey).(string); ok {
		fields = append(fields, slog.String(FieldRunID, runID))
	}
	if stage, ok := ctx.Value(stageKey).(string); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if id, ok := ctx.Value(documentIDKey).(int64); ok {
		fields = append(fields, slog.Int64(FieldDocID, id))
	}
	if path, ok := ctx.Value(documentPathKey).(string); ok {
		fields = append(fields, slog.String(FieldPath, path))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from
// the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
