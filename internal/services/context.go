package services

import "context"

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	stageKey     contextKey = "stage"
	triggerKey   contextKey = "trigger"
	requestIDKey contextKey = "request_id"
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithRunID annotates context with the pipeline run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return withValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the pipeline run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, runIDKey) }

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, stageKey) }

// WithTrigger records what started the run (schedule, cli, api).
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return withValue(ctx, triggerKey, trigger)
}

// TriggerFromContext returns the run trigger if present.
func TriggerFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, triggerKey) }

// WithRequestID annotates context with a correlation identifier, such as an
// API X-Request-ID or a scheduler event ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, requestIDKey) }
