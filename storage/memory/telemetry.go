package memory

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/giantswarm/identity-store/instrumentation"
)

// telemetry is embedded by every store to trace and meter its operations
type telemetry struct {
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
	storeType       string
}

func newTelemetry(inst *instrumentation.Instrumentation, storeType string) telemetry {
	t := telemetry{instrumentation: inst, storeType: storeType}
	if inst != nil {
		t.tracer = inst.Tracer("storage")
	}
	return t
}

// registerSize exposes the store's record count through the storage.size gauge
func (t *telemetry) registerSize(logger *slog.Logger, size func() int64) {
	if t.instrumentation == nil {
		return
	}
	if err := t.instrumentation.RegisterStorageSizeCallback(t.storeType, size); err != nil {
		logger.Warn("Failed to register storage size callback", "store", t.storeType, "error", err)
	}
}

// startStorageSpan starts a new span for a storage operation
// Returns a context with the span attached and the span itself
func (t *telemetry) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if t.tracer == nil {
		// Never hand out the caller's span: callers end the returned span.
		return ctx, tracenoop.Span{}
	}

	ctx, span := t.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(
			attribute.String(instrumentation.AttrStorageOperation, operation),
			attribute.String(instrumentation.AttrStorageType, t.storeType),
		))

	return ctx, span
}

// recordStorageOperation records metrics for a storage operation and sets span status.
// found=false marks a lookup that returned nothing.
func (t *telemetry) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, found bool, startTime time.Time) {
	if t.instrumentation == nil {
		return
	}

	durationMs := float64(time.Since(startTime).Microseconds()) / 1000
	result := "success"
	switch {
	case err != nil:
		result = "error"
		instrumentation.RecordError(span, err)
	case !found:
		result = "not_found"
		instrumentation.SetSpanSuccess(span)
	default:
		instrumentation.SetSpanSuccess(span)
	}

	t.instrumentation.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}
