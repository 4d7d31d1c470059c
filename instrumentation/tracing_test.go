package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return tp, recorder
}

func TestRecordError(t *testing.T) {
	tp, recorder := newRecordingTracer(t)

	_, span := tp.Tracer("test").Start(context.Background(), "test-span")
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status().Code)
	}
	if len(spans[0].Events()) != 1 {
		t.Errorf("got %d events, want 1 error event", len(spans[0].Events()))
	}
}

func TestSetSpanSuccess(t *testing.T) {
	tp, recorder := newRecordingTracer(t)

	_, span := tp.Tracer("test").Start(context.Background(), "test-span")
	SetSpanSuccess(span)
	span.End()

	if got := recorder.Ended()[0].Status().Code; got != codes.Ok {
		t.Errorf("status = %v, want Ok", got)
	}
}

func TestAddStorageAttributes(t *testing.T) {
	tp, recorder := newRecordingTracer(t)

	_, span := tp.Tracer("test").Start(context.Background(), "test-span")
	AddStorageAttributes(span, "store_grant", "memory")
	AddGrantAttributes(span, "refresh_token", "app1")
	AddGrantAttributes(span, "", "")
	span.End()

	attrs := map[attribute.Key]string{}
	for _, kv := range recorder.Ended()[0].Attributes() {
		attrs[kv.Key] = kv.Value.AsString()
	}

	want := map[attribute.Key]string{
		AttrStorageOperation: "store_grant",
		AttrStorageType:      "memory",
		AttrGrantType:        "refresh_token",
		AttrClientID:         "app1",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attribute %s = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestTracingHelpers_NilSpan(t *testing.T) {
	// Should not panic
	RecordError(nil, errors.New("boom"))
	SetSpanSuccess(nil)
	SetSpanAttributes(nil, attribute.String("k", "v"))
	AddStorageAttributes(nil, "op", "memory")
	AddGrantAttributes(nil, "code", "client")
}
