package infra

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	InitTracer()
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		InitTracer()
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func TestStartUsageSpan_Success(t *testing.T) {
	recorder := setupSpanRecorder(t)

	_, span := StartUsageSpan(context.Background(), "backup")
	MarkSuccess(span, AttrInt("usage.count", 3))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "usage_backup" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("expected ok status, got %v", spans[0].Status().Code)
	}
}

func TestRecordIPFSError(t *testing.T) {
	recorder := setupSpanRecorder(t)

	_, span := StartIPFSSpan(context.Background(), "connect", AttrMultiaddr("/ip4/1.2.3.4/tcp/4001"))
	RecordIPFSError(span, errors.New("boom"), "連線請求失敗")
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	got := spans[0]
	if got.Name() != "ipfs_connect" {
		t.Errorf("unexpected span name %q", got.Name())
	}
	if got.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", got.Status().Code)
	}

	var failed bool
	for _, e := range got.Events() {
		if e.Name == "operation_failed" {
			failed = true
		}
	}
	if !failed {
		t.Error("expected operation_failed event")
	}
}
