package infra

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName = "ipfs-service-provider"
)

var globalTracer trace.Tracer

// InitTracer 在 OpenTelemetry provider 設定完成後呼叫
func InitTracer() {
	globalTracer = otel.Tracer(ServiceName)
}

func getTracer() trace.Tracer {
	if globalTracer == nil {
		InitTracer()
	}
	return globalTracer
}

// StartSpan 開始一個新的 span
func StartSpan(ctx context.Context, operationName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := getTracer().Start(ctx, operationName)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// RecordError 記錄錯誤到 span
func RecordError(span trace.Span, err error, description string, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.RecordError(err)
	if description != "" {
		span.SetStatus(codes.Error, description)
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}

// MarkSuccess 標記 span 為成功
func MarkSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}

func AttrString(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func AttrInt(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}

func AttrBool(key string, value bool) attribute.KeyValue {
	return attribute.Bool(key, value)
}

func AttrUserID(id string) attribute.KeyValue {
	return attribute.String("user.id", id)
}

func AttrMultiaddr(addr string) attribute.KeyValue {
	return attribute.String("ipfs.multiaddr", addr)
}

func AttrOperation(operation string) attribute.KeyValue {
	return attribute.String("service.operation", operation)
}

// StartUsageSpan 使用量備份與載入，span 名稱為 usage_<operation>
func StartUsageSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "usage_"+operation, append([]attribute.KeyValue{AttrOperation(operation)}, attrs...)...)
}

// StartIPFSSpan 協調層操作，span 名稱為 ipfs_<operation>
func StartIPFSSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "ipfs_"+operation, append([]attribute.KeyValue{AttrOperation(operation)}, attrs...)...)
}

// RecordIPFSError 記錄協調層操作失敗並加上 operation_failed 事件
func RecordIPFSError(span trace.Span, err error, description string, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	RecordError(span, err, description, append([]attribute.KeyValue{AttrBool("operation.success", false)}, attrs...)...)
	span.AddEvent("operation_failed", trace.WithAttributes(AttrString("error", err.Error())))
}
