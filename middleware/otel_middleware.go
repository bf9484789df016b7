package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const otelExportInterval = 30 * time.Second

type OtelConfig struct {
	ServiceName     string
	ServiceVersion  string
	Environment     string
	OTLPEndpoint    string
	SampleRatio     float64 // 0 或 >= 1 表示全部取樣
	Enabled         bool
	MetricsEnabled  bool
	TracesEnabled   bool
	DevelopmentMode bool // 開發模式輸出到 stdout，否則送到 OTLP

	// Registerer OTel metrics 透過此 registry 出現在 /metrics，nil 時不輸出到 Prometheus
	Registerer prometheus.Registerer
}

// httpInstruments 請求層級的 OTel 指標
type httpInstruments struct {
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
}

var (
	tracer      trace.Tracer
	instruments *httpInstruments
)

// InitOpenTelemetry 設定 trace 與 metric provider，回傳的函數在關機時呼叫
func InitOpenTelemetry(config OtelConfig, logger zerolog.Logger) (func(), error) {
	if !config.Enabled {
		return func() {}, nil
	}

	ctx := context.Background()
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(config.ServiceName),
		semconv.ServiceVersionKey.String(config.ServiceVersion),
		semconv.DeploymentEnvironmentKey.String(config.Environment),
		semconv.ServiceInstanceIDKey.String(fmt.Sprintf("%s-%d", config.ServiceName, time.Now().Unix())),
	)

	var shutdownFuncs []func(context.Context) error

	if config.TracesEnabled {
		shutdown, err := setupTraceProvider(ctx, res, config, logger)
		if err != nil {
			return nil, fmt.Errorf("setup trace provider: %w", err)
		}
		shutdownFuncs = append(shutdownFuncs, shutdown)
		tracer = otel.Tracer(config.ServiceName)
	}

	if config.MetricsEnabled {
		shutdown, err := setupMeterProvider(ctx, res, config, logger)
		if err != nil {
			return nil, fmt.Errorf("setup meter provider: %w", err)
		}
		shutdownFuncs = append(shutdownFuncs, shutdown)

		instruments, err = newHTTPInstruments(otel.Meter(config.ServiceName))
		if err != nil {
			return nil, err
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info().
		Str("otlp_endpoint", config.OTLPEndpoint).
		Float64("sample_ratio", config.SampleRatio).
		Bool("traces_enabled", config.TracesEnabled).
		Bool("metrics_enabled", config.MetricsEnabled).
		Bool("development_mode", config.DevelopmentMode).
		Msg("OpenTelemetry 初始化成功")

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs []error
		for _, shutdown := range shutdownFuncs {
			errs = append(errs, shutdown(shutdownCtx))
		}
		if err := errors.Join(errs...); err != nil {
			logger.Error().Err(err).Msg("OpenTelemetry 關閉時發生錯誤")
			return
		}
		logger.Info().Msg("OpenTelemetry 清理完成")
	}, nil
}

// OpenTelemetryMiddleware 每個 huma operation 建立一個 server span，並以路由模板記錄 OTel 指標
func OpenTelemetryMiddleware(config OtelConfig, logger zerolog.Logger) func(huma.Context, func(huma.Context)) {
	if !config.Enabled {
		return func(ctx huma.Context, next func(huma.Context)) {
			next(ctx)
		}
	}

	l := logger.With().Str("module", "http").Logger()

	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		carrier := &HeaderCarrier{ctx: ctx}
		method := ctx.Method()
		route := routeTemplate(ctx)
		requestID := chimiddleware.GetReqID(ctx.Context())

		reqCtx := otel.GetTextMapPropagator().Extract(ctx.Context(), carrier)
		var span trace.Span
		if config.TracesEnabled && tracer != nil {
			reqCtx, span = tracer.Start(reqCtx, method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPMethodKey.String(method),
					semconv.HTTPRouteKey.String(route),
					semconv.HTTPUserAgentKey.String(ctx.Header("User-Agent")),
					attribute.String("net.peer.addr", ctx.RemoteAddr()),
					attribute.String("http.request_id", requestID),
				),
			)
			defer span.End()

			ctx.SetHeader("X-Trace-ID", span.SpanContext().TraceID().String())
			otel.GetTextMapPropagator().Inject(reqCtx, carrier)
		}

		routeAttrs := metric.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", route),
		)
		if instruments != nil {
			instruments.active.Add(reqCtx, 1, routeAttrs)
			defer instruments.active.Add(reqCtx, -1, routeAttrs)
		}

		// handler 內建立的 span 掛在請求 span 之下
		next(huma.WithContext(ctx, reqCtx))

		duration := time.Since(start)
		status := ctx.Status()

		if instruments != nil {
			instruments.duration.Record(reqCtx, duration.Seconds(), metric.WithAttributes(
				attribute.String("http.request.method", method),
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", status),
			))
		}

		if span != nil {
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
			switch {
			case status >= 500:
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
			case status >= 400:
				// 4xx 不標記 span 失敗
				span.AddEvent("client_error", trace.WithAttributes(attribute.Int("status_code", status)))
			default:
				span.SetStatus(codes.Ok, "")
			}
		}

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = l.Error()
		case status >= 400:
			event = l.Warn()
		default:
			event = l.Info()
		}
		event = event.
			Str("request_id", requestID).
			Str("method", method).
			Str("route", route).
			Int("status_code", status).
			Dur("duration", duration)
		if span != nil {
			event = event.Str("trace_id", span.SpanContext().TraceID().String())
		}
		event.Msg("HTTP request completed")
	}
}

// routeTemplate 取得 huma 路由模板（例如 /users/{id}），沒有 operation 時使用實際 path
func routeTemplate(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil && op.Path != "" {
		return op.Path
	}
	return ctx.URL().Path
}

func newSampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func setupTraceProvider(ctx context.Context, res *resource.Resource, config OtelConfig, logger zerolog.Logger) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	var err error

	if config.DevelopmentMode {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		logger.Info().Msg("使用 stdout trace exporter（開發模式）")
	} else {
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(config.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		logger.Info().Str("endpoint", config.OTLPEndpoint).Msg("使用 OTLP gRPC trace exporter")
	}
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(config.SampleRatio)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func setupMeterProvider(ctx context.Context, res *resource.Resource, config OtelConfig, logger zerolog.Logger) (func(context.Context) error, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if config.Registerer != nil {
		exporter, err := otelprom.New(otelprom.WithRegisterer(config.Registerer))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(exporter))
	}

	if config.DevelopmentMode {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(otelExportInterval))))
	} else {
		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(config.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("無法建立 OTLP metric exporter，只輸出到 Prometheus")
		} else {
			opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(otelExportInterval))))
		}
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	duration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create request duration histogram: %w", err)
	}

	active, err := meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP server requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create active requests counter: %w", err)
	}

	return &httpInstruments{duration: duration, active: active}, nil
}

// HeaderCarrier 讓 propagator 讀寫 huma.Context 的 header
type HeaderCarrier struct {
	ctx huma.Context
}

func (h *HeaderCarrier) Get(key string) string {
	return h.ctx.Header(key)
}

func (h *HeaderCarrier) Set(key, value string) {
	h.ctx.SetHeader(key, value)
}

// Keys huma.Context 無法列出所有 header，Extract 不需要
func (h *HeaderCarrier) Keys() []string {
	return nil
}
