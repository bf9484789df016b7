package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// httpMetrics 以 huma 路由模板為 label 的請求指標
type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

// infraMetrics MongoDB、Redis、RabbitMQ 的連線狀態
type infraMetrics struct {
	up      *prometheus.GaugeVec
	latency *prometheus.GaugeVec
}

var (
	promRegistry *prometheus.Registry
	httpStats    *httpMetrics
	infraStats   *infraMetrics
)

func newHTTPMetrics() *httpMetrics {
	return &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, route, and status code",
		}, []string{"method", "route", "status_code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_requests_active",
			Help: "Number of active HTTP requests",
		}, []string{"method", "route"}),
	}
}

func newInfraMetrics() *infraMetrics {
	return &infraMetrics{
		up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "infrastructure_health_status",
			Help: "Health status of infrastructure components (1=healthy, 0=unhealthy)",
		}, []string{"service", "component"}),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "infrastructure_connection_latency_ms",
			Help: "Ping latency to infrastructure components in milliseconds",
		}, []string{"service", "component"}),
	}
}

// InitPrometheusMetrics 建立 /metrics 使用的 registry，需在 OpenTelemetry 與 service metrics 之前呼叫
func InitPrometheusMetrics(logger zerolog.Logger) error {
	registry := prometheus.NewRegistry()
	h := newHTTPMetrics()
	infra := newInfraMetrics()

	named := map[string]prometheus.Collector{
		"http_requests_total":                  h.requests,
		"http_request_duration_seconds":        h.duration,
		"http_requests_active":                 h.inFlight,
		"infrastructure_health_status":         infra.up,
		"infrastructure_connection_latency_ms": infra.latency,
		"go_collector":                         collectors.NewGoCollector(),
		"process_collector":                    collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for name, c := range named {
		if err := registry.Register(c); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}

	promRegistry = registry
	httpStats = h
	infraStats = infra

	logger.Info().Msg("Prometheus metrics 初始化成功")
	return nil
}

// GetStandardPrometheusHandler /metrics handler
func GetStandardPrometheusHandler() http.Handler {
	if promRegistry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Prometheus registry not initialized", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{Registry: promRegistry})
}

// GetPrometheusRegistry 供 metrics 套件與 OTel exporter 註冊
func GetPrometheusRegistry() *prometheus.Registry {
	return promRegistry
}

// PrometheusMiddleware 記錄每個 huma operation 的請求數、耗時與進行中請求
func PrometheusMiddleware(logger zerolog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if httpStats == nil {
			next(ctx)
			return
		}

		start := time.Now()
		method := ctx.Method()
		route := routeTemplate(ctx)

		inFlight := httpStats.inFlight.WithLabelValues(method, route)
		inFlight.Inc()
		defer inFlight.Dec()

		next(ctx)

		status := strconv.Itoa(ctx.Status())
		httpStats.requests.WithLabelValues(method, route, status).Inc()
		httpStats.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

		logger.Debug().
			Str("method", method).
			Str("route", route).
			Str("status_code", status).
			Msg("HTTP metrics recorded")
	}
}

// UpdateInfrastructureHealth 更新基礎設施健康狀態，latency < 0 時不更新延遲
func UpdateInfrastructureHealth(service, component string, healthy bool, latency time.Duration) {
	if infraStats == nil {
		return
	}

	up := 0.0
	if healthy {
		up = 1.0
	}
	infraStats.up.WithLabelValues(service, component).Set(up)
	if latency >= 0 {
		infraStats.latency.WithLabelValues(service, component).Set(float64(latency.Microseconds()) / 1000)
	}
}
