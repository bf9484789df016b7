package middleware

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

type itemInput struct {
	ID string `path:"id"`
}

type itemOutput struct {
	Body struct {
		ID string `json:"id"`
	}
}

func TestPrometheusMiddleware_UsesRouteTemplate(t *testing.T) {
	if err := InitPrometheusMetrics(zerolog.Nop()); err != nil {
		t.Fatalf("init metrics: %v", err)
	}

	_, api := humatest.New(t)
	api.UseMiddleware(PrometheusMiddleware(zerolog.Nop()))
	huma.Register(api, huma.Operation{
		OperationID: "get-item",
		Method:      http.MethodGet,
		Path:        "/items/{id}",
	}, func(ctx context.Context, input *itemInput) (*itemOutput, error) {
		if input.ID == "missing" {
			return nil, huma.Error404NotFound("not found")
		}
		resp := &itemOutput{}
		resp.Body.ID = input.ID
		return resp, nil
	})

	api.Get("/items/a")
	api.Get("/items/b")
	api.Get("/items/missing")

	if got := testutil.ToFloat64(httpStats.requests.WithLabelValues("GET", "/items/{id}", "200")); got != 2 {
		t.Errorf("expected 2 successful requests, got %v", got)
	}
	if got := testutil.ToFloat64(httpStats.requests.WithLabelValues("GET", "/items/{id}", "404")); got != 1 {
		t.Errorf("expected 1 not found request, got %v", got)
	}
	if got := testutil.ToFloat64(httpStats.inFlight.WithLabelValues("GET", "/items/{id}")); got != 0 {
		t.Errorf("expected no in-flight requests, got %v", got)
	}
}

func TestUpdateInfrastructureHealth(t *testing.T) {
	if err := InitPrometheusMetrics(zerolog.Nop()); err != nil {
		t.Fatalf("init metrics: %v", err)
	}

	UpdateInfrastructureHealth("cache", "redis", true, 1500*time.Microsecond)
	if got := testutil.ToFloat64(infraStats.up.WithLabelValues("cache", "redis")); got != 1 {
		t.Errorf("expected healthy, got %v", got)
	}
	if got := testutil.ToFloat64(infraStats.latency.WithLabelValues("cache", "redis")); got != 1.5 {
		t.Errorf("expected 1.5ms, got %v", got)
	}

	UpdateInfrastructureHealth("cache", "redis", false, -1)
	if got := testutil.ToFloat64(infraStats.up.WithLabelValues("cache", "redis")); got != 0 {
		t.Errorf("expected unhealthy, got %v", got)
	}
	if got := testutil.ToFloat64(infraStats.latency.WithLabelValues("cache", "redis")); got != 1.5 {
		t.Errorf("latency should be unchanged, got %v", got)
	}
}
