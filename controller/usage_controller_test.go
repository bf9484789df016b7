package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"ipfs-service-provider/model"
	"ipfs-service-provider/service"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/rs/zerolog"
)

type nopUsageCollection struct{}

func (nopUsageCollection) DeleteAll(ctx context.Context) (int64, error) { return 0, nil }
func (nopUsageCollection) Insert(ctx context.Context, records []*model.UsageRecord) error {
	return nil
}
func (nopUsageCollection) FindAll(ctx context.Context) ([]*model.UsageRecord, error) {
	return nil, nil
}

func setupUsageAPI(t *testing.T, events []model.UsageEvent) humatest.TestAPI {
	t.Helper()
	store := service.NewUsageStore()
	store.ReplaceAll(events)
	svc := service.NewUsageService(zerolog.Nop(), store, nopUsageCollection{}, 24*time.Hour)

	_, api := humatest.New(t)
	NewUsageController(zerolog.Nop(), svc, 20).RegisterRoutes(api)
	return api
}

func usageEvent(ip, method, path string) model.UsageEvent {
	return model.UsageEvent{SourceAddress: ip, Method: method, Path: path, Timestamp: time.Now().UnixMilli()}
}

func TestUsageController_Summary(t *testing.T) {
	api := setupUsageAPI(t, []model.UsageEvent{
		usageEvent("a", "GET", "/ipfs"),
		usageEvent("b", "GET", "/ipfs"),
	})

	resp := api.Get("/usage")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != 2 {
		t.Errorf("expected status 2, got %d", body.Status)
	}
}

func TestUsageController_TopIPs(t *testing.T) {
	var events []model.UsageEvent
	for i := 0; i < 25; i++ {
		events = append(events, usageEvent(fmt.Sprintf("10.0.0.%d", i), "GET", "/"))
	}
	events = append(events, usageEvent("10.0.0.3", "GET", "/"))

	api := setupUsageAPI(t, events)
	resp := api.Get("/usage/ips")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		IPs []model.IPCount `json:"ips"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.IPs) != 20 {
		t.Fatalf("expected 20 entries, got %d", len(body.IPs))
	}
	if body.IPs[0] != (model.IPCount{IP: "10.0.0.3", Cnt: 2}) {
		t.Errorf("unexpected top entry %+v", body.IPs[0])
	}
}

func TestUsageController_TopEndpointsEmpty(t *testing.T) {
	api := setupUsageAPI(t, nil)

	resp := api.Get("/usage/endpoints")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		Endpoints []model.EndpointCount `json:"endpoints"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Endpoints == nil || len(body.Endpoints) != 0 {
		t.Errorf("expected empty list, got %#v", body.Endpoints)
	}
}

func TestUsageController_MalformedEventReturns422(t *testing.T) {
	api := setupUsageAPI(t, []model.UsageEvent{
		usageEvent("a", "GET", "/"),
		{Method: "GET", Path: "/", Timestamp: time.Now().UnixMilli()},
	})

	resp := api.Get("/usage/ips")
	if resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("/usage/ips: expected 422, got %d", resp.Code)
	}

	// 端點統計不依賴來源 IP
	resp = api.Get("/usage/endpoints")
	if resp.Code != http.StatusOK {
		t.Errorf("/usage/endpoints: expected 200, got %d", resp.Code)
	}
}
