package service

import (
	"context"
	"errors"
	"fmt"
	"ipfs-service-provider/model"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeUsageCollection 記憶體版 usage 集合
type fakeUsageCollection struct {
	mu        sync.Mutex
	records   []*model.UsageRecord
	calls     []string
	deleteErr error
	insertErr error
	findErr   error
}

func (f *fakeUsageCollection) DeleteAll(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete")
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	n := int64(len(f.records))
	f.records = nil
	return n, nil
}

func (f *fakeUsageCollection) Insert(ctx context.Context, records []*model.UsageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "insert")
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeUsageCollection) FindAll(ctx context.Context) ([]*model.UsageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "find")
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := make([]*model.UsageRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func newTestUsageService(collection *fakeUsageCollection, now time.Time) (*UsageService, *UsageStore) {
	store := NewUsageStore()
	svc := NewUsageService(zerolog.Nop(), store, collection, 24*time.Hour)
	svc.now = func() time.Time { return now }
	return svc, store
}

func TestUsageService_GetRestSummaryEmpty(t *testing.T) {
	svc, _ := newTestUsageService(&fakeUsageCollection{}, time.Now())
	if got := svc.GetRestSummary(); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestUsageService_GetTopIPs(t *testing.T) {
	now := time.Now()
	svc, store := newTestUsageService(&fakeUsageCollection{}, now)
	ts := now.UnixMilli()

	for _, ip := range []string{"a", "b", "a", "a"} {
		if err := store.Append(newEvent(ip, "GET", "/", ts)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := svc.GetTopIPs(20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []model.IPCount{{IP: "a", Cnt: 3}, {IP: "b", Cnt: 1}}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestUsageService_TopOrdering(t *testing.T) {
	now := time.Now()
	ts := now.UnixMilli()

	tests := []struct {
		name  string
		ips   []string
		limit int
		want  []model.IPCount
	}{
		{
			name: "descending by count",
			ips:  []string{"x", "y", "y", "z", "z", "z"},
			want: []model.IPCount{{IP: "z", Cnt: 3}, {IP: "y", Cnt: 2}, {IP: "x", Cnt: 1}},
		},
		{
			name: "ties keep first occurrence",
			ips:  []string{"c", "a", "b", "b", "a", "c"},
			want: []model.IPCount{{IP: "c", Cnt: 2}, {IP: "a", Cnt: 2}, {IP: "b", Cnt: 2}},
		},
		{
			name:  "explicit limit",
			ips:   []string{"a", "a", "b", "c"},
			limit: 2,
			want:  []model.IPCount{{IP: "a", Cnt: 2}, {IP: "b", Cnt: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestUsageService(&fakeUsageCollection{}, now)
			for _, ip := range tt.ips {
				_ = store.Append(newEvent(ip, "GET", "/", ts))
			}

			got, err := svc.GetTopIPs(tt.limit)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestUsageService_TopIPsTruncatesToDefault(t *testing.T) {
	now := time.Now()
	svc, store := newTestUsageService(&fakeUsageCollection{}, now)
	for i := 0; i < 21; i++ {
		_ = store.Append(newEvent(fmt.Sprintf("10.0.0.%d", i), "GET", "/", now.UnixMilli()))
	}

	got, err := svc.GetTopIPs(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != DefaultTopLimit {
		t.Errorf("expected %d entries, got %d", DefaultTopLimit, len(got))
	}
}

func TestUsageService_GetTopEndpoints(t *testing.T) {
	now := time.Now()
	svc, store := newTestUsageService(&fakeUsageCollection{}, now)
	ts := now.UnixMilli()

	_ = store.Append(newEvent("a", "GET", "/ipfs", ts))
	_ = store.Append(newEvent("a", "POST", "/ipfs/peers", ts))
	_ = store.Append(newEvent("b", "POST", "/ipfs/peers", ts))
	_ = store.Append(newEvent("c", "GET", "/ipfs", ts))
	_ = store.Append(newEvent("c", "GET", "/ipfs", ts))

	got, err := svc.GetTopEndpoints(20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []model.EndpointCount{
		{Endpoint: "GET /ipfs", Cnt: 3},
		{Endpoint: "POST /ipfs/peers", Cnt: 2},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestUsageService_MalformedEventFailsQuery(t *testing.T) {
	now := time.Now()
	svc, store := newTestUsageService(&fakeUsageCollection{}, now)
	// ReplaceAll 不驗證內容，模擬資料庫中損毀的紀錄
	store.ReplaceAll([]model.UsageEvent{
		newEvent("a", "GET", "/", now.UnixMilli()),
		newEvent("", "", "", now.UnixMilli()),
	})

	if _, err := svc.GetTopIPs(20); !IsMalformedUsage(err) {
		t.Errorf("GetTopIPs: expected malformed usage error, got %v", err)
	}
	if _, err := svc.GetTopEndpoints(20); !IsMalformedUsage(err) {
		t.Errorf("GetTopEndpoints: expected malformed usage error, got %v", err)
	}
}

func TestUsageService_CleanUsage(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	window := 24 * time.Hour

	tests := []struct {
		name       string
		timestamps []time.Time
		want       []int64
	}{
		{
			name:       "drops events older than window",
			timestamps: []time.Time{now.Add(-48 * time.Hour), now},
			want:       []int64{now.UnixMilli()},
		},
		{
			name:       "boundary is exclusive",
			timestamps: []time.Time{now.Add(-window), now.Add(-window + time.Millisecond)},
			want:       []int64{now.Add(-window + time.Millisecond).UnixMilli()},
		},
		{
			name:       "keeps everything inside window in order",
			timestamps: []time.Time{now.Add(-3 * time.Hour), now.Add(-2 * time.Hour), now.Add(-time.Hour)},
			want: []int64{
				now.Add(-3 * time.Hour).UnixMilli(),
				now.Add(-2 * time.Hour).UnixMilli(),
				now.Add(-time.Hour).UnixMilli(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestUsageService(&fakeUsageCollection{}, now)
			for _, ts := range tt.timestamps {
				if err := store.Append(newEvent("a", "GET", "/", ts.UnixMilli())); err != nil {
					t.Fatalf("append: %v", err)
				}
			}

			remaining := svc.CleanUsage()
			if remaining != len(tt.want) {
				t.Errorf("expected %d remaining, got %d", len(tt.want), remaining)
			}

			got := store.Snapshot()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d survivors, got %d", len(tt.want), len(got))
			}
			for i, ts := range tt.want {
				if got[i].Timestamp != ts {
					t.Errorf("survivor %d: expected %d, got %d", i, ts, got[i].Timestamp)
				}
			}

			// 再執行一次結果不變
			svc.CleanUsage()
			again := store.Snapshot()
			if len(again) != len(got) {
				t.Errorf("second sweep changed store: %d -> %d", len(got), len(again))
			}
		})
	}
}

func TestUsageService_BackupAndLoadRoundTrip(t *testing.T) {
	now := time.Now()
	collection := &fakeUsageCollection{}
	svc, store := newTestUsageService(collection, now)

	events := []model.UsageEvent{
		newEvent("a", "GET", "/ipfs", now.Add(-time.Minute).UnixMilli()),
		newEvent("b", "POST", "/ipfs/peers?x=1", now.UnixMilli()),
	}
	for _, e := range events {
		_ = store.Append(e)
	}

	if err := svc.BackupUsage(context.Background()); err != nil {
		t.Fatalf("backup: %v", err)
	}
	if len(collection.calls) != 2 || collection.calls[0] != "delete" || collection.calls[1] != "insert" {
		t.Errorf("expected delete before insert, got %v", collection.calls)
	}

	// 新的 store 模擬重啟
	reloadSvc, reloadStore := newTestUsageService(collection, now)
	n, err := reloadSvc.LoadUsage(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != len(events) {
		t.Errorf("expected %d loaded, got %d", len(events), n)
	}

	got := reloadStore.Snapshot()
	key := func(e model.UsageEvent) string {
		return fmt.Sprintf("%s|%s|%s|%d", e.SourceAddress, e.Method, e.Path, e.Timestamp)
	}
	var gotKeys, wantKeys []string
	for _, e := range got {
		gotKeys = append(gotKeys, key(e))
	}
	for _, e := range events {
		wantKeys = append(wantKeys, key(e))
	}
	sort.Strings(gotKeys)
	sort.Strings(wantKeys)
	if fmt.Sprint(gotKeys) != fmt.Sprint(wantKeys) {
		t.Errorf("round trip mismatch:\n got  %v\n want %v", gotKeys, wantKeys)
	}
}

func TestUsageService_BackupRepeatedDoesNotDuplicate(t *testing.T) {
	now := time.Now()
	collection := &fakeUsageCollection{}
	svc, store := newTestUsageService(collection, now)
	_ = store.Append(newEvent("a", "GET", "/", now.UnixMilli()))

	for i := 0; i < 3; i++ {
		if err := svc.BackupUsage(context.Background()); err != nil {
			t.Fatalf("backup %d: %v", i, err)
		}
	}
	if len(collection.records) != 1 {
		t.Errorf("expected 1 durable record, got %d", len(collection.records))
	}
}

func TestUsageService_BackupEmptyThenLoad(t *testing.T) {
	collection := &fakeUsageCollection{
		records: []*model.UsageRecord{{IP: "old", URL: "/", Method: "GET", Timestamp: time.Now()}},
	}
	svc, store := newTestUsageService(collection, time.Now())

	if err := svc.BackupUsage(context.Background()); err != nil {
		t.Fatalf("backup: %v", err)
	}
	if _, err := svc.LoadUsage(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}
}

func TestUsageService_BackupStopsWhenClearFails(t *testing.T) {
	collection := &fakeUsageCollection{deleteErr: errors.New("connection reset")}
	svc, store := newTestUsageService(collection, time.Now())
	_ = store.Append(newEvent("a", "GET", "/", time.Now().UnixMilli()))

	err := svc.BackupUsage(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	for _, c := range collection.calls {
		if c == "insert" {
			t.Errorf("insert must not run after failed clear")
		}
	}
	if store.Len() != 1 {
		t.Errorf("store should be untouched, len=%d", store.Len())
	}
}

func TestUsageService_LoadFailureLeavesStoreEmpty(t *testing.T) {
	findErr := errors.New("server selection timeout")
	collection := &fakeUsageCollection{findErr: findErr}
	svc, store := newTestUsageService(collection, time.Now())
	_ = store.Append(newEvent("a", "GET", "/", time.Now().UnixMilli()))

	n, err := svc.LoadUsage(context.Background())
	if !errors.Is(err, findErr) {
		t.Fatalf("expected find error, got %v", err)
	}
	if n != 0 || store.Len() != 0 {
		t.Errorf("expected empty store, n=%d len=%d", n, store.Len())
	}
}
