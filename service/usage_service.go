package service

import (
	"context"
	"errors"
	"fmt"
	"ipfs-service-provider/infra"
	"ipfs-service-provider/metrics"
	"ipfs-service-provider/model"
	"ipfs-service-provider/service/interfaces"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultUsageRetention = 24 * time.Hour // 統計只保留最近 24 小時
	DefaultTopLimit       = 20             // 排行榜預設筆數
)

// UsageService REST API 使用量統計。
// 紀錄保存在記憶體，定期備份到 MongoDB，啟動時再從 MongoDB 載入，讓統計可跨重啟保留。
type UsageService struct {
	logger     zerolog.Logger
	store      *UsageStore
	collection interfaces.UsageCollection
	retention  time.Duration
	now        func() time.Time
}

func NewUsageService(logger zerolog.Logger, store *UsageStore, collection interfaces.UsageCollection, retention time.Duration) *UsageService {
	if retention <= 0 {
		retention = DefaultUsageRetention
	}
	return &UsageService{
		logger:     logger.With().Str("module", "usage_service").Logger(),
		store:      store,
		collection: collection,
		retention:  retention,
		now:        time.Now,
	}
}

// CleanUsage 移除超過保留時間的紀錄，回傳剩餘筆數。由 Timer Controller 定期呼叫。
func (s *UsageService) CleanUsage() int {
	now := s.now()
	cutoff := now.Add(-s.retention).UnixMilli()

	before := s.store.Len()
	removed := s.store.FilterInPlace(func(event model.UsageEvent) bool {
		return event.Timestamp > cutoff
	})
	after := before - removed

	metrics.AddUsageEventsPruned(removed)
	metrics.SetUsageEventsInMemory(s.store.Len())

	s.logger.Info().
		Time("now", now).
		Int("before", before).
		Int("removed", removed).
		Int("after", after).
		Msg("清除過期使用紀錄")

	return after
}

// GetRestSummary 目前記憶體內的 REST 呼叫總數
func (s *UsageService) GetRestSummary() int {
	count := s.store.Len()
	s.logger.Debug().Int("count", count).Msg("查詢 REST 呼叫總數")
	return count
}

// GetTopIPs 呼叫次數最多的來源 IP，limit <= 0 時使用預設值
func (s *UsageService) GetTopIPs(limit int) ([]model.IPCount, error) {
	counts, err := countByKey(s.store.Snapshot(), limit, func(event model.UsageEvent) (string, error) {
		if event.SourceAddress == "" {
			return "", fmt.Errorf("usage event without source address: %w", ErrMalformedUsageEvent)
		}
		return event.SourceAddress, nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("統計來源 IP 失敗")
		return nil, err
	}

	result := make([]model.IPCount, 0, len(counts))
	for _, c := range counts {
		result = append(result, model.IPCount{IP: c.key, Cnt: c.count})
	}
	return result, nil
}

// GetTopEndpoints 呼叫次數最多的端點（"METHOD path"），limit <= 0 時使用預設值
func (s *UsageService) GetTopEndpoints(limit int) ([]model.EndpointCount, error) {
	counts, err := countByKey(s.store.Snapshot(), limit, func(event model.UsageEvent) (string, error) {
		if event.Method == "" || event.Path == "" {
			return "", fmt.Errorf("usage event without method or path: %w", ErrMalformedUsageEvent)
		}
		return event.EndpointKey(), nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("統計端點失敗")
		return nil, err
	}

	result := make([]model.EndpointCount, 0, len(counts))
	for _, c := range counts {
		result = append(result, model.EndpointCount{Endpoint: c.key, Cnt: c.count})
	}
	return result, nil
}

// ClearUsage 清空資料庫內的使用紀錄
func (s *UsageService) ClearUsage(ctx context.Context) error {
	deleted, err := s.collection.DeleteAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("清空 usage 集合失敗")
		return err
	}

	s.logger.Debug().Int64("deleted", deleted).Msg("已清空 usage 集合")
	return nil
}

// SaveUsage 將目前記憶體內的紀錄寫入資料庫
func (s *UsageService) SaveUsage(ctx context.Context) error {
	events := s.store.Snapshot()

	records := make([]*model.UsageRecord, 0, len(events))
	for _, event := range events {
		records = append(records, model.NewUsageRecord(event))
	}

	if err := s.collection.Insert(ctx, records); err != nil {
		s.logger.Error().Err(err).Int("count", len(records)).Msg("寫入使用紀錄失敗")
		return err
	}

	s.logger.Debug().Int("count", len(records)).Msg("使用紀錄已寫入資料庫")
	return nil
}

// BackupUsage 先清空資料庫再寫入目前快照。
// 兩步驟之間不是交易，若程序在中途結束，上次備份後的紀錄會遺失。
func (s *UsageService) BackupUsage(ctx context.Context) error {
	ctx, span := infra.StartUsageSpan(ctx, "backup")
	defer span.End()

	if err := s.ClearUsage(ctx); err != nil {
		infra.RecordError(span, err, "清空 usage 集合失敗")
		return fmt.Errorf("clear usage: %w", err)
	}

	if err := s.SaveUsage(ctx); err != nil {
		infra.RecordError(span, err, "寫入使用紀錄失敗")
		return fmt.Errorf("save usage: %w", err)
	}

	infra.MarkSuccess(span, infra.AttrInt("usage.count", s.store.Len()))
	return nil
}

// LoadUsage 從資料庫載入使用紀錄並替換記憶體內容，只在啟動時呼叫。
// 讀取失敗時記憶體內容保持為空。
func (s *UsageService) LoadUsage(ctx context.Context) (int, error) {
	ctx, span := infra.StartUsageSpan(ctx, "load")
	defer span.End()

	records, err := s.collection.FindAll(ctx)
	if err != nil {
		s.store.ReplaceAll(nil)
		infra.RecordError(span, err, "載入使用紀錄失敗")
		s.logger.Error().Err(err).Msg("從資料庫載入使用紀錄失敗，使用空的統計資料")
		return 0, err
	}

	events := make([]model.UsageEvent, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		events = append(events, record.ToEvent())
	}
	s.store.ReplaceAll(events)
	metrics.SetUsageEventsInMemory(len(events))

	infra.MarkSuccess(span, infra.AttrInt("usage.count", len(events)))
	s.logger.Info().Int("count", len(events)).Msg("已從資料庫載入使用紀錄")
	return len(events), nil
}

type keyCount struct {
	key   string
	count int
}

// countByKey 依 key 分組計數，依次數遞減排序；次數相同時維持第一次出現的順序
func countByKey(events []model.UsageEvent, limit int, keyFn func(model.UsageEvent) (string, error)) ([]keyCount, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	index := make(map[string]int)
	var counts []keyCount
	for _, event := range events {
		key, err := keyFn(event)
		if err != nil {
			return nil, err
		}
		if i, ok := index[key]; ok {
			counts[i].count++
			continue
		}
		index[key] = len(counts)
		counts = append(counts, keyCount{key: key, count: 1})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].count > counts[j].count
	})

	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts, nil
}

// IsMalformedUsage 錯誤是否源自資料損毀的使用紀錄
func IsMalformedUsage(err error) bool {
	return errors.Is(err, ErrMalformedUsageEvent)
}
