package service

import (
	"errors"
	"ipfs-service-provider/model"
	"sync"
)

// ErrMalformedUsageEvent 使用紀錄缺少必要欄位
var ErrMalformedUsageEvent = errors.New("malformed usage event")

// UsageStore 保存近期 REST 呼叫紀錄，依完成順序排列。
// 程序啟動時建立一次，注入給 middleware 與 UsageService，不可另外持有其內部 slice。
type UsageStore struct {
	mu     sync.RWMutex
	events []model.UsageEvent
}

func NewUsageStore() *UsageStore {
	return &UsageStore{}
}

// Append 加入一筆紀錄到尾端
func (s *UsageStore) Append(event model.UsageEvent) error {
	if !event.IsComplete() {
		return ErrMalformedUsageEvent
	}

	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

// ReplaceAll 整批替換內容，僅供啟動時從資料庫載入使用
func (s *UsageStore) ReplaceAll(events []model.UsageEvent) {
	replaced := make([]model.UsageEvent, len(events))
	copy(replaced, events)

	s.mu.Lock()
	s.events = replaced
	s.mu.Unlock()
}

// FilterInPlace 移除 keep 回傳 false 的紀錄，保留其餘紀錄的相對順序，回傳移除筆數
func (s *UsageStore) FilterInPlace(keep func(model.UsageEvent) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 寫入新的 slice，keep panic 時原內容不受影響
	kept := make([]model.UsageEvent, 0, len(s.events))
	for _, event := range s.events {
		if keep(event) {
			kept = append(kept, event)
		}
	}
	removed := len(s.events) - len(kept)
	s.events = kept
	return removed
}

// Snapshot 回傳目前內容的複本
func (s *UsageStore) Snapshot() []model.UsageEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.UsageEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Len 目前紀錄筆數
func (s *UsageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
