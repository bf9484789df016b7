package interfaces

import (
	"context"
	"ipfs-service-provider/model"
)

// UsageCollection 使用紀錄的持久化集合
type UsageCollection interface {
	// DeleteAll 清空集合，回傳刪除筆數
	DeleteAll(ctx context.Context) (int64, error)
	// Insert 寫入紀錄，records 為空時不做任何事
	Insert(ctx context.Context, records []*model.UsageRecord) error
	// FindAll 讀取全部紀錄，不保證順序
	FindAll(ctx context.Context) ([]*model.UsageRecord, error)
}
