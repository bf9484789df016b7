package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UsageEvent 一次已完成的 REST API 呼叫紀錄（記憶體內使用）
type UsageEvent struct {
	SourceAddress string `json:"ip"`        // 呼叫端網路位址
	Path          string `json:"url"`       // 請求路徑（含 query string）
	Method        string `json:"method"`    // HTTP 方法
	Timestamp     int64  `json:"timestamp"` // handler 完成時間（epoch 毫秒）
}

// IsComplete 四個欄位是否都有值
func (e UsageEvent) IsComplete() bool {
	return e.SourceAddress != "" && e.Path != "" && e.Method != "" && e.Timestamp > 0
}

// EndpointKey 以 "METHOD path" 表示的端點名稱
func (e UsageEvent) EndpointKey() string {
	return e.Method + " " + e.Path
}

// UsageRecord 持久化到 MongoDB usage 集合的文件
type UsageRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	IP        string             `bson:"ip"`
	URL       string             `bson:"url"`
	Method    string             `bson:"method"`
	Timestamp time.Time          `bson:"timestamp"`
}

// NewUsageRecord 由記憶體事件建立持久化文件
func NewUsageRecord(event UsageEvent) *UsageRecord {
	return &UsageRecord{
		IP:        event.SourceAddress,
		URL:       event.Path,
		Method:    event.Method,
		Timestamp: time.UnixMilli(event.Timestamp),
	}
}

// ToEvent 轉回記憶體事件
func (r *UsageRecord) ToEvent() UsageEvent {
	var ts int64
	if !r.Timestamp.IsZero() {
		ts = r.Timestamp.UnixMilli()
	}
	return UsageEvent{
		SourceAddress: r.IP,
		Path:          r.URL,
		Method:        r.Method,
		Timestamp:     ts,
	}
}

// IPCount 來源 IP 統計
type IPCount struct {
	IP  string `json:"ip" example:"203.0.113.7" doc:"來源 IP"`
	Cnt int    `json:"cnt" example:"42" doc:"呼叫次數"`
}

// EndpointCount 端點統計
type EndpointCount struct {
	Endpoint string `json:"endpoint" example:"GET /ipfs" doc:"端點（METHOD path）"`
	Cnt      int    `json:"cnt" example:"42" doc:"呼叫次數"`
}
