package infra

import (
	"encoding/json"
	"fmt"
)

// AnnouncementType 協調層公告類型
type AnnouncementType string

const (
	AnnouncementThisNode       AnnouncementType = "this_node"
	AnnouncementPeer           AnnouncementType = "peer"
	AnnouncementRelay          AnnouncementType = "relay"
	AnnouncementConnectedPeers AnnouncementType = "connected_peers"
)

// Announcement 協調層 sidecar 發布到 RabbitMQ 的訊息
type Announcement struct {
	Type    AnnouncementType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

// ConnectedPeersPayload connected_peers 公告內容
type ConnectedPeersPayload struct {
	Peers []string `json:"peers"`
}

// NewAnnouncement 建立公告
func NewAnnouncement(t AnnouncementType, payload interface{}) (*Announcement, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Announcement{Type: t, Payload: raw}, nil
}

// ToJSON 轉換為 JSON
func (a *Announcement) ToJSON() []byte {
	data, _ := json.Marshal(a)
	return data
}

// ParseAnnouncement 解析公告
func ParseAnnouncement(body []byte) (*Announcement, error) {
	var a Announcement
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, err
	}
	if a.Type == "" {
		return nil, fmt.Errorf("announcement without type")
	}
	return &a, nil
}
