package interfaces

import (
	"context"
	"ipfs-service-provider/model"
)

// PeerDirectory 協調層狀態的讀寫介面，由公告 consumer 寫入、/ipfs API 讀取
type PeerDirectory interface {
	ThisNode(ctx context.Context) (*model.ThisNode, error)
	ConnectedPeers(ctx context.Context) ([]string, error)
	PeerData(ctx context.Context) ([]model.PeerData, error)
	Relays(ctx context.Context) ([]model.RelayInfo, error)

	SetThisNode(ctx context.Context, node *model.ThisNode) error
	SetConnectedPeers(ctx context.Context, peerIDs []string) error
	UpsertPeer(ctx context.Context, peer model.PeerData) error
	UpsertRelay(ctx context.Context, relay model.RelayInfo) error
}

// PeerConnector 要求協調層連線到指定節點
type PeerConnector interface {
	Connect(ctx context.Context, req model.ConnectRequest) (*model.ConnectResult, error)
}
