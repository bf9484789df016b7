package ipfs

import "ipfs-service-provider/model"

// StatusResponse GET /ipfs
type StatusResponse struct {
	Body struct {
		Status *model.NodeStatus `json:"status"`
	}
}

// GetPeersInput POST /ipfs/peers
type GetPeersInput struct {
	Body struct {
		ShowAll bool `json:"showAll,omitempty" doc:"是否附上完整節點公告內容" default:"false"`
	} `required:"false"`
}

// PeersResponse 已連線節點清單
type PeersResponse struct {
	Body struct {
		Peers []model.PeerInfo `json:"peers"`
	}
}

// RelaysResponse POST /ipfs/relays
type RelaysResponse struct {
	Body struct {
		Relays *model.Relays `json:"relays"`
	}
}

// ConnectInput POST /ipfs/connect
type ConnectInput struct {
	Body struct {
		Multiaddr  string `json:"multiaddr" minLength:"1" example:"/ip4/161.35.99.207/tcp/4001/p2p/12D3KooWDtj9cfj1SKuLbDNKvKRKSsGN8qivq9M8CYpLPDpcD5pu" doc:"目標節點 multiaddr"`
		GetDetails bool   `json:"getDetails,omitempty" doc:"是否回傳連線細節" default:"false"`
	}
}

// ConnectResponse 連線結果
type ConnectResponse struct {
	Body *model.ConnectResult
}

// ThisNodeResponse GET /ipfs/node
type ThisNodeResponse struct {
	Body struct {
		ThisNode *model.ThisNode `json:"thisNode"`
	}
}
