package model

// ThisNode 本節點在協調層中的身分資訊，由協調層 sidecar 公告
type ThisNode struct {
	IPFSID         string   `json:"ipfsId" doc:"本節點 IPFS ID"`
	Name           string   `json:"name,omitempty"`
	Type           string   `json:"type,omitempty"`
	IPFSMultiaddrs []string `json:"ipfsMultiaddrs" doc:"本節點可連線的 multiaddr"`
	BchAddr        string   `json:"bchAddr"`
	SlpAddr        string   `json:"slpAddr"`
	PubKey         string   `json:"pubKey"`
	IsCircuitRelay bool     `json:"isCircuitRelay"`
	SchemaVersion  string   `json:"schemaVersion,omitempty"`
}

// PeerJSONLD 節點公告中的 JSON-LD 自我描述
type PeerJSONLD struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Protocol    string `json:"protocol"`
	Version     string `json:"version"`
}

// PeerAnnouncement 其他節點公告內容
type PeerAnnouncement struct {
	JSONLD         PeerJSONLD `json:"jsonLd"`
	ConnectionAddr string     `json:"connectionAddr,omitempty"`
	IPFSID         string     `json:"ipfsId,omitempty"`
	IsCircuitRelay bool       `json:"isCircuitRelay,omitempty"`
}

// PeerData 從 pubsub 收到的節點公告，From 為公告者的 peer ID
type PeerData struct {
	From string           `json:"from"`
	Data PeerAnnouncement `json:"data"`
}

// RelayInfo v2 Circuit Relay 資訊
type RelayInfo struct {
	IPFSID      string `json:"ipfsId"`
	Multiaddr   string `json:"multiaddr,omitempty"`
	Connected   bool   `json:"connected"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
	Latency     int    `json:"latencyScore,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NodeStatus GET /ipfs 回傳的節點狀態摘要
type NodeStatus struct {
	IPFSID     string   `json:"ipfsId"`
	MultiAddrs []string `json:"multiAddrs"`
	BchAddr    string   `json:"bchAddr"`
	SlpAddr    string   `json:"slpAddr"`
	PubKey     string   `json:"pubKey"`
	Peers      int      `json:"peers" doc:"已知節點數"`
	Relays     int      `json:"relays" doc:"已知 relay 數"`
}

// PeerInfo 已連線節點，補上公告中的描述
type PeerInfo struct {
	Peer           string    `json:"peer"`
	Name           string    `json:"name,omitempty"`
	Protocol       string    `json:"protocol,omitempty"`
	Version        string    `json:"version,omitempty"`
	ConnectionAddr string    `json:"connectionAddr,omitempty"`
	PeerData       *PeerData `json:"peerData,omitempty"`
}

// Relays v1 與 v2 Circuit Relay 清單
type Relays struct {
	V2Relays []RelayInfo `json:"v2Relays"`
	V1Relays []string    `json:"v1Relays"`
}

// ConnectRequest 要求協調層連線到指定節點
type ConnectRequest struct {
	Multiaddr  string `json:"multiaddr"`
	GetDetails bool   `json:"getDetails"`
}

// ConnectResult 協調層回覆的連線結果
type ConnectResult struct {
	Success bool                   `json:"success"`
	Details map[string]interface{} `json:"details,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
