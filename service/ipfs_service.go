package service

import (
	"context"
	"errors"
	"fmt"
	"ipfs-service-provider/infra"
	"ipfs-service-provider/metrics"
	"ipfs-service-provider/model"
	"ipfs-service-provider/service/interfaces"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	// ErrMultiaddrRequired 連線請求缺少 multiaddr
	ErrMultiaddrRequired = errors.New("multiaddr is required")
	// ErrConnectRateLimited 連線請求超過頻率限制
	ErrConnectRateLimited = errors.New("too many connect requests")
)

// IPFSService 提供 /ipfs 相關查詢，資料來自協調層維護的 peer directory
type IPFSService struct {
	logger    zerolog.Logger
	directory interfaces.PeerDirectory
	connector interfaces.PeerConnector
	v1Relays  []string
	limiter   *rate.Limiter
}

func NewIPFSService(logger zerolog.Logger, directory interfaces.PeerDirectory, connector interfaces.PeerConnector, v1Relays []string) *IPFSService {
	return &IPFSService{
		logger:    logger.With().Str("module", "ipfs_service").Logger(),
		directory: directory,
		connector: connector,
		v1Relays:  v1Relays,
	}
}

// SetConnectLimiter 設定連線請求的頻率限制，nil 表示不限制
func (s *IPFSService) SetConnectLimiter(limiter *rate.Limiter) {
	s.limiter = limiter
}

// GetStatus 本節點狀態摘要
func (s *IPFSService) GetStatus(ctx context.Context) (*model.NodeStatus, error) {
	node, err := s.directory.ThisNode(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("讀取本節點資訊失敗")
		return nil, err
	}

	peers, err := s.directory.PeerData(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("讀取節點公告失敗")
		return nil, err
	}

	relays, err := s.directory.Relays(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("讀取 relay 資訊失敗")
		return nil, err
	}

	return &model.NodeStatus{
		IPFSID:     node.IPFSID,
		MultiAddrs: node.IPFSMultiaddrs,
		BchAddr:    node.BchAddr,
		SlpAddr:    node.SlpAddr,
		PubKey:     node.PubKey,
		Peers:      len(peers),
		Relays:     len(relays),
	}, nil
}

// GetThisNode 本節點完整資訊
func (s *IPFSService) GetThisNode(ctx context.Context) (*model.ThisNode, error) {
	node, err := s.directory.ThisNode(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("讀取本節點資訊失敗")
		return nil, err
	}
	return node, nil
}

// GetPeers 已連線節點清單（去除重複），以節點公告補上名稱、協定、版本與連線位址。
// showAll 時附上完整公告內容。
func (s *IPFSService) GetPeers(ctx context.Context, showAll bool) ([]model.PeerInfo, error) {
	ctx, span := infra.StartIPFSSpan(ctx, "get_peers", infra.AttrBool("show_all", showAll))
	defer span.End()

	connected, err := s.directory.ConnectedPeers(ctx)
	if err != nil {
		infra.RecordIPFSError(span, err, "讀取連線中節點失敗")
		s.logger.Error().Err(err).Msg("讀取連線中節點失敗")
		return nil, err
	}

	peerData, err := s.directory.PeerData(ctx)
	if err != nil {
		infra.RecordIPFSError(span, err, "讀取節點公告失敗")
		s.logger.Error().Err(err).Msg("讀取節點公告失敗")
		return nil, err
	}

	connected = removeDuplicatePeers(connected)

	peers := make([]model.PeerInfo, 0, len(connected))
	for _, peerID := range connected {
		info := model.PeerInfo{Peer: peerID}

		data := findPeerData(peerData, peerID)
		if data == nil {
			s.logger.Warn().Str("peer_id", peerID).Msg("找不到節點公告資料")
			peers = append(peers, info)
			continue
		}

		info.Name = data.Data.JSONLD.Name
		info.Protocol = data.Data.JSONLD.Protocol
		info.Version = data.Data.JSONLD.Version
		info.ConnectionAddr = data.Data.ConnectionAddr
		if showAll {
			info.PeerData = data
		}
		peers = append(peers, info)
	}

	metrics.SetConnectedPeers(len(peers))
	infra.MarkSuccess(span, infra.AttrInt("peers.count", len(peers)))
	return peers, nil
}

// GetRelays 已知的 v2 relay（以節點公告補上名稱與描述）與設定檔中的 v1 relay
func (s *IPFSService) GetRelays(ctx context.Context) (*model.Relays, error) {
	relays, err := s.directory.Relays(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("讀取 relay 資訊失敗")
		return nil, err
	}

	peerData, err := s.directory.PeerData(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("讀取節點公告失敗")
		return nil, err
	}

	for i := range relays {
		data := findPeerData(peerData, relays[i].IPFSID)
		if data == nil {
			relays[i].Name = ""
			relays[i].Description = ""
			continue
		}
		relays[i].Name = data.Data.JSONLD.Name
		relays[i].Description = data.Data.JSONLD.Description
	}

	metrics.SetKnownRelays(len(relays))

	v1Relays := s.v1Relays
	if v1Relays == nil {
		v1Relays = []string{}
	}
	return &model.Relays{V2Relays: relays, V1Relays: v1Relays}, nil
}

// Connect 要求協調層連線到指定節點
func (s *IPFSService) Connect(ctx context.Context, req model.ConnectRequest) (*model.ConnectResult, error) {
	req.Multiaddr = strings.TrimSpace(req.Multiaddr)
	if req.Multiaddr == "" {
		return nil, ErrMultiaddrRequired
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.logger.Warn().Str("multiaddr", req.Multiaddr).Msg("連線請求過於頻繁")
		return nil, ErrConnectRateLimited
	}

	ctx, span := infra.StartIPFSSpan(ctx, "connect", infra.AttrMultiaddr(req.Multiaddr))
	defer span.End()

	start := time.Now()
	result, err := s.connector.Connect(ctx, req)
	metrics.RecordServiceOperation(metrics.ServiceTypeIPFS, metrics.OperationConnectPeer, metrics.StatusFromError(err), metrics.SourceAPI, time.Since(start))
	if err != nil {
		infra.RecordIPFSError(span, err, "連線請求失敗")
		s.logger.Error().Err(err).Str("multiaddr", req.Multiaddr).Msg("連線到節點失敗")
		return nil, fmt.Errorf("connect to %s: %w", req.Multiaddr, err)
	}

	if !req.GetDetails {
		result.Details = nil
	}

	s.logger.Info().
		Str("multiaddr", req.Multiaddr).
		Bool("success", result.Success).
		Msg("連線請求完成")
	infra.MarkSuccess(span, infra.AttrBool("connect.success", result.Success))
	return result, nil
}

// removeDuplicatePeers 去除重複的 peer ID，保留第一次出現的位置
func removeDuplicatePeers(peers []string) []string {
	seen := make(map[string]struct{}, len(peers))
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// findPeerData 找出 From 包含 peerID 的第一筆公告
func findPeerData(peerData []model.PeerData, peerID string) *model.PeerData {
	for i := range peerData {
		if strings.Contains(peerData[i].From, peerID) {
			data := peerData[i]
			return &data
		}
	}
	return nil
}
