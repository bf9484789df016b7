package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ipfs-service-provider/model"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	PEER_DIRECTORY_KEY_PREFIX = "ipfs" // Redis key 前綴

	thisNodeKey       = PEER_DIRECTORY_KEY_PREFIX + ":this_node"
	peersKey          = PEER_DIRECTORY_KEY_PREFIX + ":peers"
	connectedPeersKey = PEER_DIRECTORY_KEY_PREFIX + ":connected"
	relaysKey         = PEER_DIRECTORY_KEY_PREFIX + ":relays"
)

// ErrNodeNotAnnounced 協調層尚未公告本節點資訊
var ErrNodeNotAnnounced = errors.New("ipfs node has not been announced yet")

// RedisPeerDirectory 以 Redis 保存協調層狀態
//
//	ipfs:this_node          本節點 JSON
//	ipfs:peers              hash，peer ID -> 公告 JSON
//	ipfs:peer_seen:<id>     公告有效標記，過期後該 peer 視為離線
//	ipfs:connected          list，目前連線中的 peer ID（依協調層回報順序，可能重複）
//	ipfs:relays             hash，relay ID -> relay JSON
type RedisPeerDirectory struct {
	logger      zerolog.Logger
	redisClient *redis.Client
	peerTTL     time.Duration
}

func NewRedisPeerDirectory(logger zerolog.Logger, redisClient *redis.Client, peerTTL time.Duration) *RedisPeerDirectory {
	return &RedisPeerDirectory{
		logger:      logger.With().Str("module", "redis_peer_directory").Logger(),
		redisClient: redisClient,
		peerTTL:     peerTTL,
	}
}

// peerSeenKey 格式: "ipfs:peer_seen:<peerID>"
func peerSeenKey(peerID string) string {
	return fmt.Sprintf("%s:peer_seen:%s", PEER_DIRECTORY_KEY_PREFIX, peerID)
}

// ThisNode 讀取本節點資訊
func (d *RedisPeerDirectory) ThisNode(ctx context.Context) (*model.ThisNode, error) {
	raw, err := d.redisClient.Get(ctx, thisNodeKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNodeNotAnnounced
		}
		return nil, fmt.Errorf("讀取本節點資訊失敗: %w", err)
	}

	var node model.ThisNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("解析本節點資訊失敗: %w", err)
	}
	return &node, nil
}

// SetThisNode 寫入本節點資訊
func (d *RedisPeerDirectory) SetThisNode(ctx context.Context, node *model.ThisNode) error {
	raw, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("序列化本節點資訊失敗: %w", err)
	}
	if err := d.redisClient.Set(ctx, thisNodeKey, raw, 0).Err(); err != nil {
		d.logger.Error().Err(err).Str("ipfs_id", node.IPFSID).Msg("寫入本節點資訊失敗")
		return fmt.Errorf("寫入本節點資訊失敗: %w", err)
	}
	return nil
}

// ConnectedPeers 目前連線中的 peer ID
func (d *RedisPeerDirectory) ConnectedPeers(ctx context.Context) ([]string, error) {
	peers, err := d.redisClient.LRange(ctx, connectedPeersKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("讀取連線中節點失敗: %w", err)
	}
	return peers, nil
}

// SetConnectedPeers 以最新回報整批替換連線中節點
func (d *RedisPeerDirectory) SetConnectedPeers(ctx context.Context, peerIDs []string) error {
	_, err := d.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, connectedPeersKey)
		if len(peerIDs) > 0 {
			values := make([]interface{}, 0, len(peerIDs))
			for _, id := range peerIDs {
				values = append(values, id)
			}
			pipe.RPush(ctx, connectedPeersKey, values...)
		}
		return nil
	})
	if err != nil {
		d.logger.Error().Err(err).Int("count", len(peerIDs)).Msg("更新連線中節點失敗")
		return fmt.Errorf("更新連線中節點失敗: %w", err)
	}
	return nil
}

// PeerData 仍在有效期內的節點公告，依 peer ID 排序；過期的公告會一併清除
func (d *RedisPeerDirectory) PeerData(ctx context.Context) ([]model.PeerData, error) {
	entries, err := d.redisClient.HGetAll(ctx, peersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("讀取節點公告失敗: %w", err)
	}
	if len(entries) == 0 {
		return []model.PeerData{}, nil
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pipe := d.redisClient.Pipeline()
	seen := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		seen[i] = pipe.Exists(ctx, peerSeenKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("檢查節點公告有效期失敗: %w", err)
	}

	var stale []string
	peers := make([]model.PeerData, 0, len(ids))
	for i, id := range ids {
		if seen[i].Val() == 0 {
			stale = append(stale, id)
			continue
		}
		var peer model.PeerData
		if err := json.Unmarshal([]byte(entries[id]), &peer); err != nil {
			d.logger.Warn().Err(err).Str("peer_id", id).Msg("節點公告格式錯誤，略過")
			continue
		}
		peers = append(peers, peer)
	}

	if len(stale) > 0 {
		if err := d.redisClient.HDel(ctx, peersKey, stale...).Err(); err != nil {
			d.logger.Warn().Err(err).Strs("peer_ids", stale).Msg("清除過期節點公告失敗")
		} else {
			d.logger.Debug().Strs("peer_ids", stale).Msg("已清除過期節點公告")
		}
	}

	return peers, nil
}

// UpsertPeer 寫入節點公告並更新有效期
func (d *RedisPeerDirectory) UpsertPeer(ctx context.Context, peer model.PeerData) error {
	if peer.From == "" {
		return errors.New("peer announcement without sender")
	}
	raw, err := json.Marshal(peer)
	if err != nil {
		return fmt.Errorf("序列化節點公告失敗: %w", err)
	}

	_, err = d.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, peersKey, peer.From, raw)
		pipe.Set(ctx, peerSeenKey(peer.From), "1", d.peerTTL)
		return nil
	})
	if err != nil {
		d.logger.Error().Err(err).Str("peer_id", peer.From).Msg("寫入節點公告失敗")
		return fmt.Errorf("寫入節點公告失敗: %w", err)
	}
	return nil
}

// Relays 已知的 v2 Circuit Relay，依 relay ID 排序
func (d *RedisPeerDirectory) Relays(ctx context.Context) ([]model.RelayInfo, error) {
	entries, err := d.redisClient.HGetAll(ctx, relaysKey).Result()
	if err != nil {
		return nil, fmt.Errorf("讀取 relay 資訊失敗: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	relays := make([]model.RelayInfo, 0, len(ids))
	for _, id := range ids {
		var relay model.RelayInfo
		if err := json.Unmarshal([]byte(entries[id]), &relay); err != nil {
			d.logger.Warn().Err(err).Str("relay_id", id).Msg("relay 資訊格式錯誤，略過")
			continue
		}
		relays = append(relays, relay)
	}
	return relays, nil
}

// UpsertRelay 寫入 relay 資訊
func (d *RedisPeerDirectory) UpsertRelay(ctx context.Context, relay model.RelayInfo) error {
	if relay.IPFSID == "" {
		return errors.New("relay without ipfs id")
	}
	raw, err := json.Marshal(relay)
	if err != nil {
		return fmt.Errorf("序列化 relay 資訊失敗: %w", err)
	}
	if err := d.redisClient.HSet(ctx, relaysKey, relay.IPFSID, raw).Err(); err != nil {
		d.logger.Error().Err(err).Str("relay_id", relay.IPFSID).Msg("寫入 relay 資訊失敗")
		return fmt.Errorf("寫入 relay 資訊失敗: %w", err)
	}
	return nil
}
