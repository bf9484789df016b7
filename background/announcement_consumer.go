package background

import (
	"context"
	"encoding/json"
	"fmt"
	"ipfs-service-provider/infra"
	"ipfs-service-provider/metrics"
	"ipfs-service-provider/model"
	"ipfs-service-provider/service/interfaces"
	"time"

	"github.com/rs/zerolog"
)

// AnnouncementConsumer 消費協調層公告並寫入 peer directory
type AnnouncementConsumer struct {
	logger    zerolog.Logger
	RabbitMQ  *infra.RabbitMQ
	Directory interfaces.PeerDirectory
}

func NewAnnouncementConsumer(logger zerolog.Logger, rabbitMQ *infra.RabbitMQ, directory interfaces.PeerDirectory) *AnnouncementConsumer {
	return &AnnouncementConsumer{
		logger:    logger.With().Str("module", "announcement_consumer").Logger(),
		RabbitMQ:  rabbitMQ,
		Directory: directory,
	}
}

// Start 持續消費公告，ctx 結束或隊列關閉時返回
func (c *AnnouncementConsumer) Start(ctx context.Context) {
	msgs, err := c.RabbitMQ.Channel.Consume(
		infra.QueueNameCoordAnnouncements.String(), "", true, false, false, false, nil,
	)
	if err != nil {
		c.logger.Error().Err(err).Str("queue", infra.QueueNameCoordAnnouncements.String()).Msg("無法消費協調層公告隊列")
		return
	}
	c.logger.Info().Msg("協調層公告 consumer 已啟動")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("協調層公告 consumer 已停止")
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn().Msg("協調層公告隊列已關閉")
				return
			}
			if err := c.Handle(ctx, msg.Body); err != nil {
				c.logger.Error().Err(err).Msg("處理協調層公告失敗")
			}
		}
	}
}

// Handle 解析一則公告並更新 peer directory
func (c *AnnouncementConsumer) Handle(ctx context.Context, body []byte) error {
	start := time.Now()
	announcement, err := infra.ParseAnnouncement(body)
	if err != nil {
		metrics.RecordAnnouncement("invalid", metrics.StatusError)
		metrics.RecordServiceOperation(metrics.ServiceTypeIPFS, metrics.OperationAnnounce, metrics.StatusError, metrics.SourceQueue, time.Since(start))
		return fmt.Errorf("公告格式錯誤: %w", err)
	}

	err = c.apply(ctx, announcement)
	metrics.RecordAnnouncement(string(announcement.Type), metrics.StatusFromError(err))
	metrics.RecordServiceOperation(metrics.ServiceTypeIPFS, metrics.OperationAnnounce, metrics.StatusFromError(err), metrics.SourceQueue, time.Since(start))
	return err
}

func (c *AnnouncementConsumer) apply(ctx context.Context, a *infra.Announcement) error {
	switch a.Type {
	case infra.AnnouncementThisNode:
		var node model.ThisNode
		if err := json.Unmarshal(a.Payload, &node); err != nil {
			return fmt.Errorf("解析本節點公告失敗: %w", err)
		}
		return c.Directory.SetThisNode(ctx, &node)

	case infra.AnnouncementPeer:
		var peer model.PeerData
		if err := json.Unmarshal(a.Payload, &peer); err != nil {
			return fmt.Errorf("解析節點公告失敗: %w", err)
		}
		return c.Directory.UpsertPeer(ctx, peer)

	case infra.AnnouncementRelay:
		var relay model.RelayInfo
		if err := json.Unmarshal(a.Payload, &relay); err != nil {
			return fmt.Errorf("解析 relay 公告失敗: %w", err)
		}
		return c.Directory.UpsertRelay(ctx, relay)

	case infra.AnnouncementConnectedPeers:
		var payload infra.ConnectedPeersPayload
		if err := json.Unmarshal(a.Payload, &payload); err != nil {
			return fmt.Errorf("解析連線節點公告失敗: %w", err)
		}
		if err := c.Directory.SetConnectedPeers(ctx, payload.Peers); err != nil {
			return err
		}
		metrics.SetConnectedPeers(len(payload.Peers))
		return nil

	default:
		c.logger.Warn().Str("type", string(a.Type)).Msg("未知的公告類型，略過")
		return nil
	}
}
