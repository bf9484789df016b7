package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ipfs-service-provider/model"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// ErrConnectTimeout 協調層未在時間內回覆連線結果
var ErrConnectTimeout = errors.New("timed out waiting for coordinator reply")

// AMQPPeerConnector 透過 RabbitMQ RPC 要求協調層連線到指定節點
type AMQPPeerConnector struct {
	logger   zerolog.Logger
	rabbitMQ *RabbitMQ
	timeout  time.Duration
}

func NewAMQPPeerConnector(logger zerolog.Logger, rabbitMQ *RabbitMQ, timeout time.Duration) *AMQPPeerConnector {
	return &AMQPPeerConnector{
		logger:   logger.With().Str("module", "amqp_peer_connector").Logger(),
		rabbitMQ: rabbitMQ,
		timeout:  timeout,
	}
}

// Connect 發送連線請求並等待對應 correlation ID 的回覆
func (c *AMQPPeerConnector) Connect(ctx context.Context, req model.ConnectRequest) (*model.ConnectResult, error) {
	// 每次請求使用獨立 channel 與回覆隊列
	ch, err := c.rabbitMQ.Connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	defer ch.Close()

	replyQueue, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare reply queue: %w", err)
	}

	replies, err := ch.Consume(replyQueue.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume reply queue: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode connect request: %w", err)
	}

	correlationID := uuid.NewString()
	err = ch.Publish(
		"",                                // exchange
		QueueNameConnectRequests.String(), // routing key
		false,                             // mandatory
		false,                             // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			ReplyTo:       replyQueue.Name,
			Expiration:    strconv.FormatInt(c.timeout.Milliseconds(), 10),
			Timestamp:     time.Now(),
			Body:          body,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to publish connect request: %w", err)
	}

	c.logger.Debug().
		Str("correlation_id", correlationID).
		Str("multiaddr", req.Multiaddr).
		Msg("已發送連線請求")

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			c.logger.Warn().
				Str("correlation_id", correlationID).
				Str("multiaddr", req.Multiaddr).
				Dur("timeout", c.timeout).
				Msg("等待協調層回覆逾時")
			return nil, ErrConnectTimeout
		case d, ok := <-replies:
			if !ok {
				return nil, errors.New("reply channel closed")
			}
			if d.CorrelationId != correlationID {
				continue
			}
			var result model.ConnectResult
			if err := json.Unmarshal(d.Body, &result); err != nil {
				return nil, fmt.Errorf("failed to decode connect reply: %w", err)
			}
			return &result, nil
		}
	}
}
