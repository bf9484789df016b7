package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// ErrRabbitMQClosed 連線已中斷
var ErrRabbitMQClosed = errors.New("rabbitmq connection closed")

type RabbitMQConfig struct {
	URL      string
	Prefetch int
}

// RabbitMQ 協調層公告與連線 RPC 共用的連線
type RabbitMQ struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
}

func NewRabbitMQ(logger zerolog.Logger, config RabbitMQConfig) (*RabbitMQ, error) {
	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if config.Prefetch > 0 {
		if err := ch.Qos(config.Prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("set rabbitmq qos: %w", err)
		}
	}

	queues := GetAllQueueNames()
	for _, queueName := range queues {
		// durable，與協調層 sidecar 的宣告一致
		_, err = ch.QueueDeclare(queueName.String(), true, false, false, false, nil)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
		}
	}

	logger.Info().
		Int("queues", len(queues)).
		Int("prefetch", config.Prefetch).
		Msg("RabbitMQ 連線成功")

	return &RabbitMQ{
		Connection: conn,
		Channel:    ch,
	}, nil
}

// Ping 供 /api/monitoring/rabbitmq 使用
func (r *RabbitMQ) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.IsClosed() {
		return ErrRabbitMQClosed
	}
	return nil
}

// IsClosed 連線是否已中斷
func (r *RabbitMQ) IsClosed() bool {
	return r.Connection == nil || r.Connection.IsClosed()
}

func (r *RabbitMQ) Close() error {
	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.Connection != nil {
		return r.Connection.Close()
	}
	return nil
}
