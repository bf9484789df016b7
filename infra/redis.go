package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Redis peer directory 的儲存後端
type Redis struct {
	Client *redis.Client
}

func NewRedis(logger zerolog.Logger, config RedisConfig) (*Redis, error) {
	opts := &redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	r := &Redis{Client: redis.NewClient(opts)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		_ = r.Client.Close()
		return nil, err
	}

	logger.Info().
		Str("addr", config.Addr).
		Int("db", config.DB).
		Msg("Redis 連線成功")
	return r, nil
}

// Ping 供啟動與 /api/monitoring/redis 使用
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
