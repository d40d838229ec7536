package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

const (
	dialTimeout = 2 * time.Second
	ioTimeout   = time.Second
	pingTimeout = 5 * time.Second
)

// NewRedis returns a configured Redis client, or nil when Redis is disabled.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Probe adapts a Redis client to the readiness check. A nil client always reports healthy.
type Probe struct {
	client *redis.Client
}

// NewProbe wraps client.
func NewProbe(client *redis.Client) Probe {
	return Probe{client: client}
}

// PingContext pings Redis.
func (p Probe) PingContext(ctx context.Context) error {
	if p.client == nil {
		return nil
	}
	return p.client.Ping(ctx).Err()
}
