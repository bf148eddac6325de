package redis

import (
	"context"
	"errors"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/fastygo/agritrace/internal/config"
)

// ErrDisabled is returned by NewClient when Redis is switched off.
var ErrDisabled = errors.New("redis disabled by configuration")

// NewClient creates a Redis client and performs a health check.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goRedis.Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	opts, err := goRedis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := goRedis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// Publisher sends ledger notifications to a pub/sub channel.
type Publisher struct {
	client  *goRedis.Client
	channel string
}

func NewPublisher(client *goRedis.Client, channel string) *Publisher {
	if channel == "" {
		channel = "ledger.events"
	}
	return &Publisher{client: client, channel: channel}
}

// Publish returns the number of subscribers that received the payload.
func (p *Publisher) Publish(ctx context.Context, payload []byte) (int64, error) {
	return p.client.Publish(ctx, p.channel, payload).Result()
}

func (p *Publisher) Channel() string {
	return p.channel
}
