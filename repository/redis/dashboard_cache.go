package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/agritrace/repository"
)

// dashboardCache keys every entry with the current generation number.
// Invalidate bumps the generation so stale entries are never read again and
// simply expire.
type dashboardCache struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewDashboardCache creates a Redis-backed dashboard cache.
func NewDashboardCache(client *redislib.Client, ttl time.Duration) repository.DashboardCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &dashboardCache{
		client: client,
		prefix: "dashboard:",
		ttl:    ttl,
	}
}

func (c *dashboardCache) Get(ctx context.Context, key string, dest interface{}) (repository.CacheGeneration, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return 0, false, err
	}

	result, err := c.client.Get(ctx, c.key(gen, key)).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return gen, false, nil
		}
		return gen, false, err
	}
	if err := json.Unmarshal(result, dest); err != nil {
		return gen, false, err
	}
	return gen, true, nil
}

// Set writes under the caller's generation, not the current one, so a board
// built before an Invalidate lands on a key no reader looks at.
func (c *dashboardCache) Set(ctx context.Context, gen repository.CacheGeneration, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(gen, key), payload, c.ttl).Err()
}

func (c *dashboardCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, c.prefix+"gen").Err()
}

func (c *dashboardCache) generation(ctx context.Context) (repository.CacheGeneration, error) {
	gen, err := c.client.Get(ctx, c.prefix+"gen").Int64()
	if errors.Is(err, redislib.Nil) {
		return 0, nil
	}
	return repository.CacheGeneration(gen), err
}

func (c *dashboardCache) key(gen repository.CacheGeneration, key string) string {
	return fmt.Sprintf("%s%d:%s", c.prefix, gen, key)
}
