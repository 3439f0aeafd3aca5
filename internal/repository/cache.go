package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/souqline/fulfillment-service/internal/config"
	"github.com/souqline/fulfillment-service/internal/models"
)

const (
	orderKeyPrefix  = "order:"
	defaultCacheTTL = 5 * time.Minute
)

// RedisOrderCache implements OrderCache using Redis. Cache misses and
// cache errors both return nil, nil so a broken cache never blocks the
// workflow.
type RedisOrderCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisOrderCache(cfg config.RedisConfig) *RedisOrderCache {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}

	return &RedisOrderCache{client: client, ttl: ttl}
}

// Get retrieves an order from cache.
func (c *RedisOrderCache) Get(ctx context.Context, id string) (*models.Order, error) {
	key := orderKeyPrefix + id

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		slog.Debug("Cache miss", "order_id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("Cache get error", "order_id", id, "error", err)
		return nil, err
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, err
	}

	slog.Debug("Cache hit", "order_id", id)
	return &order, nil
}

// Set stores an order in cache.
func (c *RedisOrderCache) Set(ctx context.Context, order *models.Order) error {
	key := orderKeyPrefix + order.ID

	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Error("Cache set error", "order_id", order.ID, "error", err)
		return err
	}

	slog.Debug("Order cached", "order_id", order.ID, "ttl", c.ttl.String())
	return nil
}

// Delete removes an order from cache. Called whenever the engine mutates
// or removes the underlying document.
func (c *RedisOrderCache) Delete(ctx context.Context, id string) error {
	key := orderKeyPrefix + id

	if err := c.client.Del(ctx, key).Err(); err != nil {
		slog.Error("Cache delete error", "order_id", id, "error", err)
		return err
	}

	slog.Debug("Order evicted from cache", "order_id", id)
	return nil
}
