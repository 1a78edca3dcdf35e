package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/provider"
)

const orderKeyPrefix = "payment-webhooks:square-order:"

type OrderFetcher interface {
	GetOrder(ctx context.Context, orderID string) (*provider.Order, error)
}

// Store is the subset of redis.Cmdable used by OrderCache.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// OrderCache memoizes remote order lookups. Redis errors degrade to a direct fetch.
type OrderCache struct {
	store  Store
	next   OrderFetcher
	ttl    time.Duration
	logger logrus.FieldLogger
}

func NewOrderCache(store Store, next OrderFetcher, ttl time.Duration, logger logrus.FieldLogger) *OrderCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &OrderCache{store: store, next: next, ttl: ttl, logger: logger}
}

func (c *OrderCache) GetOrder(ctx context.Context, orderID string) (*provider.Order, error) {
	key := orderKeyPrefix + orderID

	raw, err := c.store.Get(ctx, key).Result()
	switch {
	case err == nil:
		var order provider.Order
		if jsonErr := json.Unmarshal([]byte(raw), &order); jsonErr == nil {
			return &order, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.WithError(err).WithField("order_id", orderID).Warn("order cache read failed")
	}

	order, err := c.next.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(order)
	if err == nil {
		if err := c.store.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.WithError(err).WithField("order_id", orderID).Warn("order cache write failed")
		}
	}

	return order, nil
}
