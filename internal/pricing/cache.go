package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// HistoryCache fronts the quote history store with a Redis TTL cache.
type HistoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewHistoryCache instantiates the cache helper.
func NewHistoryCache(client *redis.Client, ttl time.Duration) *HistoryCache {
	return &HistoryCache{client: client, ttl: ttl}
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *HistoryCache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
