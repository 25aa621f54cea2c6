package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
	Stats() map[string]interface{}
	Health(ctx context.Context) error
	Close() error
}

// MultiLevelCache reads through an in-process L1 to an optional redis L2.
// L2 calls go through a circuit breaker so a redis outage degrades to
// L1-only caching instead of failing requests.
type MultiLevelCache struct {
	l1       *MemoryCache
	l2       *RedisCache
	breaker  *CircuitBreaker
	l1MaxTTL time.Duration
}

const defaultL1MaxTTL = 5 * time.Minute

func NewMultiLevelCache(redisCache *RedisCache) *MultiLevelCache {
	return &MultiLevelCache{
		l1:       NewMemoryCache(),
		l2:       redisCache,
		breaker:  NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		l1MaxTTL: defaultL1MaxTTL,
	}
}

func (c *MultiLevelCache) l1TTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > c.l1MaxTTL {
		return c.l1MaxTTL
	}
	return ttl
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	c.l1.SetRaw(key, data, c.l1TTL(ttl))

	if c.l2 == nil {
		return nil
	}
	return c.breaker.Execute(func() error {
		return c.l2.Set(ctx, key, json.RawMessage(data), ttl)
	})
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	if data, found := c.l1.Get(key); found {
		if err := json.Unmarshal(data, dest); err != nil {
			return fmt.Errorf("failed to unmarshal cached data: %w", err)
		}
		return nil
	}

	if c.l2 == nil {
		return ErrCacheMiss
	}

	var raw json.RawMessage
	err := c.breaker.Execute(func() error {
		err := c.l2.Get(ctx, key, &raw)
		if errors.Is(err, ErrCacheMiss) {
			// a miss is not a redis failure
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	if raw == nil {
		return ErrCacheMiss
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	c.l1.SetRaw(key, raw, c.l1MaxTTL)
	return nil
}

func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	c.l1.Delete(key)

	if c.l2 == nil {
		return nil
	}
	return c.breaker.Execute(func() error {
		return c.l2.Delete(ctx, key)
	})
}

func (c *MultiLevelCache) DeletePattern(ctx context.Context, pattern string) error {
	c.l1.DeletePattern(pattern)

	if c.l2 == nil {
		return nil
	}
	return c.breaker.Execute(func() error {
		return c.l2.DeletePattern(ctx, pattern)
	})
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"l1": c.l1.Stats(),
	}

	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
		stats["l2_breaker"] = c.breaker.GetStats()
	}

	return stats
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 != nil {
		return c.l2.Health(ctx)
	}

	return nil
}

func (c *MultiLevelCache) Close() error {
	if c.l2 != nil {
		return c.l2.Close()
	}

	return nil
}
