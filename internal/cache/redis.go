package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrCacheDown = errors.New("cache unavailable")
)

type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	metrics   *CacheMetrics
}

type CacheConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		KeyPrefix:    "stm:",
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func NewRedisCache(config *CacheConfig) *RedisCache {
	if config == nil {
		config = DefaultCacheConfig()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	return NewRedisCacheFromClient(rdb, config.KeyPrefix)
}

// NewRedisCacheFromClient shares an existing client, e.g. the one the
// worker queue already holds.
func NewRedisCacheFromClient(client *redis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
		metrics:   NewCacheMetrics(),
	}
}

func (r *RedisCache) key(k string) string {
	return r.keyPrefix + k
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := r.client.Set(ctx, r.key(key), data, expiration).Err(); err != nil {
		r.metrics.RecordError()
		return fmt.Errorf("failed to set cache: %w", err)
	}

	r.metrics.RecordSet()
	return nil
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.metrics.RecordMiss()
			return ErrCacheMiss
		}
		r.metrics.RecordError()
		return fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		r.metrics.RecordError()
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	r.metrics.RecordHit()
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	r.metrics.RecordDelete()
	return r.client.Del(ctx, r.key(key)).Err()
}

// DeletePattern removes every key matching a glob pattern. It walks the
// keyspace with SCAN so a large cache does not block the server.
func (r *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	iter := r.client.Scan(ctx, 0, r.key(pattern), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys for pattern %s: %w", pattern, err)
	}

	if len(keys) > 0 {
		r.metrics.RecordDelete()
		return r.client.Del(ctx, keys...).Err()
	}

	return nil
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, err
	}

	return result > 0, nil
}

func (r *RedisCache) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheDown, err)
	}
	return nil
}

func (r *RedisCache) Stats() map[string]interface{} {
	poolStats := r.client.PoolStats()
	metrics := r.metrics.GetStats()

	return map[string]interface{}{
		"hits":          metrics.Hits,
		"misses":        metrics.Misses,
		"errors":        metrics.Errors,
		"hit_rate":      r.metrics.HitRate(),
		"pool_hits":     poolStats.Hits,
		"pool_misses":   poolStats.Misses,
		"pool_timeouts": poolStats.Timeouts,
		"pool_total":    poolStats.TotalConns,
		"pool_idle":     poolStats.IdleConns,
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
