package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestDefaultCacheConfig(t *testing.T) {
	config := DefaultCacheConfig()

	if config.Addr != "localhost:6379" {
		t.Errorf("Expected Addr to be localhost:6379, got %s", config.Addr)
	}

	if config.KeyPrefix != "stm:" {
		t.Errorf("Expected KeyPrefix to be stm:, got %s", config.KeyPrefix)
	}

	if config.PoolSize != 10 {
		t.Errorf("Expected PoolSize to be 10, got %d", config.PoolSize)
	}

	if config.DialTimeout != 5*time.Second {
		t.Errorf("Expected DialTimeout to be 5s, got %v", config.DialTimeout)
	}
}

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	config := DefaultCacheConfig()
	config.Addr = mr.Addr()

	cache := NewRedisCache(config)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestNewRedisCache_WithNilConfig(t *testing.T) {
	cache := NewRedisCache(nil)
	defer cache.Close()

	if cache.client == nil {
		t.Error("Expected Redis client to be initialized")
	}
	if cache.keyPrefix != "stm:" {
		t.Errorf("Expected default key prefix, got %q", cache.keyPrefix)
	}
}

func TestRedisCache_SetAndGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	type testData struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	original := testData{Name: "test", Value: 42}
	if err := cache.Set(ctx, "test:key", original, time.Minute); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	if !mr.Exists("stm:test:key") {
		t.Error("Expected key to be stored under the configured prefix")
	}

	var retrieved testData
	if err := cache.Get(ctx, "test:key", &retrieved); err != nil {
		t.Fatalf("Failed to get from cache: %v", err)
	}

	if retrieved != original {
		t.Errorf("Expected %+v, got %+v", original, retrieved)
	}
}

func TestRedisCache_Get_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	var result string
	err := cache.Get(context.Background(), "non-existent-key", &result)

	if err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestRedisCache_Set_InvalidData(t *testing.T) {
	cache, _ := setupTestRedis(t)

	ch := make(chan int)
	if err := cache.Set(context.Background(), "test:key", ch, time.Minute); err == nil {
		t.Error("Expected error when setting unmarshalable data")
	}
}

func TestRedisCache_Get_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)

	mr.Set("stm:test:invalid", "invalid-json")

	var result map[string]interface{}
	if err := cache.Get(context.Background(), "test:invalid", &result); err == nil {
		t.Error("Expected error when getting invalid JSON")
	}
}

func TestRedisCache_Expiration(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "short", "value", time.Second); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	mr.FastForward(2 * time.Second)

	var value string
	if err := cache.Get(ctx, "short", &value); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss after expiry, got %v", err)
	}
}

func TestRedisCache_DeleteAndPattern(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	for _, key := range []string{"reminders:triggered:a", "reminders:triggered:b", "task:1"} {
		if err := cache.Set(ctx, key, key, time.Minute); err != nil {
			t.Fatalf("Failed to set %s: %v", key, err)
		}
	}

	if err := cache.Delete(ctx, "task:1"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if exists, _ := cache.Exists(ctx, "task:1"); exists {
		t.Error("Expected task:1 to be deleted")
	}

	if err := cache.DeletePattern(ctx, "reminders:triggered:*"); err != nil {
		t.Fatalf("Failed to delete pattern: %v", err)
	}
	for _, key := range []string{"reminders:triggered:a", "reminders:triggered:b"} {
		if exists, _ := cache.Exists(ctx, key); exists {
			t.Errorf("Expected %s to be deleted", key)
		}
	}
}

func TestRedisCache_HealthAndStats(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	if err := cache.Health(ctx); err != nil {
		t.Errorf("Expected healthy cache, got %v", err)
	}

	var value string
	_ = cache.Get(ctx, "missing", &value)
	stats := cache.Stats()
	if stats["misses"].(int64) != 1 {
		t.Errorf("Expected one miss, got %v", stats["misses"])
	}

	mr.Close()
	if err := cache.Health(ctx); err == nil {
		t.Error("Expected health check to fail once redis is down")
	}
}
