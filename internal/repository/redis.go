package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/mr1hm/go-quake-search/internal/models"
)

const searchKeyPrefix = "quake-search:search:"

// RedisSearchCache keeps search results in Redis so several server
// instances share them.
type RedisSearchCache struct {
	client     redis.UniversalClient
	defaultTTL time.Duration
}

func NewRedisSearchCache(client redis.UniversalClient, defaultTTL time.Duration) *RedisSearchCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &RedisSearchCache{client: client, defaultTTL: defaultTTL}
}

// ConnectRedis opens a client and checks the server answers.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisSearchCache) GetSearch(ctx context.Context, key string) (*models.SearchResult, error) {
	raw, err := c.client.Get(ctx, searchKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("search %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get search %s: %w", key, err)
	}

	var result models.SearchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode search %s: %w", key, err)
	}
	return &result, nil
}

func (c *RedisSearchCache) PutSearch(ctx context.Context, key string, result *models.SearchResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode search %s: %w", key, err)
	}
	if err := c.client.Set(ctx, searchKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store search %s: %w", key, err)
	}
	return nil
}
