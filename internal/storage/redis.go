package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/deusflow/explainee/internal/logger"
)

const (
	definitionPrefix = "explainee:def:"
	analyzedPrefix   = "explainee:analyzed:"
)

// RedisCache keeps definitions and analyzed-article markers in Redis with
// key expiry as the TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(ctx context.Context, addr string, ttlHours int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("Redis cache connected", "addr", addr)
	return &RedisCache{rdb: rdb, ttl: time.Duration(ttlHours) * time.Hour}, nil
}

func (rc *RedisCache) GetDefinition(ctx context.Context, term string) (string, bool, error) {
	def, err := rc.rdb.Get(ctx, definitionPrefix+termKey(term)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get definition: %w", err)
	}
	return def, true, nil
}

func (rc *RedisCache) PutDefinition(ctx context.Context, term, definition string) error {
	if err := rc.rdb.Set(ctx, definitionPrefix+termKey(term), definition, rc.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store definition: %w", err)
	}
	return nil
}

func (rc *RedisCache) IsAnalyzed(ctx context.Context, hash string) (bool, error) {
	n, err := rc.rdb.Exists(ctx, analyzedPrefix+hash).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check article: %w", err)
	}
	return n > 0, nil
}

func (rc *RedisCache) MarkAnalyzed(ctx context.Context, item AnalyzedItem) error {
	if err := rc.rdb.Set(ctx, analyzedPrefix+item.Hash, item.Link, rc.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark as analyzed: %w", err)
	}
	return nil
}

func (rc *RedisCache) Close() error {
	return rc.rdb.Close()
}
