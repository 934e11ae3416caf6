// Package cache memoizes analysis results in Redis with a bounded TTL. The
// core treats a miss identically to "not yet computed"; staleness is
// bounded entirely by the TTL, never by invalidation logic in the core.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storeops/o2o-insight/internal/config"
)

const (
	analysisKeyPrefix  = "analysis:"
	scanBatchSize      = 100
	defaultAnalysisTTL = 5 * time.Minute
)

// AnalysisCache is the get/set/ttl contract the analysis service consumes.
type AnalysisCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	InvalidateAll(ctx context.Context) error
}

type redisAnalysisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopAnalysisCache struct{}

// NewAnalysisCache returns a Redis-backed cache, or a noop cache when
// caching is disabled in config.
func NewAnalysisCache(cfg config.CacheConfig) (AnalysisCache, error) {
	if !cfg.Enabled {
		return &noopAnalysisCache{}, nil
	}

	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := time.Duration(cfg.AnalysisTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultAnalysisTTL
	}

	return &redisAnalysisCache{client: client, ttl: ttl}, nil
}

func NewNoopAnalysisCache() AnalysisCache {
	return &noopAnalysisCache{}
}

// BuildKey derives a stable cache key from the request descriptor parts.
func BuildKey(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return analysisKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *redisAnalysisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode cached analysis: %w", err)
	}
	return true, nil
}

func (c *redisAnalysisCache) Set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode analysis for cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisAnalysisCache) InvalidateAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, analysisKeyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			return nil
		}
	}
}

func (n *noopAnalysisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	return false, nil
}

func (n *noopAnalysisCache) Set(ctx context.Context, key string, value any) error {
	return nil
}

func (n *noopAnalysisCache) InvalidateAll(ctx context.Context) error {
	return nil
}
