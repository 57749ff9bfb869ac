package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

const (
	defaultCacheNamespace = "registrar:"
	scanPageSize          = 100
)

// RedisCacheRepository stores JSON payloads in Redis under a shared key namespace.
type RedisCacheRepository struct {
	client    redis.UniversalClient
	namespace string
	logger    *zap.Logger
}

// NewRedisCacheRepository wraps client. An empty namespace falls back to "registrar:".
func NewRedisCacheRepository(client redis.UniversalClient, namespace string, logger *zap.Logger) *RedisCacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if namespace == "" {
		namespace = defaultCacheNamespace
	}
	return &RedisCacheRepository{client: client, namespace: namespace, logger: logger.Named("redis_cache")}
}

func (r *RedisCacheRepository) key(k string) string { return r.namespace + k }

// Get decodes the entry at key into dest. Absent and undecodable entries both report ErrCacheMiss.
func (r *RedisCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return appErrors.ErrCacheMiss
	case err != nil:
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		r.logger.Warn("evicting undecodable entry", zap.String("key", key), zap.Error(err))
		if delErr := r.client.Unlink(ctx, r.key(key)).Err(); delErr != nil {
			r.logger.Debug("evict failed", zap.String("key", key), zap.Error(delErr))
		}
		return appErrors.ErrCacheMiss
	}
	return nil
}

// Set stores value as JSON for ttl.
func (r *RedisCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}
	return r.client.Set(ctx, r.key(key), payload, ttl).Err()
}

// DeleteByPattern unlinks every namespaced key matching the glob, one scan page at a time.
func (r *RedisCacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.key(pattern), scanPageSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis unlink %s: %w", pattern, err)
			}
			removed += len(keys)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	r.logger.Debug("pattern invalidated", zap.String("pattern", pattern), zap.Int("keys", removed))
	return nil
}
