// Package cache holds the Redis-backed read cache for public profiles.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/lalith-99/recshare/internal/models"
	"github.com/lalith-99/recshare/internal/observ"
	"github.com/redis/go-redis/v9"
)

// ProfileCache stores rendered profiles. Get returns (nil, nil) on a miss.
type ProfileCache interface {
	Get(ctx context.Context, userID int64) (*models.Profile, error)
	Set(ctx context.Context, profile *models.Profile) error
	Invalidate(ctx context.Context, userIDs ...int64) error
}

const profileKeyPrefix = "recshare:profile:"

func profileKey(userID int64) string {
	return profileKeyPrefix + strconv.FormatInt(userID, 10)
}

// RedisProfileCache keeps profiles as JSON with a TTL, so a missed
// invalidation heals itself.
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis parses a redis:// URL and pings the server.
func NewRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{client: client, ttl: ttl}
}

func (c *RedisProfileCache) Get(ctx context.Context, userID int64) (*models.Profile, error) {
	raw, err := c.client.Get(ctx, profileKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		observ.ProfileCacheLookups.WithLabelValues("miss").Inc()
		return nil, nil
	}
	if err != nil {
		observ.ProfileCacheLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("get cached profile: %w", err)
	}

	var p models.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		observ.ProfileCacheLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}
	observ.ProfileCacheLookups.WithLabelValues("hit").Inc()
	return &p, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, profile *models.Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := c.client.Set(ctx, profileKey(profile.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache profile: %w", err)
	}
	return nil
}

func (c *RedisProfileCache) Invalidate(ctx context.Context, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = profileKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate profiles: %w", err)
	}
	return nil
}

// NopProfileCache is used when no Redis URL is configured.
type NopProfileCache struct{}

func (NopProfileCache) Get(context.Context, int64) (*models.Profile, error) { return nil, nil }
func (NopProfileCache) Set(context.Context, *models.Profile) error         { return nil }
func (NopProfileCache) Invalidate(context.Context, ...int64) error         { return nil }
