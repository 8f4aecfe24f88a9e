package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokenhaus/marketplace/internal/auction"
)

// RedisAuctionCache implements auction.SnapshotCache. Failures are logged
// and reported as misses; the registry must never fail because the cache
// is down.
type RedisAuctionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisAuctionCache creates a snapshot cache with the given TTL.
func NewRedisAuctionCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisAuctionCache {
	return &RedisAuctionCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("auction:%d", id)
}

// Get returns the cached snapshot, if any.
func (c *RedisAuctionCache) Get(ctx context.Context, id int64) (*auction.Auction, bool) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("auction cache read failed", "auction_id", id, "error", err)
		}
		return nil, false
	}

	var a auction.Auction
	if err := json.Unmarshal(data, &a); err != nil {
		c.logger.Warn("auction cache entry corrupt", "auction_id", id, "error", err)
		return nil, false
	}
	return &a, true
}

// Set stores a snapshot with the configured TTL.
func (c *RedisAuctionCache) Set(ctx context.Context, a *auction.Auction) {
	data, err := json.Marshal(a)
	if err != nil {
		c.logger.Warn("auction cache marshal failed", "auction_id", a.ID, "error", err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(a.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("auction cache write failed", "auction_id", a.ID, "error", err)
	}
}

// Invalidate drops the snapshot after a registry mutation.
func (c *RedisAuctionCache) Invalidate(ctx context.Context, id int64) {
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		c.logger.Warn("auction cache invalidation failed", "auction_id", id, "error", err)
	}
}
