// Package cache keeps the latest-inbound-timestamp lookup off Postgres.
//
// Every polling client hits GET /api/chat/latest on a timer, which makes
// it the hottest read in the system while carrying a single value. Redis
// absorbs that; Postgres stays the source of truth and serves misses.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	latestKeyPrefix = "chat:latest:"
	latestTTL       = 24 * time.Hour
)

type LatestCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewLatestCache wraps a Redis client. Callers may hold a nil *LatestCache
// when Redis is not configured — every method treats nil as a miss, so the
// chat service needs no "is caching on" branches.
func NewLatestCache(rdb *redis.Client, logger *zap.Logger) *LatestCache {
	return &LatestCache{rdb: rdb, logger: logger}
}

// Set records the newest inbound timestamp for a user. Failures are logged
// and swallowed: the cache is an optimization, never a dependency.
func (c *LatestCache) Set(ctx context.Context, userID int64, ts time.Time) {
	if c == nil || c.rdb == nil {
		return
	}
	key := latestKeyPrefix + strconv.FormatInt(userID, 10)
	if err := c.rdb.Set(ctx, key, ts.UnixNano(), latestTTL).Err(); err != nil {
		c.logger.Debug("latest cache set failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// Get returns the cached timestamp and whether it was present. Any Redis
// error reads as a miss.
func (c *LatestCache) Get(ctx context.Context, userID int64) (time.Time, bool) {
	if c == nil || c.rdb == nil {
		return time.Time{}, false
	}
	key := latestKeyPrefix + strconv.FormatInt(userID, 10)
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("latest cache get failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return time.Time{}, false
	}
	ns, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}
