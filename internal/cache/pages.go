// Package cache stores resolved booking pages in Redis.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"slotbook/internal/booking"
)

const keyPrefix = "slotbook:page:"

var _ booking.PageCache = (*PageCache)(nil)

// PageCache is a JSON-in-Redis cache of booking.PageInfo keyed by slug.
// Every failure degrades to a cache miss.
type PageCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewPageCache(client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *PageCache {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &PageCache{redis: client, ttl: ttl, logger: logger}
}

func key(slug string) string { return keyPrefix + slug }

func (c *PageCache) GetPage(ctx context.Context, slug string, out *booking.PageInfo) bool {
	if c.redis == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key(slug)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Str("slug", slug).Msg("page cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(val, out); err != nil {
		return false
	}
	return true
}

func (c *PageCache) SetPage(ctx context.Context, slug string, page *booking.PageInfo) {
	if c.redis == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key(slug), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("slug", slug).Msg("page cache write failed")
	}
}

// Invalidate drops the cached pages for slugs. With no slugs it drops every
// cached page.
func (c *PageCache) Invalidate(ctx context.Context, slugs ...string) {
	if c.redis == nil {
		return
	}
	keys := make([]string, 0, len(slugs))
	for _, s := range slugs {
		keys = append(keys, key(s))
	}
	if len(keys) == 0 {
		iter := c.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			c.logger.Warn().Err(err).Msg("page cache scan failed")
			return
		}
		if len(keys) == 0 {
			return
		}
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("page cache invalidate failed")
	}
}
