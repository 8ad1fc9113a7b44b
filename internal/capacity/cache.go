package capacity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedProvider wraps another Provider with a short-TTL Redis
// read-through cache.  Capacity reads are racy anyway, so a few seconds
// of staleness costs nothing while keeping the sync heartbeat from
// hammering the remote endpoint.  With no Redis client it degrades to a
// transparent pass-through.
type CachedProvider struct {
	next Provider
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCachedProvider wraps next with a Redis cache.  rdb may be nil.
func NewCachedProvider(next Provider, rdb *redis.Client, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, rdb: rdb, ttl: ttl}
}

// Available implements Provider.  Redis errors are swallowed: the cache
// is an optimisation, never a gatekeeper.
func (p *CachedProvider) Available(ctx context.Context, objectID uint64) (int, error) {
	if p.rdb == nil || p.ttl <= 0 {
		return p.next.Available(ctx, objectID)
	}
	key := fmt.Sprintf("capacity:%d", objectID)
	if cached, err := p.rdb.Get(ctx, key).Result(); err == nil {
		if n, convErr := strconv.Atoi(cached); convErr == nil {
			return n, nil
		}
	}
	n, err := p.next.Available(ctx, objectID)
	if err != nil {
		return 0, err
	}
	_ = p.rdb.Set(ctx, key, strconv.Itoa(n), p.ttl).Err()
	return n, nil
}
