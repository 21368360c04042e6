package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/crewhub/crewhub/internal/permissions"
)

const cacheVersionKey = "authz:version"

// Cache wraps Redis based caching of effective permission sets with a
// global version counter. Every mutation to roles, permissions or staff
// links bumps the version, which logically invalidates every entry at once
// because the version participates in each key. Stale entries expire via
// TTL; correctness never depends on them.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Bump invalidates all cached permission sets by incrementing the version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

// FetchPermissions loads a staff account's effective permission set from
// cache, populating it via loader on a miss. Concurrent misses for the same
// staff collapse into a single load.
func (c *Cache) FetchPermissions(ctx context.Context, staffID int64, loader func(context.Context) ([]permissions.Permission, error)) ([]permissions.Permission, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("authz:perms:%d:%d", staffID, ver)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var perms []permissions.Permission
		if err := json.Unmarshal(payload, &perms); err != nil {
			return nil, err
		}
		return perms, nil
	}
	if err != redis.Nil {
		return nil, err
	}

	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		perms, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(perms)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
		return perms, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]permissions.Permission), nil
	}
}
