package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/crewhub/crewhub/internal/permissions"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheVersionInitialises(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	require.NoError(t, cache.Bump(ctx))
	ver, err = cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), ver)
}

func TestFetchPermissionsCachesUntilBump(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(context.Context) ([]permissions.Permission, error) {
		loads++
		return []permissions.Permission{{ID: 1, Name: "dashboard.view"}}, nil
	}

	got, err := cache.FetchPermissions(ctx, 7, loader)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 1, loads)

	// Second fetch is served from cache.
	got, err = cache.FetchPermissions(ctx, 7, loader)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 1, loads)

	// Bumping the version logically invalidates every entry.
	require.NoError(t, cache.Bump(ctx))
	_, err = cache.FetchPermissions(ctx, 7, loader)
	require.NoError(t, err)
	require.Equal(t, 2, loads)
}

func TestFetchPermissionsKeysByStaff(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	first := func(context.Context) ([]permissions.Permission, error) {
		return []permissions.Permission{{ID: 1, Name: "a.b"}}, nil
	}
	second := func(context.Context) ([]permissions.Permission, error) {
		return []permissions.Permission{{ID: 2, Name: "c.d"}}, nil
	}

	got, err := cache.FetchPermissions(ctx, 1, first)
	require.NoError(t, err)
	require.Equal(t, "a.b", got[0].Name)

	got, err = cache.FetchPermissions(ctx, 2, second)
	require.NoError(t, err)
	require.Equal(t, "c.d", got[0].Name)
}

func TestNilCachePassesThroughToLoader(t *testing.T) {
	var cache *Cache
	got, err := cache.FetchPermissions(context.Background(), 1, func(context.Context) ([]permissions.Permission, error) {
		return []permissions.Permission{{ID: 9, Name: "x.y"}}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "x.y", got[0].Name)

	require.NoError(t, cache.Bump(context.Background()))
}
