package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtual-shiksha/shiksha/internal/models"
)

func TestCacheEntries(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.PutCacheEntry(ctx, &models.CacheEntry{
		CacheName: "static", Method: "GET", URL: "http://o/a", Status: 200, Body: []byte("static-a"), Size: 8, CachedAt: now,
	}))
	require.NoError(t, db.PutCacheEntry(ctx, &models.CacheEntry{
		CacheName: "dynamic", Method: "GET", URL: "http://o/a", Status: 200, Body: []byte("dyn-a"), Size: 5, CachedAt: now,
	}))

	hit, err := db.MatchCache(ctx, []string{"static", "dynamic"}, "GET", "http://o/a")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "static", hit.CacheName, "first cache name wins")

	hit, err = db.MatchCache(ctx, []string{"dynamic"}, "GET", "http://o/a")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, []byte("dyn-a"), hit.Body)

	miss, err := db.MatchCache(ctx, []string{"static", "dynamic"}, "GET", "http://o/b")
	require.NoError(t, err)
	assert.Nil(t, miss)

	// Replace in place.
	require.NoError(t, db.PutCacheEntry(ctx, &models.CacheEntry{
		CacheName: "dynamic", Method: "GET", URL: "http://o/a", Status: 200, Body: []byte("dyn-a2"), Size: 6, CachedAt: now,
	}))
	n, err := db.CountCacheEntries(ctx, "dynamic")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stats, err := db.CacheStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, models.CacheStats{CacheName: "dynamic", Entries: 1, Bytes: 6}, stats[0])

	names, err := db.CacheNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dynamic", "static"}, names)

	deleted, err := db.DeleteCache(ctx, "static")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestListCacheEntrySizes_OldestFirst(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, u := range []string{"c", "a", "b"} {
		require.NoError(t, db.PutCacheEntry(ctx, &models.CacheEntry{
			CacheName: "dynamic", Method: "GET", URL: "http://o/" + u, Status: 200,
			Body: []byte(u), Size: int64(i + 1), CachedAt: base.Add(time.Duration(2-i) * time.Minute),
		}))
	}

	entries, err := db.ListCacheEntrySizes(ctx, "dynamic")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "http://o/b", entries[0].URL)
	assert.Equal(t, "http://o/c", entries[2].URL)
	assert.Nil(t, entries[0].Body, "bodies are not loaded")

	require.NoError(t, db.DeleteCacheEntry(ctx, entries[0].ID))
	n, err := db.CountCacheEntries(ctx, "dynamic")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPutCacheEntries_Batch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	err := db.PutCacheEntries(ctx, []models.CacheEntry{
		{CacheName: "static", Method: "GET", URL: "http://o/1", Status: 200, CachedAt: time.Now()},
		{CacheName: "static", Method: "GET", URL: "http://o/2", Status: 200, CachedAt: time.Now()},
	})
	require.NoError(t, err)

	n, err := db.CountCacheEntries(ctx, "static")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCacheMeta(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	meta, err := db.GetCacheMeta(ctx, "http://o/api/x")
	require.NoError(t, err)
	assert.Nil(t, meta)

	at := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, db.PutCacheMeta(ctx, models.CacheMeta{URL: "http://o/api/x", CachedAt: at}))
	meta, err = db.GetCacheMeta(ctx, "http://o/api/x")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.True(t, at.Equal(meta.CachedAt))
}

func TestPruneCacheMeta(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.PutCacheEntry(ctx, &models.CacheEntry{
		CacheName: "dynamic", Method: "GET", URL: "http://o/api/kept", Status: 200, Body: []byte("k"), Size: 1, CachedAt: now,
	}))
	require.NoError(t, db.PutCacheMeta(ctx, models.CacheMeta{URL: "http://o/api/kept", CachedAt: now}))
	require.NoError(t, db.PutCacheMeta(ctx, models.CacheMeta{URL: "http://o/api/gone", CachedAt: now}))

	n, err := db.PruneCacheMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	kept, err := db.GetCacheMeta(ctx, "http://o/api/kept")
	require.NoError(t, err)
	assert.NotNil(t, kept)
	gone, err := db.GetCacheMeta(ctx, "http://o/api/gone")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestCacheTimesSortAcrossOffsets(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	edt := time.FixedZone("EDT", -4*60*60)
	est := time.FixedZone("EST", -5*60*60)

	require.NoError(t, db.PutCacheEntry(ctx, &models.CacheEntry{
		CacheName: "dynamic", Method: "GET", URL: "http://o/later", Status: 200, Size: 1,
		CachedAt: time.Date(2026, 11, 1, 1, 10, 0, 0, est),
	}))
	require.NoError(t, db.PutCacheEntry(ctx, &models.CacheEntry{
		CacheName: "dynamic", Method: "GET", URL: "http://o/earlier", Status: 200, Size: 1,
		CachedAt: time.Date(2026, 11, 1, 1, 40, 0, 0, edt),
	}))

	entries, err := db.ListCacheEntrySizes(ctx, "dynamic")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "http://o/earlier", entries[0].URL)
}
