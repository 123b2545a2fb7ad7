package cache

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtual-shiksha/shiksha/internal/models"
)

func TestInstall_CachesWholeManifest(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	n, err := env.router.Install(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultManifest), n)

	static := env.stats(t)[env.router.Names().Static]
	assert.Equal(t, int64(len(DefaultManifest)), static.Entries)

	// Installed assets are served without touching the network.
	env.net.down.Store(true)
	_, body, err := env.get(t, env.origin.URL+"/css/main.css", "")
	require.NoError(t, err)
	assert.Equal(t, "content of /css/main.css", body)
}

func TestInstall_AllOrNothing(t *testing.T) {
	env := newTestEnv(t, nil)
	env.origin.setStatus("/js/offline.js", http.StatusInternalServerError)

	_, err := env.router.Install(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/js/offline.js")
	assert.Empty(t, env.stats(t), "a failed install stores nothing")
}

func TestActivate_RemovesOldVersions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	old := NamesFor("v0.9.0")
	for _, name := range old.All() {
		require.NoError(t, env.store.PutCacheEntry(ctx, &models.CacheEntry{
			CacheName: name, Method: http.MethodGet, URL: env.origin.URL + "/old", Status: 200,
			Body: []byte("old"), Size: 3, CachedAt: time.Now(),
		}))
	}
	require.NoError(t, env.store.PutCacheMeta(ctx, models.CacheMeta{URL: env.origin.URL + "/old", CachedAt: time.Now()}))
	env.install(t)

	removed, err := env.router.Activate(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, old.All(), removed)

	meta, err := env.store.GetCacheMeta(ctx, env.origin.URL+"/old")
	require.NoError(t, err)
	assert.Nil(t, meta, "metadata of removed caches is dropped")

	names, err := env.store.CacheNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{env.router.Names().Static}, names)

	v, err := env.store.GetMeta(ctx, models.MetaCacheVersion)
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, v)
}

func TestEnsureInstalled(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	installed, err := env.router.EnsureInstalled(ctx)
	require.NoError(t, err)
	assert.True(t, installed)
	hits := env.origin.hitCount(OfflinePage)

	installed, err = env.router.EnsureInstalled(ctx)
	require.NoError(t, err)
	assert.False(t, installed, "same version is not reinstalled")
	assert.Equal(t, hits, env.origin.hitCount(OfflinePage))

	// A version bump reinstalls and drops the previous partitions.
	bumped, err := NewRouter(env.store, Options{Origin: env.origin.URL, Version: "v1.1.0", Transport: env.net})
	require.NoError(t, err)
	installed, err = bumped.EnsureInstalled(ctx)
	require.NoError(t, err)
	assert.True(t, installed)

	names, err := env.store.CacheNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"rvs-static-v1.1.0"}, names)
}

func TestEnsureInstalled_ReinstallsWhenOfflinePageMissing(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.router.EnsureInstalled(ctx)
	require.NoError(t, err)
	_, err = env.router.Purge(ctx, env.router.Names().Static)
	require.NoError(t, err)

	installed, err := env.router.EnsureInstalled(ctx)
	require.NoError(t, err)
	assert.True(t, installed)
}

func TestSameVersion(t *testing.T) {
	assert.True(t, sameVersion("v1.0.0", "1.0.0"))
	assert.False(t, sameVersion("v1.0.0", "v1.0.1"))
	assert.True(t, sameVersion("build-7", "build-7"))
	assert.False(t, sameVersion("build-7", "v1.0.0"))
}

func TestPurge(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.install(t)
	_, _, err := env.get(t, env.origin.URL+"/pages/classes.html", acceptHTML)
	require.NoError(t, err)

	n, err := env.router.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "purges the dynamic cache by default")

	stats := env.stats(t)
	assert.NotContains(t, stats, env.router.Names().Dynamic)
	assert.Contains(t, stats, env.router.Names().Static)
}

func TestPurge_DropsStalenessMetadata(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	key := env.origin.URL + "/api/classes"

	_, _, err := env.get(t, key, acceptJSON)
	require.NoError(t, err)
	meta, err := env.store.GetCacheMeta(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, meta)

	_, err = env.router.Purge(ctx)
	require.NoError(t, err)

	meta, err = env.store.GetCacheMeta(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, meta, "metadata goes with its entry")
}
