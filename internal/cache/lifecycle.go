package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/virtual-shiksha/shiksha/internal/log"
	"github.com/virtual-shiksha/shiksha/internal/models"
	"github.com/virtual-shiksha/shiksha/pkg/version"
)

// Install fetches the whole manifest and stores it in the static partition.
// Either every asset is stored or none is.
func (r *Router) Install(ctx context.Context) (int, error) {
	ctx, span := r.tracer.Start(ctx, "cache.Install")
	defer span.End()

	log.Infof("caching app shell (%d assets) into %s", len(r.opts.Manifest), r.names.Static)
	entries := make([]models.CacheEntry, 0, len(r.opts.Manifest))
	for _, p := range r.opts.Manifest {
		key := r.resolve(p)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
		if err != nil {
			return 0, fmt.Errorf("install %s: %w", p, err)
		}
		req.Header.Set("User-Agent", version.UserAgent())

		resp, err := r.fetch(ctx, req)
		if err != nil {
			return 0, fmt.Errorf("install %s: %w", p, err)
		}
		if resp.StatusCode != http.StatusOK {
			discard(resp)
			return 0, fmt.Errorf("install %s: origin returned %s", p, resp.Status)
		}
		body, err := readBody(resp)
		if err != nil {
			return 0, fmt.Errorf("install %s: %w", p, err)
		}
		entry, err := r.newEntry(r.names.Static, http.MethodGet, key, resp, body)
		if err != nil {
			return 0, fmt.Errorf("install %s: %w", p, err)
		}
		entries = append(entries, *entry)
	}

	if err := r.store.PutCacheEntries(ctx, entries); err != nil {
		return 0, fmt.Errorf("store app shell: %w", err)
	}
	log.Infof("app shell cached")
	r.opts.Telemetry.TrackCacheInstalled(r.opts.Version, len(entries))
	return len(entries), nil
}

// Activate deletes every cache partition that is not one of the current
// version's three, then records the version as active.
func (r *Router) Activate(ctx context.Context) ([]string, error) {
	names, err := r.store.CacheNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}

	var removed []string
	for _, name := range names {
		if r.names.Contains(name) {
			continue
		}
		log.Infof("removing old cache %s", name)
		if _, err := r.store.DeleteCache(ctx, name); err != nil {
			return removed, fmt.Errorf("remove cache %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	if len(removed) > 0 {
		r.pruneMeta(ctx)
	}

	if err := r.store.SetMeta(ctx, models.MetaCacheVersion, r.opts.Version); err != nil {
		return removed, fmt.Errorf("record cache version: %w", err)
	}
	r.opts.Telemetry.TrackCacheActivated(r.opts.Version, len(removed))
	return removed, nil
}

// EnsureInstalled installs and activates the configured cache version when
// the stored one differs or the offline page is missing. It reports whether
// an install ran.
func (r *Router) EnsureInstalled(ctx context.Context) (bool, error) {
	stored, err := r.store.GetMeta(ctx, models.MetaCacheVersion)
	if err != nil {
		return false, fmt.Errorf("read cache version: %w", err)
	}

	if stored != "" && sameVersion(stored, r.opts.Version) && r.lookupAsset(ctx, OfflinePage) != nil {
		return false, nil
	}
	if stored != "" {
		log.Infof("cache version %s -> %s", stored, r.opts.Version)
	}

	if _, err := r.Install(ctx); err != nil {
		return false, err
	}
	if _, err := r.Activate(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// sameVersion compares semantically, falling back to string equality for
// versions that are not semver.
func sameVersion(a, b string) bool {
	cmp, err := version.CompareVersions(a, b)
	if err != nil {
		return a == b
	}
	return cmp == 0
}

// Stats summarises every cache partition, including stale ones.
func (r *Router) Stats(ctx context.Context) ([]models.CacheStats, error) {
	return r.store.CacheStats(ctx)
}

// Purge deletes the named cache partitions. With no names it deletes the
// dynamic partition.
func (r *Router) Purge(ctx context.Context, names ...string) (int64, error) {
	if len(names) == 0 {
		names = []string{r.names.Dynamic}
	}
	var total int64
	var errs []error
	for _, name := range names {
		n, err := r.store.DeleteCache(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += n
	}
	if total > 0 {
		r.pruneMeta(ctx)
	}
	return total, errors.Join(errs...)
}
