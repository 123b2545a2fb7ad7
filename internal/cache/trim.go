package cache

import (
	"context"
	"fmt"

	"github.com/virtual-shiksha/shiksha/internal/log"
)

// TrimResult reports what one trim pass removed.
type TrimResult struct {
	Evicted int
	Bytes   int64
	Total   int64
}

// Trim bounds the dynamic partition. It does nothing while the partition
// holds fewer than TrimMinEntries entries; otherwise it evicts the oldest
// entries until the total size is at or below MaxBytes.
func (r *Router) Trim(ctx context.Context) error {
	_, err := r.trim(ctx, r.names.Dynamic)
	return err
}

func (r *Router) trim(ctx context.Context, cacheName string) (TrimResult, error) {
	count, err := r.store.CountCacheEntries(ctx, cacheName)
	if err != nil {
		return TrimResult{}, err
	}
	if count < int64(r.opts.TrimMinEntries) {
		return TrimResult{}, nil
	}

	entries, err := r.store.ListCacheEntrySizes(ctx, cacheName)
	if err != nil {
		return TrimResult{}, err
	}
	var res TrimResult
	for _, e := range entries {
		res.Total += e.Size
	}

	for len(entries) > 0 && res.Total > r.opts.MaxBytes {
		oldest := entries[0]
		entries = entries[1:]
		if err := r.store.DeleteCacheEntry(ctx, oldest.ID); err != nil {
			return res, fmt.Errorf("evict %s: %w", oldest.URL, err)
		}
		res.Total -= oldest.Size
		res.Bytes += oldest.Size
		res.Evicted++
		log.Debugf("removed from cache: %s", oldest.URL)
	}

	if res.Evicted > 0 {
		r.pruneMeta(ctx)
		log.Infof("trimmed %s: evicted %d entries (%d bytes)", cacheName, res.Evicted, res.Bytes)
		r.opts.Telemetry.TrackCacheEvicted(cacheName, res.Evicted, res.Bytes)
	}
	return res, nil
}

// pruneMeta drops staleness metadata left behind by removed entries.
func (r *Router) pruneMeta(ctx context.Context) {
	n, err := r.store.PruneCacheMeta(ctx)
	if err != nil {
		log.Warnf("prune cache metadata: %v", err)
		return
	}
	if n > 0 {
		log.Debugf("pruned %d cache metadata rows", n)
	}
}
