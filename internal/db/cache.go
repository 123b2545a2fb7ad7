package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/virtual-shiksha/shiksha/internal/models"
)

// Cache rows belong to the cache router; these helpers do no policy.

// MatchCache looks a request key up across the given cache names and returns
// the entry from the first name that has one, or nil on a miss.
func (db *DB) MatchCache(ctx context.Context, cacheNames []string, method, url string) (*models.CacheEntry, error) {
	if len(cacheNames) == 0 {
		return nil, nil
	}
	var entries []models.CacheEntry
	err := db.WithContext(ctx).
		Where("cache_name IN ? AND method = ? AND url = ?", cacheNames, method, url).
		Find(&entries).Error
	if err != nil {
		return nil, readErr("match", "cache", err)
	}
	for _, name := range cacheNames {
		for i := range entries {
			if entries[i].CacheName == name {
				return &entries[i], nil
			}
		}
	}
	return nil, nil
}

// PutCacheEntry inserts or replaces an entry keyed by (cache, method, url).
// CachedAt is stored in UTC so eviction order follows real time.
func (db *DB) PutCacheEntry(ctx context.Context, entry *models.CacheEntry) error {
	entry.CachedAt = entry.CachedAt.UTC()
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_name"}, {Name: "method"}, {Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "header", "body", "size", "cached_at"}),
	}).Create(entry).Error
	if err != nil {
		return writeErr("put", entry.CacheName, err)
	}
	return nil
}

// PutCacheEntries stores all entries or none of them.
func (db *DB) PutCacheEntries(ctx context.Context, entries []models.CacheEntry) error {
	return db.Transaction(func(tx *DB) error {
		for i := range entries {
			if err := tx.PutCacheEntry(ctx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListCacheEntrySizes returns the entries of one cache, oldest first,
// without their bodies.
func (db *DB) ListCacheEntrySizes(ctx context.Context, cacheName string) ([]models.CacheEntry, error) {
	var entries []models.CacheEntry
	err := db.WithContext(ctx).
		Select("id", "cache_name", "method", "url", "size", "cached_at").
		Where("cache_name = ?", cacheName).
		Order("cached_at ASC").Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, readErr("list", cacheName, err)
	}
	return entries, nil
}

// CountCacheEntries returns the number of entries in one cache.
func (db *DB) CountCacheEntries(ctx context.Context, cacheName string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&models.CacheEntry{}).Where("cache_name = ?", cacheName).Count(&n).Error
	if err != nil {
		return 0, readErr("count", cacheName, err)
	}
	return n, nil
}

// DeleteCacheEntry removes one entry by row ID.
func (db *DB) DeleteCacheEntry(ctx context.Context, id uint) error {
	if err := db.WithContext(ctx).Delete(&models.CacheEntry{}, id).Error; err != nil {
		return writeErr("delete", "cache", err)
	}
	return nil
}

// CacheNames returns the distinct cache names currently holding entries.
func (db *DB) CacheNames(ctx context.Context) ([]string, error) {
	var names []string
	err := db.WithContext(ctx).Model(&models.CacheEntry{}).Distinct().Order("cache_name").Pluck("cache_name", &names).Error
	if err != nil {
		return nil, readErr("keys", "cache", err)
	}
	return names, nil
}

// DeleteCache drops every entry of a cache name.
func (db *DB) DeleteCache(ctx context.Context, cacheName string) (int64, error) {
	res := db.WithContext(ctx).Where("cache_name = ?", cacheName).Delete(&models.CacheEntry{})
	if res.Error != nil {
		return 0, writeErr("delete", cacheName, res.Error)
	}
	return res.RowsAffected, nil
}

// CacheStats summarises every cache name.
func (db *DB) CacheStats(ctx context.Context) ([]models.CacheStats, error) {
	var stats []models.CacheStats
	err := db.WithContext(ctx).Model(&models.CacheEntry{}).
		Select("cache_name, COUNT(*) AS entries, COALESCE(SUM(size), 0) AS bytes").
		Group("cache_name").
		Order("cache_name").
		Scan(&stats).Error
	if err != nil {
		return nil, readErr("stats", "cache", err)
	}
	return stats, nil
}

// PutCacheMeta records when a URL was last cached.
func (db *DB) PutCacheMeta(ctx context.Context, meta models.CacheMeta) error {
	meta.CachedAt = meta.CachedAt.UTC()
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{"cached_at"}),
	}).Create(&meta).Error
	if err != nil {
		return writeErr("put", "cache_meta", err)
	}
	return nil
}

// GetCacheMeta returns the metadata for a URL, or nil when none was stored.
func (db *DB) GetCacheMeta(ctx context.Context, url string) (*models.CacheMeta, error) {
	var meta models.CacheMeta
	err := db.WithContext(ctx).First(&meta, "url = ?", url).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, readErr("get", "cache_meta", err)
	}
	return &meta, nil
}

// PruneCacheMeta deletes metadata rows whose URL no longer has a cached
// entry in any partition.
func (db *DB) PruneCacheMeta(ctx context.Context) (int64, error) {
	res := db.WithContext(ctx).
		Where("url NOT IN (?)", db.WithContext(ctx).Model(&models.CacheEntry{}).Select("url")).
		Delete(&models.CacheMeta{})
	if res.Error != nil {
		return 0, writeErr("prune", "cache_meta", res.Error)
	}
	return res.RowsAffected, nil
}
