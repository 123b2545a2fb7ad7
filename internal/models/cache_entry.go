package models

import "time"

// CacheEntry is one cached HTTP response, keyed by (cache name, method, URL).
type CacheEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CacheName string    `gorm:"size:100;not null;uniqueIndex:idx_cache_key,priority:1;index" json:"cache_name"`
	Method    string    `gorm:"size:16;not null;uniqueIndex:idx_cache_key,priority:2" json:"method"`
	URL       string    `gorm:"size:2048;not null;uniqueIndex:idx_cache_key,priority:3" json:"url"`
	Status    int       `gorm:"not null" json:"status"`
	Header    string    `gorm:"type:text" json:"header"` // JSON-encoded http.Header
	Body      []byte    `gorm:"type:blob" json:"-"`
	Size      int64     `gorm:"not null;default:0" json:"size"`
	CachedAt  time.Time `gorm:"index;not null" json:"cached_at"`
}

// TableName specifies the table name for GORM.
func (CacheEntry) TableName() string {
	return "cache_entries"
}

// CacheMeta records when an API response was cached, for staleness checks.
type CacheMeta struct {
	URL      string    `gorm:"primaryKey;size:2048" json:"url"`
	CachedAt time.Time `gorm:"not null" json:"timestamp"`
}

// TableName specifies the table name for GORM.
func (CacheMeta) TableName() string {
	return "cache_meta"
}

// CacheStats summarises one cache partition.
type CacheStats struct {
	CacheName string
	Entries   int64
	Bytes     int64
}
