package db

import (
	"context"

	"github.com/virtual-shiksha/shiksha/internal/models"
)

// Sync queue rows live in their own table and are only touched by the
// sync queue package.

// InsertSyncEntry persists a new entry and assigns its ID. Times are stored
// in UTC so that their text form sorts chronologically.
func (db *DB) InsertSyncEntry(ctx context.Context, entry *models.SyncEntry) error {
	entry.EnqueuedAt = entry.EnqueuedAt.UTC()
	if err := db.WithContext(ctx).Create(entry).Error; err != nil {
		return writeErr("enqueue", models.PartitionSyncQueue, err)
	}
	return nil
}

// ListSyncEntries returns every queued entry, oldest first.
func (db *DB) ListSyncEntries(ctx context.Context) ([]models.SyncEntry, error) {
	var entries []models.SyncEntry
	err := db.WithContext(ctx).Order("enqueued_at ASC").Order("id ASC").Find(&entries).Error
	if err != nil {
		return nil, readErr("list", models.PartitionSyncQueue, err)
	}
	return entries, nil
}

// ListSyncEntriesByType returns the queued entries of one sync type, oldest first.
func (db *DB) ListSyncEntriesByType(ctx context.Context, syncType models.SyncType) ([]models.SyncEntry, error) {
	var entries []models.SyncEntry
	err := db.WithContext(ctx).
		Where("sync_type = ?", syncType).
		Order("enqueued_at ASC").Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, readErr("list", models.PartitionSyncQueue, err)
	}
	return entries, nil
}

// IncrementSyncAttempts bumps the attempt counter in a single statement and
// returns the new value.
func (db *DB) IncrementSyncAttempts(ctx context.Context, id uint) (int, error) {
	var attempts []int
	res := db.WithContext(ctx).
		Raw("UPDATE sync_queue SET attempts = attempts + 1 WHERE id = ? RETURNING attempts", id).
		Scan(&attempts)
	if res.Error != nil {
		return 0, writeErr("increment", models.PartitionSyncQueue, res.Error)
	}
	if len(attempts) == 0 {
		return 0, &OpError{Op: "increment", Partition: models.PartitionSyncQueue, Kind: ErrNotFound}
	}
	return attempts[0], nil
}

// SetSyncError records the last delivery error for an entry.
func (db *DB) SetSyncError(ctx context.Context, id uint, msg string) error {
	err := db.WithContext(ctx).Model(&models.SyncEntry{}).Where("id = ?", id).Update("last_error", msg).Error
	if err != nil {
		return writeErr("update", models.PartitionSyncQueue, err)
	}
	return nil
}

// DeleteSyncEntry removes an entry. Missing entries are ignored.
func (db *DB) DeleteSyncEntry(ctx context.Context, id uint) error {
	if err := db.WithContext(ctx).Delete(&models.SyncEntry{}, id).Error; err != nil {
		return writeErr("delete", models.PartitionSyncQueue, err)
	}
	return nil
}

// CountSyncEntries returns the queue length.
func (db *DB) CountSyncEntries(ctx context.Context) (int64, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.SyncEntry{}).Count(&n).Error; err != nil {
		return 0, readErr("count", models.PartitionSyncQueue, err)
	}
	return n, nil
}
