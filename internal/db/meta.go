package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/virtual-shiksha/shiksha/internal/models"
)

// GetMeta retrieves a metadata value. Missing keys yield "".
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	return (&DB{DB: db.WithContext(ctx)}).getMeta(key)
}

func (db *DB) getMeta(key string) (string, error) {
	var meta models.Meta
	err := db.First(&meta, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return meta.Value, nil
}

// SetMeta sets a metadata value.
func (db *DB) SetMeta(ctx context.Context, key, value string) error {
	return setMeta(db.WithContext(ctx), key, value)
}

func setMeta(tx *gorm.DB, key, value string) error {
	meta := models.Meta{Key: key, Value: value}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&meta).Error
}

// GetOrCreateTrackingID returns the persistent tracking ID, creating one if it doesn't exist.
// On any error, it falls back to generating a per-session ID.
func (db *DB) GetOrCreateTrackingID() string {
	id, err := db.getMeta(models.MetaTrackingID)
	if err != nil {
		return generateSessionID()
	}
	if id != "" {
		return id
	}

	id = generateSessionID()
	// Even if save fails, the generated ID is good for this session.
	_ = setMeta(db.DB, models.MetaTrackingID, id)
	return id
}

// generateSessionID creates a new UUID for session-based tracking.
func generateSessionID() string {
	return uuid.New().String()
}
