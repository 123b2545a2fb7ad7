package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/virtual-shiksha/shiksha/internal/models"
)

// partition resolves a partition name for the generic record API.
func (db *DB) partition(op, name string) (models.Partition, error) {
	p, ok := db.partitions[name]
	if !ok {
		return models.Partition{}, partitionErr(op, name, ErrUnknownPartition)
	}
	if p.Name == models.PartitionSyncQueue {
		return models.Partition{}, partitionErr(op, name, ErrReservedPartition)
	}
	return p, nil
}

// PutRecord inserts or fully replaces the record at rec.ID within partition.
// The previous value is discarded; fields are never merged.
func (db *DB) PutRecord(ctx context.Context, partition string, rec models.Record) (models.RecordID, error) {
	if _, err := db.partition("put", partition); err != nil {
		return models.RecordID{}, err
	}
	if rec.ID.IsZero() {
		return models.RecordID{}, writeErr("put", partition, fmt.Errorf("record id is required"))
	}
	if len(rec.Data) == 0 {
		rec.Data = models.JSON("null")
	}
	if !json.Valid(rec.Data) {
		return models.RecordID{}, writeErr("put", partition, fmt.Errorf("record %s: data is not valid JSON", rec.ID))
	}

	rec.Partition = partition
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "partition_name"}, {Name: "id_key"}, {Name: "id_numeric"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return models.RecordID{}, writeErr("put", partition, err)
	}
	return rec.ID, nil
}

// PutJSON stores a JSON object, taking its identifier from the partition's
// key path (a string or integer field).
func (db *DB) PutJSON(ctx context.Context, partition string, data []byte) (models.RecordID, error) {
	p, err := db.partition("put", partition)
	if err != nil {
		return models.RecordID{}, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.RecordID{}, writeErr("put", partition, fmt.Errorf("decode record: %w", err))
	}
	id, err := keyFromJSON(doc[p.KeyPath])
	if err != nil {
		return models.RecordID{}, writeErr("put", partition, fmt.Errorf("key path %q: %w", p.KeyPath, err))
	}
	return db.PutRecord(ctx, partition, models.Record{ID: id, Data: models.JSON(data)})
}

func keyFromJSON(raw json.RawMessage) (models.RecordID, error) {
	if len(raw) == 0 {
		return models.RecordID{}, fmt.Errorf("missing")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return models.StringID(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return models.IntID(i), nil
		}
	}
	return models.RecordID{}, fmt.Errorf("must be a string or integer, got %s", raw)
}

// GetRecord returns the record with the given ID. found is false when the
// record does not exist; absence is never an error.
func (db *DB) GetRecord(ctx context.Context, partition string, id models.RecordID) (rec models.Record, found bool, err error) {
	if _, err := db.partition("get", partition); err != nil {
		return models.Record{}, false, err
	}
	err = db.WithContext(ctx).First(&rec, "partition_name = ? AND id_key = ? AND id_numeric = ?", partition, id.Key, id.Numeric).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Record{}, false, nil
		}
		return models.Record{}, false, readErr("get", partition, err)
	}
	return rec, true, nil
}

// GetAllRecords returns every record in the partition.
func (db *DB) GetAllRecords(ctx context.Context, partition string) ([]models.Record, error) {
	if _, err := db.partition("getAll", partition); err != nil {
		return nil, err
	}
	var recs []models.Record
	if err := db.WithContext(ctx).Where("partition_name = ?", partition).Order("id_numeric DESC, id_key").Find(&recs).Error; err != nil {
		return nil, readErr("getAll", partition, err)
	}
	return recs, nil
}

// GetAllByIndex returns the records whose indexed field equals value.
func (db *DB) GetAllByIndex(ctx context.Context, partition, index string, value any) ([]models.Record, error) {
	p, err := db.partition("getAllByIndex", partition)
	if err != nil {
		return nil, err
	}
	if !hasIndex(p, index) {
		return nil, &OpError{Op: "getAllByIndex", Partition: partition, Kind: ErrUnknownIndex, Err: fmt.Errorf("%q", index)}
	}

	var recs []models.Record
	err = db.WithContext(ctx).
		Where("partition_name = ? AND json_extract(data, ?) = ?", partition, "$."+index, value).
		Order("id_numeric DESC, id_key").
		Find(&recs).Error
	if err != nil {
		return nil, readErr("getAllByIndex", partition, err)
	}
	return recs, nil
}

func hasIndex(p models.Partition, index string) bool {
	for _, name := range strings.Split(p.Indexes, ",") {
		if name == index {
			return true
		}
	}
	return false
}

// DeleteRecord removes a record. Deleting a missing record is not an error.
func (db *DB) DeleteRecord(ctx context.Context, partition string, id models.RecordID) error {
	if _, err := db.partition("delete", partition); err != nil {
		return err
	}
	err := db.WithContext(ctx).Where("partition_name = ? AND id_key = ? AND id_numeric = ?", partition, id.Key, id.Numeric).Delete(&models.Record{}).Error
	if err != nil {
		return writeErr("delete", partition, err)
	}
	return nil
}

// ClearPartition removes every record in the partition.
func (db *DB) ClearPartition(ctx context.Context, partition string) error {
	if _, err := db.partition("clear", partition); err != nil {
		return err
	}
	err := db.WithContext(ctx).Where("partition_name = ?", partition).Delete(&models.Record{}).Error
	if err != nil {
		return writeErr("clear", partition, err)
	}
	return nil
}

// PutValue marshals v and stores it under id.
func PutValue[T any](ctx context.Context, db *DB, partition string, id models.RecordID, v T) (models.RecordID, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return models.RecordID{}, writeErr("put", partition, fmt.Errorf("marshal record: %w", err))
	}
	return db.PutRecord(ctx, partition, models.Record{ID: id, Data: data})
}

// GetValue loads the record under id and unmarshals it into a T.
func GetValue[T any](ctx context.Context, db *DB, partition string, id models.RecordID) (T, bool, error) {
	var v T
	rec, found, err := db.GetRecord(ctx, partition, id)
	if err != nil || !found {
		return v, found, err
	}
	if err := rec.Decode(&v); err != nil {
		return v, false, readErr("get", partition, fmt.Errorf("decode record %s: %w", id, err))
	}
	return v, true, nil
}

// ParseRecordID accepts the textual form used on the command line: an
// integer names an integer key, a double-quoted value names a string key,
// and anything else is taken as a string.
func ParseRecordID(s string) models.RecordID {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return models.IntID(n)
	}
	if unq, err := strconv.Unquote(s); err == nil && strings.HasPrefix(s, `"`) {
		return models.StringID(unq)
	}
	return models.StringID(s)
}
