// Package db provides the GORM-based persistent store for shiksha.
// It uses the pure-Go SQLite driver and keeps domain records in named
// partitions, plus the tables owned by the sync queue and the cache router.
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/virtual-shiksha/shiksha/internal/models"
)

// SchemaVersion is bumped whenever Schema changes. Upgrades only ever create
// what is missing, so re-running one is harmless.
const SchemaVersion = 1

// PartitionSpec describes one partition of the fixed schema.
type PartitionSpec struct {
	Name          string
	KeyPath       string
	AutoIncrement bool
	Indexes       []string
}

// Schema lists every partition provisioned on open.
var Schema = []PartitionSpec{
	{Name: models.PartitionStudentData, KeyPath: "id"},
	{Name: models.PartitionTeacherData, KeyPath: "id"},
	{Name: models.PartitionClasses, KeyPath: "id"},
	{Name: models.PartitionAssignments, KeyPath: "id"},
	{Name: models.PartitionQuizzes, KeyPath: "id"},
	{Name: models.PartitionDownloads, KeyPath: "id", Indexes: []string{"filename"}},
	{Name: models.PartitionSyncQueue, KeyPath: "id", AutoIncrement: true, Indexes: []string{"syncType", "timestamp"}},
}

// DB wraps the GORM database connection with shiksha-specific operations.
type DB struct {
	*gorm.DB
	path       string
	partitions map[string]models.Partition
}

// Config holds database configuration options.
type Config struct {
	Path        string
	Debug       bool
	MaxIdleConn int
	MaxOpenConn int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		Debug:       false,
		MaxIdleConn: 1,
		MaxOpenConn: 1,
	}
}

// New opens (creating if absent) the store and provisions the schema.
// It fails with ErrStorageUnavailable when the backing file cannot be used.
func New(cfg Config) (*DB, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, &OpError{Op: "open", Kind: ErrStorageUnavailable, Err: fmt.Errorf("database path is required")}
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &OpError{Op: "open", Kind: ErrStorageUnavailable, Err: fmt.Errorf("create db directory: %w", err)}
	}

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}

	// DELETE journal mode: WAL has visibility issues with the pure-Go driver.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", cfg.Path)

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, &OpError{Op: "open", Kind: ErrStorageUnavailable, Err: err}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, &OpError{Op: "open", Kind: ErrStorageUnavailable, Err: fmt.Errorf("get sql.DB: %w", err)}
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Hour)

	wrapped := &DB{DB: gdb, path: cfg.Path}

	if err := wrapped.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, &OpError{Op: "open", Kind: ErrStorageUnavailable, Err: fmt.Errorf("migrate: %w", err)}
	}

	if err := wrapped.upgrade(); err != nil {
		_ = sqlDB.Close()
		return nil, &OpError{Op: "open", Kind: ErrStorageUnavailable, Err: fmt.Errorf("upgrade schema: %w", err)}
	}

	if err := wrapped.loadPartitions(); err != nil {
		_ = sqlDB.Close()
		return nil, &OpError{Op: "open", Kind: ErrStorageUnavailable, Err: fmt.Errorf("load partitions: %w", err)}
	}

	return wrapped, nil
}

// migrate runs GORM auto-migrations for all models.
func (db *DB) migrate() error {
	return db.AutoMigrate(
		&models.Meta{},
		&models.Partition{},
		&models.Record{},
		&models.SyncEntry{},
		&models.CacheEntry{},
		&models.CacheMeta{},
	)
}

// upgrade provisions partitions when the stored schema version is behind.
func (db *DB) upgrade() error {
	current := 0
	raw, err := db.getMeta(models.MetaSchemaVersion)
	if err != nil {
		return err
	}
	if raw != "" {
		current, err = strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse schema version %q: %w", raw, err)
		}
	}
	if current >= SchemaVersion {
		return nil
	}

	return db.DB.Transaction(func(tx *gorm.DB) error {
		for _, spec := range Schema {
			p := models.Partition{
				Name:          spec.Name,
				KeyPath:       spec.KeyPath,
				AutoIncrement: spec.AutoIncrement,
				Indexes:       strings.Join(spec.Indexes, ","),
			}
			if err := tx.Where("name = ?", spec.Name).FirstOrCreate(&p).Error; err != nil {
				return fmt.Errorf("provision %s: %w", spec.Name, err)
			}
		}
		return setMeta(tx, models.MetaSchemaVersion, strconv.Itoa(SchemaVersion))
	})
}

func (db *DB) loadPartitions() error {
	var rows []models.Partition
	if err := db.Find(&rows).Error; err != nil {
		return err
	}
	db.partitions = make(map[string]models.Partition, len(rows))
	for _, p := range rows {
		db.partitions[p.Name] = p
	}
	return nil
}

// Partitions returns the provisioned partitions in schema order.
func (db *DB) Partitions() []models.Partition {
	out := make([]models.Partition, 0, len(db.partitions))
	for _, spec := range Schema {
		if p, ok := db.partitions[spec.Name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// StoredSchemaVersion returns the schema version recorded in the store.
func (db *DB) StoredSchemaVersion() (int, error) {
	raw, err := db.getMeta(models.MetaSchemaVersion)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction executes a function within a database transaction.
// The callback receives a *DB wrapper that uses the transaction.
func (db *DB) Transaction(fc func(tx *DB) error) error {
	return db.DB.Transaction(func(tx *gorm.DB) error {
		return fc(&DB{DB: tx, path: db.path, partitions: db.partitions})
	})
}
