package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtual-shiksha/shiksha/internal/models"
)

// testDB creates a temporary test database.
func testDB(t *testing.T) *DB {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := New(Config{
		Path:        dbPath,
		Debug:       false,
		MaxIdleConn: 1,
		MaxOpenConn: 1,
	})
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close test database: %v", err)
		}
	})

	return db
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "shiksha.db")

	db, err := New(DefaultConfig(dbPath))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
	}()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
	}
}

func TestNew_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "dirs", "shiksha.db")

	db, err := New(DefaultConfig(dbPath))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = os.Stat(filepath.Dir(dbPath))
	assert.NoError(t, err, "nested directories were not created")
}

func TestNew_StorageUnavailable(t *testing.T) {
	tmpDir := t.TempDir()
	blocker := filepath.Join(tmpDir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	// A regular file where the directory should be.
	_, err := New(DefaultConfig(filepath.Join(blocker, "shiksha.db")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageUnavailable), "got %v", err)

	_, err = New(DefaultConfig(""))
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
}

func TestNew_ProvisionsSchema(t *testing.T) {
	db := testDB(t)

	version, err := db.StoredSchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)

	parts := db.Partitions()
	require.Len(t, parts, len(Schema))
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{
		models.PartitionStudentData,
		models.PartitionTeacherData,
		models.PartitionClasses,
		models.PartitionAssignments,
		models.PartitionQuizzes,
		models.PartitionDownloads,
		models.PartitionSyncQueue,
	}, names)

	queue := parts[len(parts)-1]
	assert.True(t, queue.AutoIncrement)
	assert.Equal(t, "syncType,timestamp", queue.Indexes)
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shiksha.db")
	ctx := context.Background()

	first, err := New(DefaultConfig(dbPath))
	require.NoError(t, err)
	_, err = first.PutRecord(ctx, models.PartitionClasses, models.Record{ID: models.StringID("c1"), Data: models.JSON(`{"id":"c1"}`)})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(DefaultConfig(dbPath))
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	assert.Len(t, second.Partitions(), len(Schema))
	_, found, err := second.GetRecord(ctx, models.PartitionClasses, models.StringID("c1"))
	require.NoError(t, err)
	assert.True(t, found, "records survive a reopen")
}

func TestMeta(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	v, err := db.GetMeta(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetMeta(ctx, models.MetaCacheVersion, "v1.0.0"))
	require.NoError(t, db.SetMeta(ctx, models.MetaCacheVersion, "v1.1.0"))
	v, err = db.GetMeta(ctx, models.MetaCacheVersion)
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", v)
}

func TestGetOrCreateTrackingID(t *testing.T) {
	db := testDB(t)

	first := db.GetOrCreateTrackingID()
	require.NotEmpty(t, first)
	assert.Equal(t, first, db.GetOrCreateTrackingID(), "tracking id is persistent")
}

// --- Sync queue tables ---

func TestSyncEntries(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	late := &models.SyncEntry{SyncType: models.SyncTypeForum, Payload: models.JSON(`{}`), EnqueuedAt: base.Add(2 * time.Minute), DeliveryKey: "k-late"}
	early := &models.SyncEntry{SyncType: models.SyncTypeQuiz, Payload: models.JSON(`{"q":1}`), EnqueuedAt: base, DeliveryKey: "k-early"}
	require.NoError(t, db.InsertSyncEntry(ctx, late))
	require.NoError(t, db.InsertSyncEntry(ctx, early))
	assert.NotZero(t, late.ID)
	assert.Greater(t, early.ID, late.ID, "ids are assigned in insertion order")

	entries, err := db.ListSyncEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, early.ID, entries[0].ID, "ordered by enqueue time")

	quizzes, err := db.ListSyncEntriesByType(ctx, models.SyncTypeQuiz)
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.JSONEq(t, `{"q":1}`, string(quizzes[0].Payload))

	n, err := db.IncrementSyncAttempts(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = db.IncrementSyncAttempts(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, db.SetSyncError(ctx, early.ID, "boom"))
	require.NoError(t, db.DeleteSyncEntry(ctx, late.ID))
	require.NoError(t, db.DeleteSyncEntry(ctx, late.ID), "deleting twice is fine")

	count, err := db.CountSyncEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = db.IncrementSyncAttempts(ctx, late.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}
