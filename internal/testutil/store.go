// Package testutil provides testing utilities.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/virtual-shiksha/shiksha/internal/db"
)

// OpenDB opens a store in a fresh temporary directory and closes it when the
// test ends.
func OpenDB(t *testing.T) *db.DB {
	t.Helper()

	store, err := db.New(db.DefaultConfig(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("close test database: %v", err)
		}
	})
	return store
}
