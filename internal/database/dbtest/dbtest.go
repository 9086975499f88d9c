// Package dbtest opens throwaway in-memory databases for tests.
package dbtest

import (
	"testing"

	"escrow-market/internal/database"

	"gorm.io/gorm"
)

// New returns a migrated in-memory sqlite database that lives for the test.
// The pool holds a single connection, so inside a transaction only the
// transaction handle may be used.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
