package testutil

import (
	"database/sql"
	"testing"

	"github.com/krishanraja/try-ritual-sub002/internal/database"
)

func NewTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	// Each pooled connection would otherwise see its own private in-memory
	// database; a single connection keeps the schema visible to all callers.
	db.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
