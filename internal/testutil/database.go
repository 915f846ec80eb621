package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"docstore/internal/database"
	"docstore/internal/model"
)

// NewTestRegistry creates a new in-memory SQLite registry with the schema
// migrated. The registry is automatically closed when the test completes.
func NewTestRegistry(t *testing.T) *database.SQLiteRegistry {
	t.Helper()

	reg, err := database.NewSQLiteRegistry(":memory:")
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}

	t.Cleanup(func() {
		reg.Close()
	})

	return reg
}

// SeedDocument inserts a hot lab-results PDF record for key, created at createdAt.
func SeedDocument(t *testing.T, reg *database.SQLiteRegistry, key string, createdAt time.Time) *model.Document {
	t.Helper()

	doc, err := reg.CreateDocument(context.Background(), &model.Document{
		OwnerID:         42,
		Category:        "lab-results",
		OriginalName:    "results.pdf",
		MimeType:        "application/pdf",
		SizeBytes:       1024,
		StorageKey:      sql.NullString{String: key, Valid: key != ""},
		StorageBucket:   "test-bucket",
		StorageProvider: "memory",
		CreatedAt:       createdAt,
	})
	if err != nil {
		t.Fatalf("failed to seed document: %v", err)
	}
	return doc
}
