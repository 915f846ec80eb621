package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"docstore/internal/database/migrations"
	"docstore/internal/database/sqlc"
	"docstore/internal/docstore"
	"docstore/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// timeFormat is fixed-width so stored timestamps compare correctly as text.
// Values are always written in UTC.
const timeFormat = "2006-01-02 15:04:05.000000000-07:00"

func dbTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// SQLiteRegistry implements docstore.Registry using SQLite.
type SQLiteRegistry struct {
	db      *sql.DB
	queries *sqlc.Queries
	path    string
}

// NewSQLiteRegistry opens the registry at path and migrates it to the latest
// schema. path can be a file path or ":memory:".
func NewSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating registry: %w", err)
	}
	return &SQLiteRegistry{db: db, queries: sqlc.New(db), path: path}, nil
}

// NewSQLiteRegistryFromDB wraps an existing, already migrated connection.
func NewSQLiteRegistryFromDB(db *sql.DB) *SQLiteRegistry {
	return &SQLiteRegistry{db: db, queries: sqlc.New(db)}
}

// OpenConnection opens a SQLite connection configured for the registry.
// File databases use WAL and a busy timeout so the scheduler and CLI can share
// them. An in-memory database is pinned to a single connection, since every
// new connection to ":memory:" gets an empty database.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// DB returns the underlying connection.
func (r *SQLiteRegistry) DB() *sql.DB {
	return r.db
}

// Path returns the database path, or "" when wrapping an existing connection.
func (r *SQLiteRegistry) Path() string {
	return r.path
}

// Document operations

func toDocument(row sqlc.Document) *model.Document {
	return &model.Document{
		ID:                row.ID,
		OwnerID:           row.OwnerID,
		Category:          row.Category,
		OriginalName:      row.OriginalName,
		MimeType:          row.MimeType,
		SizeBytes:         row.SizeBytes,
		StorageKey:        row.StorageKey,
		StorageBucket:     row.StorageBucket,
		StorageProvider:   row.StorageProvider,
		StorageClass:      model.StorageClass(row.StorageClass),
		CreatedAt:         row.CreatedAt,
		StorageMigratedAt: row.StorageMigratedAt,
	}
}

func (r *SQLiteRegistry) CreateDocument(ctx context.Context, doc *model.Document) (*model.Document, error) {
	created := *doc
	created.StorageClass = model.ClassHot
	created.StorageMigratedAt = sql.NullTime{}
	created.CreatedAt = doc.CreatedAt.UTC()

	id, err := r.queries.CreateDocument(ctx, sqlc.CreateDocumentParams{
		OwnerID:         created.OwnerID,
		Category:        created.Category,
		OriginalName:    created.OriginalName,
		MimeType:        created.MimeType,
		SizeBytes:       created.SizeBytes,
		StorageKey:      created.StorageKey,
		StorageBucket:   created.StorageBucket,
		StorageProvider: created.StorageProvider,
		CreatedAt:       dbTime(created.CreatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}
	created.ID = id
	return &created, nil
}

func (r *SQLiteRegistry) FindDocument(ctx context.Context, id int64) (*model.Document, error) {
	row, err := r.queries.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding document %d: %w", id, err)
	}
	return toDocument(row), nil
}

func (r *SQLiteRegistry) FindDocumentByKey(ctx context.Context, key string) (*model.Document, error) {
	row, err := r.queries.GetDocumentByKey(ctx, sql.NullString{String: key, Valid: true})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding document by key: %w", err)
	}
	return toDocument(row), nil
}

// DeleteDocument removes the record. Its audit entries are kept.
func (r *SQLiteRegistry) DeleteDocument(ctx context.Context, id int64) error {
	if err := r.queries.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("deleting document %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRegistry) CountByClass(ctx context.Context) (map[model.StorageClass]int64, error) {
	rows, err := r.queries.CountDocumentsByClass(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	counts := map[model.StorageClass]int64{model.ClassHot: 0, model.ClassCold: 0}
	for _, row := range rows {
		counts[model.StorageClass(row.StorageClass)] = row.Count
	}
	return counts, nil
}

func (r *SQLiteRegistry) FindMigrationCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*model.Document, error) {
	rows, err := r.queries.ListMigrationCandidates(ctx, sqlc.ListMigrationCandidatesParams{
		Cutoff: dbTime(cutoff),
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("querying migration candidates: %w", err)
	}
	docs := make([]*model.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, toDocument(row))
	}
	return docs, nil
}

// CommitTransition is the commit point of a migration. The conditional
// update and the audit insert share one transaction, so a record is never
// cold without its audit entry and never gets two entries for one move.
func (r *SQLiteRegistry) CommitTransition(ctx context.Context, entry *model.AuditEntry) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	migratedAt := dbTime(entry.MigratedAt)

	n, err := qtx.UpdateDocumentClass(ctx, sqlc.UpdateDocumentClassParams{
		NewClass:      string(entry.NewClass),
		MigratedAt:    migratedAt,
		ID:            entry.DocumentID,
		PreviousClass: string(entry.PreviousClass),
	})
	if err != nil {
		return false, fmt.Errorf("updating document %d: %w", entry.DocumentID, err)
	}
	if n == 0 {
		return false, nil
	}

	var simulated int64
	if entry.Simulated {
		simulated = 1
	}
	id, err := qtx.InsertStorageLog(ctx, sqlc.InsertStorageLogParams{
		DocumentID:    entry.DocumentID,
		PreviousClass: string(entry.PreviousClass),
		NewClass:      string(entry.NewClass),
		Reason:        entry.Reason,
		MigratedAt:    migratedAt,
		FileSizeBytes: entry.FileSizeBytes,
		Simulated:     simulated,
	})
	if err != nil {
		return false, fmt.Errorf("appending audit entry for document %d: %w", entry.DocumentID, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transition: %w", err)
	}

	entry.ID = id
	return true, nil
}

// Audit log

func (r *SQLiteRegistry) ListAuditEntries(ctx context.Context, documentID int64, limit int) ([]*model.AuditEntry, error) {
	var rows []sqlc.StorageLog
	var err error
	if documentID != 0 {
		rows, err = r.queries.ListStorageLogsForDocument(ctx, sqlc.ListStorageLogsForDocumentParams{
			DocumentID: documentID,
			Limit:      int64(limit),
		})
	} else {
		rows, err = r.queries.ListStorageLogs(ctx, int64(limit))
	}
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}

	entries := make([]*model.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &model.AuditEntry{
			ID:            row.ID,
			DocumentID:    row.DocumentID,
			PreviousClass: model.StorageClass(row.PreviousClass),
			NewClass:      model.StorageClass(row.NewClass),
			Reason:        row.Reason,
			MigratedAt:    row.MigratedAt,
			FileSizeBytes: row.FileSizeBytes,
			Simulated:     row.Simulated != 0,
		})
	}
	return entries, nil
}

// Policy run bookkeeping

func (r *SQLiteRegistry) CreatePolicyRun(ctx context.Context, run *model.PolicyRun) error {
	err := r.queries.CreatePolicyRun(ctx, sqlc.CreatePolicyRunParams{
		ID:        run.ID,
		StartedAt: dbTime(run.StartedAt),
		Status:    run.Status,
	})
	if err != nil {
		return fmt.Errorf("creating policy run: %w", err)
	}
	return nil
}

func (r *SQLiteRegistry) FinishPolicyRun(ctx context.Context, run *model.PolicyRun) error {
	var finishedAt sql.NullString
	if run.FinishedAt.Valid {
		finishedAt = sql.NullString{String: dbTime(run.FinishedAt.Time), Valid: true}
	}
	n, err := r.queries.FinishPolicyRun(ctx, sqlc.FinishPolicyRunParams{
		FinishedAt:   finishedAt,
		Candidates:   int64(run.Candidates),
		SuccessCount: int64(run.SuccessCount),
		FailCount:    int64(run.FailCount),
		SkippedCount: int64(run.SkippedCount),
		Status:       run.Status,
		Error:        run.Error,
		ID:           run.ID,
	})
	if err != nil {
		return fmt.Errorf("finishing policy run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("policy run %s not found", run.ID)
	}
	return nil
}

func (r *SQLiteRegistry) ListPolicyRuns(ctx context.Context, limit int) ([]*model.PolicyRun, error) {
	rows, err := r.queries.ListPolicyRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("querying policy runs: %w", err)
	}

	runs := make([]*model.PolicyRun, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, &model.PolicyRun{
			ID:           row.ID,
			StartedAt:    row.StartedAt,
			FinishedAt:   row.FinishedAt,
			Candidates:   int(row.Candidates),
			SuccessCount: int(row.SuccessCount),
			FailCount:    int(row.FailCount),
			SkippedCount: int(row.SkippedCount),
			Status:       row.Status,
			Error:        row.Error,
		})
	}
	return runs, nil
}

func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

// Compile-time check that SQLiteRegistry implements docstore.Registry interface
var _ docstore.Registry = (*SQLiteRegistry)(nil)
