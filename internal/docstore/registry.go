package docstore

import (
	"context"
	"time"

	"docstore/internal/model"
)

// Registry is the document record store this core reads and updates, plus
// the append-only audit log of class transitions.
type Registry interface {
	// Document operations

	// CreateDocument inserts a new hot document and returns it with its ID set.
	CreateDocument(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindDocument returns a document by ID, or nil if it does not exist.
	FindDocument(ctx context.Context, id int64) (*model.Document, error)

	// FindDocumentByKey returns the document holding the given storage key, or nil.
	FindDocumentByKey(ctx context.Context, key string) (*model.Document, error)

	// DeleteDocument removes a record. Audit entries for it are kept.
	DeleteDocument(ctx context.Context, id int64) error

	// CountByClass returns the number of documents in each storage class.
	CountByClass(ctx context.Context) (map[model.StorageClass]int64, error)

	// FindMigrationCandidates returns up to limit hot documents created before
	// cutoff that have a storage key, oldest first (ties broken by ID).
	FindMigrationCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*model.Document, error)

	// CommitTransition marks a hot document cold and appends the audit entry
	// in a single transaction. It returns false without writing anything when
	// the document is no longer hot.
	CommitTransition(ctx context.Context, entry *model.AuditEntry) (bool, error)

	// Audit log

	// ListAuditEntries returns the newest entries first. documentID 0 lists all.
	ListAuditEntries(ctx context.Context, documentID int64, limit int) ([]*model.AuditEntry, error)

	// Policy run bookkeeping

	// CreatePolicyRun records the start of a migration run.
	CreatePolicyRun(ctx context.Context, run *model.PolicyRun) error

	// FinishPolicyRun stores the outcome of a migration run.
	FinishPolicyRun(ctx context.Context, run *model.PolicyRun) error

	// ListPolicyRuns returns the most recent runs, newest first.
	ListPolicyRuns(ctx context.Context, limit int) ([]*model.PolicyRun, error)

	// Close closes the underlying connection.
	Close() error
}
