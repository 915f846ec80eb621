package model

import (
	"database/sql"
	"time"
)

// StorageClass is the logical tier a stored document lives in.
type StorageClass string

const (
	ClassHot  StorageClass = "hot"
	ClassCold StorageClass = "cold"
)

// Valid reports whether c is a known storage class.
func (c StorageClass) Valid() bool {
	return c == ClassHot || c == ClassCold
}

// Document is the registry record for one stored object.
// A hot document has no StorageMigratedAt; a cold one always has it.
type Document struct {
	ID                int64
	OwnerID           int64
	Category          string
	OriginalName      string
	MimeType          string
	SizeBytes         int64          // best-effort, 0 when unknown
	StorageKey        sql.NullString // assigned once at ingestion
	StorageBucket     string
	StorageProvider   string // "s3", "filesystem" or "memory"
	StorageClass      StorageClass
	CreatedAt         time.Time // age anchor for migration eligibility
	StorageMigratedAt sql.NullTime
}

// AuditEntry records one storage class transition. Entries are append-only.
type AuditEntry struct {
	ID            int64
	DocumentID    int64
	PreviousClass StorageClass
	NewClass      StorageClass
	Reason        string
	MigratedAt    time.Time
	FileSizeBytes int64 // best-effort, mirrors Document.SizeBytes
	Simulated     bool  // backend has no real tiering; class change is logical only
}

// PolicyRun is the bookkeeping row for one migration policy execution.
type PolicyRun struct {
	ID           string // UUID
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	Candidates   int
	SuccessCount int
	FailCount    int
	SkippedCount int
	Status       string // "running", "success", "partial" or "error"
	Error        string
}
