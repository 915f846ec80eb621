package app

import (
	"time"

	"docstore/internal/docstore"
	"docstore/internal/model"
)

// Operation identifies one CLI invocation. Its ID tags every log line the
// invocation writes.
type Operation struct {
	ID   string
	Name string
}

// NewOperation creates an operation stamped with the given start time.
func NewOperation(name string, now time.Time) *Operation {
	return &Operation{
		ID:   now.UTC().Format("20060102T150405Z"),
		Name: name,
	}
}

// newPolicyRun creates the bookkeeping row for a run starting now.
func newPolicyRun(id string, now time.Time) *model.PolicyRun {
	return &model.PolicyRun{
		ID:        id,
		StartedAt: now,
		Status:    "running",
	}
}

// completePolicyRun copies the outcome of a run onto its bookkeeping row.
// A run that failed before producing a result is recorded as "error".
func completePolicyRun(run *model.PolicyRun, result *docstore.MigrationResult, runErr error, now time.Time) {
	run.FinishedAt.Time = now
	run.FinishedAt.Valid = true

	if runErr != nil {
		run.Status = "error"
		run.Error = runErr.Error()
		return
	}
	run.Candidates = result.Candidates
	run.SuccessCount = result.SuccessCount
	run.FailCount = result.FailCount
	run.SkippedCount = result.SkippedCount
	run.Status = result.Status()
}
