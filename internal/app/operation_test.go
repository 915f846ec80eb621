package app

import (
	"errors"
	"testing"
	"time"

	"docstore/internal/docstore"
)

func TestNewOperation(t *testing.T) {
	now := time.Date(2024, 6, 15, 16, 30, 45, 0, time.FixedZone("CEST", 2*3600))

	op := NewOperation("MigrateRun", now)

	if op.ID != "20240615T143045Z" {
		t.Errorf("ID = %q, want %q", op.ID, "20240615T143045Z")
	}
	if op.Name != "MigrateRun" {
		t.Errorf("Name = %q, want %q", op.Name, "MigrateRun")
	}
}

func TestCompletePolicyRun(t *testing.T) {
	started := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)

	tests := []struct {
		name       string
		result     *docstore.MigrationResult
		err        error
		wantStatus string
		wantCounts [4]int
	}{
		{
			name:       "clean run",
			result:     &docstore.MigrationResult{Candidates: 3, SuccessCount: 3},
			wantStatus: "success",
			wantCounts: [4]int{3, 3, 0, 0},
		},
		{
			name:       "partial run",
			result:     &docstore.MigrationResult{Candidates: 5, SuccessCount: 3, FailCount: 1, SkippedCount: 1},
			wantStatus: "partial",
			wantCounts: [4]int{5, 3, 1, 1},
		},
		{
			name:       "scan failure",
			err:        errors.New("database is locked"),
			wantStatus: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := newPolicyRun("run-1", started)
			if run.Status != "running" || run.FinishedAt.Valid {
				t.Fatalf("new run = %+v, want running and unfinished", run)
			}

			completePolicyRun(run, tt.result, tt.err, finished)

			if run.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", run.Status, tt.wantStatus)
			}
			if !run.FinishedAt.Valid || !run.FinishedAt.Time.Equal(finished) {
				t.Errorf("FinishedAt = %+v, want %v", run.FinishedAt, finished)
			}
			got := [4]int{run.Candidates, run.SuccessCount, run.FailCount, run.SkippedCount}
			if got != tt.wantCounts {
				t.Errorf("counts = %v, want %v", got, tt.wantCounts)
			}
			if (tt.err != nil) != (run.Error != "") {
				t.Errorf("Error = %q for run error %v", run.Error, tt.err)
			}
		})
	}
}
