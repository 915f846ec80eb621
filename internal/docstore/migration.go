package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"docstore/internal/model"
)

const (
	// DefaultMinAgeMonths is how old a hot document must be to be demoted.
	DefaultMinAgeMonths = 6

	// DefaultBatchSize bounds the candidates processed per run.
	DefaultBatchSize = 100

	// ReasonAutoPolicy tags audit entries written by the age-based policy.
	ReasonAutoPolicy = "auto_policy_6months"
)

// PolicyOptions tunes the migration policy. Zero values select the defaults.
type PolicyOptions struct {
	MinAgeMonths int
	BatchSize    int
	Workers      int // 1 processes candidates sequentially
}

// MigrationResult summarizes one run. Partial failures are reported here,
// never as an error.
type MigrationResult struct {
	Candidates   int
	SuccessCount int
	FailCount    int
	SkippedCount int
	Duration     time.Duration
}

// Status classifies the run for bookkeeping and metrics.
func (r *MigrationResult) Status() string {
	if r.FailCount > 0 {
		return "partial"
	}
	return "success"
}

// MigrationPolicy demotes aging hot documents to cold storage. Each candidate
// is isolated: a failure is logged and counted and the batch carries on.
// Only one run may be active per policy at a time.
type MigrationPolicy struct {
	registry Registry
	store    Store
	logger   Logger
	clock    Clock
	opts     PolicyOptions

	mu      sync.Mutex
	running bool
}

// NewMigrationPolicy creates a policy over the injected registry and store.
func NewMigrationPolicy(registry Registry, store Store, logger Logger, clock Clock, opts PolicyOptions) *MigrationPolicy {
	if opts.MinAgeMonths <= 0 {
		opts.MinAgeMonths = DefaultMinAgeMonths
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &MigrationPolicy{
		registry: registry,
		store:    store,
		logger:   logger,
		clock:    clock,
		opts:     opts,
	}
}

// Cutoff returns the creation time before which a hot document is eligible.
func (p *MigrationPolicy) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, -p.opts.MinAgeMonths, 0)
}

// Run executes one batch. It returns an error only when the candidate scan
// itself fails or another run is already active. When ctx is cancelled,
// committed transitions stand and unstarted candidates wait for the next run.
func (p *MigrationPolicy) Run(ctx context.Context) (*MigrationResult, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, ErrRunInProgress
	}
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	start := p.clock.Now()
	cutoff := p.Cutoff(start)
	p.logger.Info("migration policy started",
		"cutoff", cutoff.UTC().Format(time.RFC3339),
		"batch_size", p.opts.BatchSize,
		"provider", p.store.Provider(),
	)

	candidates, err := p.registry.FindMigrationCandidates(ctx, cutoff, p.opts.BatchSize)
	if err != nil {
		migrationRunsTotal.WithLabelValues("error").Inc()
		p.logger.Error("scanning migration candidates failed", "error", err)
		return nil, fmt.Errorf("scanning migration candidates: %w", err)
	}
	candidates = uniqueByID(candidates)

	result := &MigrationResult{Candidates: len(candidates)}
	var resMu sync.Mutex
	record := func(outcome string) {
		resMu.Lock()
		defer resMu.Unlock()
		switch outcome {
		case "success":
			result.SuccessCount++
		case "failure":
			result.FailCount++
		default:
			result.SkippedCount++
		}
		migrationDocumentsTotal.WithLabelValues(outcome).Inc()
	}

	if p.opts.Workers == 1 {
		for _, doc := range candidates {
			if ctx.Err() != nil {
				record("skipped")
				continue
			}
			record(p.migrateOne(ctx, doc))
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.opts.Workers)
		for _, doc := range candidates {
			g.Go(func() error {
				if ctx.Err() != nil {
					record("skipped")
					return nil
				}
				record(p.migrateOne(ctx, doc))
				return nil
			})
		}
		g.Wait()
	}

	result.Duration = p.clock.Now().Sub(start)
	migrationRunsTotal.WithLabelValues(result.Status()).Inc()
	migrationDurationSeconds.Observe(result.Duration.Seconds())

	p.logger.Info("migration policy finished",
		"candidates", result.Candidates,
		"success", result.SuccessCount,
		"failed", result.FailCount,
		"skipped", result.SkippedCount,
	)
	return result, nil
}

// migrateOne demotes a single document and reports "success", "failure" or
// "skipped". The registry update is the commit point: if it fails after the
// backend transition, the record stays hot and is retried next run, where
// the transition is a no-op.
func (p *MigrationPolicy) migrateOne(ctx context.Context, doc *model.Document) string {
	if !doc.StorageKey.Valid || doc.StorageKey.String == "" {
		p.logger.Warn("skipping candidate without storage key", "document_id", doc.ID)
		return "skipped"
	}
	key := doc.StorageKey.String

	if err := p.store.TransitionClass(ctx, key, model.ClassCold); err != nil {
		p.logger.Error("storage class transition failed",
			"document_id", doc.ID,
			"key", key,
			"error", err,
		)
		return "failure"
	}

	if !p.store.SupportsTiering() {
		p.logger.Info("transition is logical only, backend has no tiering",
			"document_id", doc.ID,
			"provider", p.store.Provider(),
		)
	}

	// The backend has already moved the object, so the record is written
	// even if the run is being cancelled.
	committed, err := p.registry.CommitTransition(context.WithoutCancel(ctx), &model.AuditEntry{
		DocumentID:    doc.ID,
		PreviousClass: model.ClassHot,
		NewClass:      model.ClassCold,
		Reason:        ReasonAutoPolicy,
		MigratedAt:    p.clock.Now(),
		FileSizeBytes: doc.SizeBytes,
		Simulated:     !p.store.SupportsTiering(),
	})
	if err != nil {
		p.logger.Error("recording transition failed",
			"document_id", doc.ID,
			"key", key,
			"error", err,
		)
		return "failure"
	}
	if !committed {
		p.logger.Info("document already cold", "document_id", doc.ID)
		return "skipped"
	}

	p.logger.Info("document migrated", "document_id", doc.ID, "key", key)
	return "success"
}

// uniqueByID drops repeated IDs, keeping the first occurrence, so no two
// workers ever handle the same record.
func uniqueByID(docs []*model.Document) []*model.Document {
	seen := make(map[int64]bool, len(docs))
	out := docs[:0:0]
	for _, d := range docs {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out
}
