package app

import (
	"context"
	"database/sql"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"docstore/internal/config"
	"docstore/internal/database"
	"docstore/internal/database/migrations"
	"docstore/internal/docstore"
	"docstore/internal/encryption"
	"docstore/internal/model"
	"docstore/internal/storage"
)

// DocApp is the application layer between the CLI and the docstore core.
// It constructs all dependencies from config, registers ingested documents,
// records migration runs, and manages the registry lifecycle on Close.
type DocApp struct {
	cfg       *config.Config
	registry  docstore.Registry
	store     docstore.Store
	encryptor docstore.Encryptor
	service   *docstore.Service
	policy    *docstore.MigrationPolicy
	logger    docstore.Logger
	clock     docstore.Clock
	ids       docstore.IDGenerator
	op        *Operation
	logFile   *os.File
}

// Status summarizes the registry for the status command.
type Status struct {
	Provider        string
	Bucket          string
	SupportsTiering bool
	Counts          map[model.StorageClass]int64
	Schema          *migrations.Status // nil when the registry is not SQL-backed
}

// NewDocApp creates a fully wired DocApp from the given config.
// operation identifies the CLI command being run (e.g. "Ingest", "MigrateRun").
// The caller must call Close when done.
func NewDocApp(cfg *config.Config, operation string) (*DocApp, error) {
	return newDocApp(cfg, operation, docstore.RealClock{})
}

func newDocApp(cfg *config.Config, operation string, clock docstore.Clock) (*DocApp, error) {
	op := NewOperation(operation, clock.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger.With("operation", op.Name)}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	store, err := storage.NewStoreFromConfig(context.Background(), cfg.Storage, enc, storage.Options{
		Clock:  clock,
		Logger: log,
	})
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	reg, err := database.NewRegistryFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating registry: %w", err)
	}

	gate := docstore.NewGate(log, cfg.Ingest.MaxSizeBytes, cfg.Ingest.SniffContent)
	svc := docstore.NewService(gate, store, log)
	policy := docstore.NewMigrationPolicy(reg, store, log, clock, docstore.PolicyOptions{
		MinAgeMonths: cfg.Policy.MinAgeMonths,
		BatchSize:    cfg.Policy.BatchSize,
		Workers:      cfg.Policy.Workers,
	})

	log.Debug("app initialized",
		"provider", store.Provider(),
		"bucket", store.Bucket(),
		"tiering", store.SupportsTiering(),
	)

	return &DocApp{
		cfg:       cfg,
		registry:  reg,
		store:     store,
		encryptor: enc,
		service:   svc,
		policy:    policy,
		logger:    log,
		clock:     clock,
		ids:       docstore.UUIDGenerator{},
		op:        op,
		logFile:   logFile,
	}, nil
}

// Store returns the backend selected at startup.
func (a *DocApp) Store() docstore.Store {
	return a.store
}

// Ingest reads the file at path, runs it through the ingestion gate and
// registers the stored object as a new hot document. An empty mimeType is
// guessed from the file extension.
func (a *DocApp) Ingest(ctx context.Context, path, category, mimeType string, ownerID int64) (*docstore.IngestResult, *model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(path))
	}

	res, err := a.service.Ingest(ctx, docstore.IngestRequest{
		Category:     category,
		MimeType:     mimeType,
		OwnerID:      ownerID,
		Payload:      data,
		OriginalName: filepath.Base(path),
	})
	if err != nil {
		return nil, nil, err
	}

	doc, err := a.registry.CreateDocument(ctx, &model.Document{
		OwnerID:         res.OwnerID,
		Category:        res.Category,
		OriginalName:    res.OriginalName,
		MimeType:        res.MimeType,
		SizeBytes:       res.Size,
		StorageKey:      sql.NullString{String: res.Key, Valid: true},
		StorageBucket:   res.Bucket,
		StorageProvider: res.Provider,
		CreatedAt:       a.clock.Now(),
	})
	if err != nil {
		// Without a record nothing would ever reference the object.
		if delErr := a.store.Delete(context.WithoutCancel(ctx), res.Key); delErr != nil {
			a.logger.Error("removing unregistered object failed", "key", res.Key, "error", delErr)
		}
		return nil, nil, fmt.Errorf("registering document: %w", err)
	}
	return res, doc, nil
}

// AccessURL returns a fresh signed URL for key. ttl <= 0 uses the configured default.
func (a *DocApp) AccessURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = time.Duration(a.cfg.Storage.URLTTLSeconds) * time.Second
	}
	return a.service.AccessURL(ctx, key, ttl)
}

// NeedsPassphrase reports whether reading objects requires unlocking the
// private key first.
func (a *DocApp) NeedsPassphrase() bool {
	_, ok := a.store.(docstore.Unlocker)
	return ok && a.encryptor != nil
}

// Unlock unlocks an encrypting store. It is a no-op for other stores.
func (a *DocApp) Unlock(passphrase string) error {
	u, ok := a.store.(docstore.Unlocker)
	if !ok {
		return nil
	}
	return u.Unlock(passphrase)
}

// Fetch returns the stored bytes for key.
func (a *DocApp) Fetch(ctx context.Context, key string) ([]byte, error) {
	return a.service.Fetch(ctx, key)
}

// Delete purges the object at key and removes its registry record. The audit
// trail of the document is kept.
func (a *DocApp) Delete(ctx context.Context, key string) error {
	doc, err := a.registry.FindDocumentByKey(ctx, key)
	if err != nil {
		return fmt.Errorf("looking up document: %w", err)
	}
	if err := a.service.DeleteDocument(ctx, key); err != nil {
		return err
	}
	if doc == nil {
		a.logger.Warn("deleted object had no registry record", "key", key)
		return nil
	}
	if err := a.registry.DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("removing document record: %w", err)
	}
	return nil
}

// RunMigrationPolicy executes one bounded migration run and records it in the
// policy run history. The run is bounded by the configured timeout.
func (a *DocApp) RunMigrationPolicy(ctx context.Context) (*docstore.MigrationResult, error) {
	if secs := a.cfg.Policy.RunTimeoutSeconds; secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}
	return a.runAndRecord(ctx)
}

// runAndRecord wraps one policy run with its bookkeeping row. The scheduler
// calls it directly and applies its own timeout.
func (a *DocApp) runAndRecord(ctx context.Context) (*docstore.MigrationResult, error) {
	run := newPolicyRun(a.ids.New(), a.clock.Now())
	if err := a.registry.CreatePolicyRun(ctx, run); err != nil {
		return nil, fmt.Errorf("recording policy run: %w", err)
	}

	result, runErr := a.policy.Run(ctx)
	completePolicyRun(run, result, runErr, a.clock.Now())

	if err := a.registry.FinishPolicyRun(context.WithoutCancel(ctx), run); err != nil {
		a.logger.Error("finishing policy run record failed", "run_id", run.ID, "error", err)
	}
	if runErr != nil {
		return nil, runErr
	}
	return result, nil
}

// NewScheduler returns a scheduler that runs the recorded migration policy
// on the configured interval.
func (a *DocApp) NewScheduler() *docstore.Scheduler {
	interval := time.Duration(a.cfg.Policy.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = config.DefaultIntervalMins * time.Minute
	}
	timeout := time.Duration(a.cfg.Policy.RunTimeoutSeconds) * time.Second
	return docstore.NewScheduler(a.runAndRecord, interval, timeout, a.logger)
}

// AuditLog returns the newest audit entries. documentID 0 lists the whole log.
func (a *DocApp) AuditLog(ctx context.Context, documentID int64, limit int) ([]*model.AuditEntry, error) {
	return a.registry.ListAuditEntries(ctx, documentID, limit)
}

// PolicyRuns returns the most recent migration runs.
func (a *DocApp) PolicyRuns(ctx context.Context, limit int) ([]*model.PolicyRun, error) {
	return a.registry.ListPolicyRuns(ctx, limit)
}

// Status reports the active backend, document counts per class and the
// registry schema version.
func (a *DocApp) Status(ctx context.Context) (*Status, error) {
	counts, err := a.registry.CountByClass(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	st := &Status{
		Provider:        a.store.Provider(),
		Bucket:          a.store.Bucket(),
		SupportsTiering: a.store.SupportsTiering(),
		Counts:          counts,
	}
	if sqlReg, ok := a.registry.(interface{ DB() *sql.DB }); ok {
		schema, err := migrations.ReadStatus(sqlReg.DB())
		if err != nil {
			return nil, fmt.Errorf("reading schema version: %w", err)
		}
		st.Schema = schema
	}
	return st, nil
}

// Close closes the registry and the log file.
func (a *DocApp) Close() error {
	var firstErr error
	if err := a.registry.Close(); err != nil {
		firstErr = fmt.Errorf("closing registry: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// SetupKeys generates the encryption key pair for the configured encryptor.
func SetupKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc == nil {
		return fmt.Errorf("encryption is disabled (type %q): nothing to set up", cfg.Encryption.Type)
	}
	return enc.Setup(passphrase)
}

// MigrateDatabase brings the registry schema to the latest version and
// returns the resulting status.
func MigrateDatabase(cfg config.DatabaseConfig) (*migrations.Status, error) {
	if cfg.Type != "sqlite" {
		return nil, fmt.Errorf("database type %q has no persistent schema", cfg.Type)
	}
	db, err := database.OpenConnection(filepath.Join(cfg.DataDir, database.RegistryFileName))
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		return nil, err
	}
	return migrations.ReadStatus(db)
}
