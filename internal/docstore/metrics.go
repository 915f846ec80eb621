package docstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ingestTotal counts ingestion outcomes: accepted, rejected, failed.
	ingestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docstore_ingest_total",
		Help: "Documents submitted for ingestion, by outcome",
	}, []string{"outcome"})

	// migrationRunsTotal counts migration runs by status: success, partial, error.
	migrationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docstore_migration_runs_total",
		Help: "Migration policy runs, by status",
	}, []string{"status"})

	// migrationDocumentsTotal counts candidates processed by result.
	migrationDocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docstore_migration_documents_total",
		Help: "Migration candidates processed, by result",
	}, []string{"result"})

	migrationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docstore_migration_duration_seconds",
		Help:    "Duration of a migration policy run in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)
