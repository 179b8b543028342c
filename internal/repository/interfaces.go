package repository

import (
	"context"

	"github.com/Pedro-99/taqa-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repositories need. pgxmock pools
// satisfy it too.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// AnomalyRepository defines the interface for anomaly persistence
type AnomalyRepository interface {
	// Save stores a batch in one transaction. Duplicates and per-record insert
	// failures are reported in the SaveReport; only transaction level failures
	// are returned as errors, in which case nothing was stored.
	Save(ctx context.Context, anomalies []domain.Anomaly) (SaveReport, error)
	List(ctx context.Context, filter domain.AnomalyFilter) ([]domain.Anomaly, error)
	Statistics(ctx context.Context) (domain.Statistics, error)
	Ping(ctx context.Context) error
}

// IngestionLogRepository persists ingestion errors for later inspection.
type IngestionLogRepository interface {
	Record(ctx context.Context, entry domain.IngestionLogEntry) error
	List(ctx context.Context, source domain.OriginSystem, limit int, offset int) ([]domain.IngestionLogEntry, error)
}

// Outcome is what happened to one anomaly of a saved batch.
type Outcome string

const (
	OutcomePersisted    Outcome = "persisted"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeInsertFailed Outcome = "insert_failed"
)

// RecordOutcome reports the fate of the anomaly at Index in the submitted batch.
type RecordOutcome struct {
	Index     int
	AnomalyID uuid.UUID
	Outcome   Outcome
	Err       error
}

// SaveReport summarises a Save call.
type SaveReport struct {
	Submitted int
	// Persisted holds the rows as returned by the database, in input order.
	Persisted []domain.Anomaly
	Outcomes  []RecordOutcome
}

// PersistedCount is the number of rows written.
func (r SaveReport) PersistedCount() int { return len(r.Persisted) }

// Count returns how many records ended with outcome.
func (r SaveReport) Count(outcome Outcome) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Outcome == outcome {
			n++
		}
	}
	return n
}

// Failures returns the records whose insert failed.
func (r SaveReport) Failures() []RecordOutcome {
	var out []RecordOutcome
	for _, o := range r.Outcomes {
		if o.Outcome == OutcomeInsertFailed {
			out = append(out, o)
		}
	}
	return out
}
