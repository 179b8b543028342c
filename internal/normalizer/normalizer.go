// Package normalizer turns heterogeneous raw records from Excel sheets, the
// Oracle maintenance system and manual entry into canonical anomalies.
package normalizer

import (
	"context"
	"fmt"
	"time"

	"github.com/Pedro-99/taqa-backend/internal/domain"
	"github.com/Pedro-99/taqa-backend/pkg/logger"

	"github.com/google/uuid"
)

// Normalizer reconciles raw records. It holds no per-batch state and is safe
// for concurrent use.
type Normalizer struct {
	now   func() time.Time
	newID func() uuid.UUID
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the clock used for created_at, updated_at and the
// detection date fallback.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithIDGenerator overrides how anomaly identifiers are minted.
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(n *Normalizer) {
		if newID != nil {
			n.newID = newID
		}
	}
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Result is the outcome of reconciling the record at Index.
type Result struct {
	Index   int
	Anomaly domain.Anomaly
	Err     error
}

// Batch holds the anomalies that reconciled, in input order, and the records
// that did not. Indexes[i] is the input position of Anomalies[i].
type Batch struct {
	Source    domain.OriginSystem
	Anomalies []domain.Anomaly
	Indexes   []int
	Failures  []Result
}

// ReconcileAll reconciles every record. It only fails when source is unknown;
// per-record failures are reported in the results.
func (n *Normalizer) ReconcileAll(records []RawRecord, source domain.OriginSystem) ([]Result, error) {
	if !source.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSource, source)
	}
	results := make([]Result, len(records))
	for i, record := range records {
		anomaly, err := n.Reconcile(i, record, source)
		results[i] = Result{Index: i, Anomaly: anomaly, Err: err}
	}
	return results, nil
}

// NormalizeBatch reconciles records and splits survivors from failures.
func (n *Normalizer) NormalizeBatch(ctx context.Context, records []RawRecord, source domain.OriginSystem) (Batch, error) {
	log := logger.FromContext(ctx).With("source", source)

	results, err := n.ReconcileAll(records, source)
	if err != nil {
		return Batch{}, err
	}

	batch := Batch{
		Source:    source,
		Anomalies: make([]domain.Anomaly, 0, len(results)),
		Indexes:   make([]int, 0, len(results)),
	}
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}
		if res.Err != nil {
			log.Warn("Skipping unreadable record", "index", res.Index, "err", res.Err)
			batch.Failures = append(batch.Failures, res)
			continue
		}
		batch.Anomalies = append(batch.Anomalies, res.Anomaly)
		batch.Indexes = append(batch.Indexes, res.Index)
	}

	log.Info("Normalized records", "received", len(records), "normalized", len(batch.Anomalies), "skipped", len(batch.Failures))
	return batch, nil
}

// Normalize reconciles records and returns the anomalies that survived, in
// input order.
func (n *Normalizer) Normalize(ctx context.Context, records []RawRecord, source domain.OriginSystem) ([]domain.Anomaly, error) {
	batch, err := n.NormalizeBatch(ctx, records, source)
	if err != nil {
		return nil, err
	}
	return batch.Anomalies, nil
}
