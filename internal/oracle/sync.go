package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Pedro-99/taqa-backend/internal/domain"
	"github.com/Pedro-99/taqa-backend/internal/ingestion"
	"github.com/Pedro-99/taqa-backend/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Ingester pulls the Oracle feed through the ingestion pipeline.
type Ingester interface {
	SyncOracle(ctx context.Context) (ingestion.Summary, error)
}

// SyncResult reports one sync run.
type SyncResult struct {
	Message   string    `json:"message"`
	Processed int       `json:"processed"`
	Submitted int       `json:"submitted"`
	Timestamp time.Time `json:"timestamp"`
}

// Syncer runs Oracle syncs on demand or on a cron schedule.
type Syncer struct {
	ingester Ingester
	now      func() time.Time
}

func NewSyncer(ingester Ingester) *Syncer {
	return &Syncer{ingester: ingester, now: time.Now}
}

// Run performs one sync. An empty feed is not an error.
func (s *Syncer) Run(ctx context.Context) (SyncResult, error) {
	log := logger.FromContext(ctx).With("component", "oracle-sync")
	log.Info("Oracle sync started")

	summary, err := s.ingester.SyncOracle(ctx)
	result := SyncResult{Timestamp: s.now().UTC()}
	if err != nil {
		if errors.Is(err, domain.ErrEmptyBatch) {
			result.Message = "No new data from Oracle"
			log.Info(result.Message)
			return result, nil
		}
		log.Error("Oracle sync failed", "err", err)
		return result, fmt.Errorf("oracle sync: %w", err)
	}

	result.Message = "Oracle sync completed successfully"
	result.Processed = summary.Persisted
	result.Submitted = summary.Submitted
	log.Info("Oracle sync completed", "processed", result.Processed, "submitted", result.Submitted)
	return result, nil
}

// ScheduledSync is a running cron schedule of Oracle syncs.
type ScheduledSync struct {
	cron *cron.Cron
}

// Stop prevents further runs and blocks until a run in progress returns.
func (s *ScheduledSync) Stop() {
	<-s.cron.Stop().Done()
}

// Schedule starts a cron scheduler running Run on schedule (standard five field
// syntax or descriptors such as "@every 15m"). Overlapping runs are skipped.
// Runs share ctx, so cancelling it aborts a sync in progress; callers must
// still Stop the schedule before releasing the resources a run uses.
func (s *Syncer) Schedule(ctx context.Context, schedule string) (*ScheduledSync, error) {
	log := logger.FromContext(ctx)
	cronLog := cronLogger{log: log.With("component", "cron")}

	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(schedule, func() {
		_, _ = s.Run(ctx)
	}); err != nil {
		return nil, fmt.Errorf("invalid oracle sync schedule %q: %w", schedule, err)
	}

	c.Start()
	log.Info("Scheduled oracle sync", "schedule", schedule)
	return &ScheduledSync{cron: c}, nil
}

type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "err", err)...)
}
