package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Pedro-99/taqa-backend/internal/db"
	"github.com/Pedro-99/taqa-backend/internal/domain"
	"github.com/Pedro-99/taqa-backend/pkg/logger"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const anomaliesTable = "anomalies"

var anomalyColumns = []string{
	"id",
	"equipment_number",
	"title",
	"description",
	"detection_date",
	"status",
	"priority",
	"equipment_description",
	"responsible_section",
	"criticality",
	"origin_system",
	"created_at",
	"updated_at",
}

type anomalyRepository struct {
	db   DB
	psql sq.StatementBuilderType
}

// NewAnomalyRepository wires a repository backed by a pgx pool.
func NewAnomalyRepository(db DB) AnomalyRepository {
	return &anomalyRepository{
		db:   db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *anomalyRepository) Save(ctx context.Context, anomalies []domain.Anomaly) (SaveReport, error) {
	report := SaveReport{Submitted: len(anomalies)}
	if len(anomalies) == 0 {
		return report, nil
	}
	log := logger.FromContext(ctx)

	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		// keys of rows written earlier in this batch
		written := make(map[string]struct{})

		for i, anomaly := range anomalies {
			duplicate, err := r.isDuplicate(ctx, tx, anomaly, written)
			if err != nil {
				return domain.NewPersistenceFailure("check duplicate", err)
			}
			if duplicate {
				log.Info("Skipping duplicate anomaly",
					"index", i, "equipment_number", deref(anomaly.EquipmentNumber), "title", deref(anomaly.Title))
				report.Outcomes = append(report.Outcomes, RecordOutcome{
					Index: i, AnomalyID: anomaly.ID, Outcome: OutcomeDuplicate,
				})
				continue
			}

			stored, err := r.insert(ctx, tx, anomaly)
			if err != nil {
				log.Warn("Failed to insert anomaly", "index", i, "id", anomaly.ID, "err", err)
				report.Outcomes = append(report.Outcomes, RecordOutcome{
					Index: i, AnomalyID: anomaly.ID, Outcome: OutcomeInsertFailed, Err: err,
				})
				continue
			}

			if key, ok := stored.DedupKey(); ok && stored.Status != domain.StatusResolved {
				written[key] = struct{}{}
			}
			report.Persisted = append(report.Persisted, stored)
			report.Outcomes = append(report.Outcomes, RecordOutcome{
				Index: i, AnomalyID: stored.ID, Outcome: OutcomePersisted,
			})
		}
		return nil
	})
	if err != nil {
		var failure *domain.PersistenceFailure
		if !errors.As(err, &failure) {
			err = domain.NewPersistenceFailure("save batch", err)
		}
		log.Error("Anomaly batch rolled back", "submitted", len(anomalies), "err", err)
		return SaveReport{Submitted: len(anomalies)}, err
	}

	log.Info("Saved anomaly batch",
		"submitted", report.Submitted,
		"persisted", report.PersistedCount(),
		"duplicates", report.Count(OutcomeDuplicate),
		"failed", report.Count(OutcomeInsertFailed))
	return report, nil
}

// isDuplicate reports whether an unresolved anomaly with the same equipment,
// title and UTC detection day already exists. Anomalies lacking equipment or title
// never match.
func (r *anomalyRepository) isDuplicate(ctx context.Context, tx pgx.Tx, anomaly domain.Anomaly, written map[string]struct{}) (bool, error) {
	key, ok := anomaly.DedupKey()
	if !ok {
		return false, nil
	}
	if _, seen := written[key]; seen {
		return true, nil
	}

	query, args, err := r.psql.
		Select("1").
		From(anomaliesTable).
		Where(sq.Eq{
			"equipment_number": *anomaly.EquipmentNumber,
			"title":            *anomaly.Title,
		}).
		Where("(detection_date AT TIME ZONE 'UTC')::date = ?::date", anomaly.DetectionDay()).
		Where(sq.NotEq{"status": string(domain.StatusResolved)}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build duplicate query: %w", err)
	}

	var one int
	if err := tx.QueryRow(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}
	return true, nil
}

// insert writes one anomaly inside a savepoint so a failing row does not
// abort the surrounding batch transaction.
func (r *anomalyRepository) insert(ctx context.Context, tx pgx.Tx, anomaly domain.Anomaly) (domain.Anomaly, error) {
	query, args, err := r.psql.
		Insert(anomaliesTable).
		Columns(anomalyColumns...).
		Values(
			anomaly.ID,
			anomaly.EquipmentNumber,
			anomaly.Title,
			anomaly.Description,
			anomaly.DetectionDate,
			string(anomaly.Status),
			anomaly.Priority,
			anomaly.EquipmentDescription,
			anomaly.ResponsibleSection,
			string(anomaly.Criticality),
			string(anomaly.OriginSystem),
			anomaly.CreatedAt,
			anomaly.UpdatedAt,
		).
		Suffix("RETURNING " + strings.Join(anomalyColumns, ", ")).
		ToSql()
	if err != nil {
		return domain.Anomaly{}, &domain.RecordInsertError{AnomalyID: anomaly.ID, Err: fmt.Errorf("failed to build insert: %w", err)}
	}

	var stored domain.Anomaly
	err = db.WithTx(ctx, tx, func(savepoint pgx.Tx) error {
		return pgxscan.Get(ctx, savepoint, &stored, query, args...)
	})
	if err != nil {
		return domain.Anomaly{}, newRecordInsertError(anomaly, err)
	}
	return stored, nil
}

func newRecordInsertError(anomaly domain.Anomaly, err error) *domain.RecordInsertError {
	insertErr := &domain.RecordInsertError{AnomalyID: anomaly.ID, Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		insertErr.Code = pgErr.Code
		if pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			insertErr.Err = fmt.Errorf("constraint %s violated: %w", pgErr.ConstraintName, err)
		}
	}
	return insertErr
}

func (r *anomalyRepository) List(ctx context.Context, filter domain.AnomalyFilter) ([]domain.Anomaly, error) {
	builder := r.psql.
		Select(anomalyColumns...).
		From(anomaliesTable).
		OrderBy("detection_date DESC")

	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": string(*filter.Status)})
	}
	if filter.Priority != nil {
		builder = builder.Where(sq.Eq{"priority": *filter.Priority})
	}
	if filter.Criticality != nil {
		builder = builder.Where(sq.Eq{"criticality": string(*filter.Criticality)})
	}
	if filter.EquipmentNumber != "" {
		builder = builder.Where(sq.ILike{"equipment_number": "%" + filter.EquipmentNumber + "%"})
	}
	if filter.ResponsibleSection != "" {
		builder = builder.Where(sq.ILike{"responsible_section": "%" + filter.ResponsibleSection + "%"})
	}
	if filter.DetectedFrom != nil {
		builder = builder.Where(sq.GtOrEq{"detection_date": *filter.DetectedFrom})
	}
	if filter.DetectedTo != nil {
		builder = builder.Where(sq.LtOrEq{"detection_date": *filter.DetectedTo})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build anomaly query: %w", err)
	}

	anomalies := []domain.Anomaly{}
	if err := pgxscan.Select(ctx, r.db, &anomalies, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}
	return anomalies, nil
}

func (r *anomalyRepository) Statistics(ctx context.Context) (domain.Statistics, error) {
	query, args, err := r.psql.
		Select(
			"COUNT(*) AS total_anomalies",
			"COUNT(*) FILTER (WHERE status = 'new') AS new_count",
			"COUNT(*) FILTER (WHERE status = 'in_progress') AS in_progress_count",
			"COUNT(*) FILTER (WHERE status = 'resolved') AS resolved_count",
			"COUNT(*) FILTER (WHERE criticality = 'critical') AS critical_count",
			"COUNT(*) FILTER (WHERE criticality = 'medium') AS medium_count",
			"COUNT(*) FILTER (WHERE criticality = 'low') AS low_count",
			"COUNT(DISTINCT equipment_number) AS unique_equipment",
			"COUNT(DISTINCT responsible_section) AS unique_sections",
		).
		From(anomaliesTable).
		ToSql()
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("failed to build statistics query: %w", err)
	}

	var stats domain.Statistics
	if err := pgxscan.Get(ctx, r.db, &stats, query, args...); err != nil {
		return domain.Statistics{}, fmt.Errorf("failed to load anomaly statistics: %w", err)
	}
	return stats, nil
}

func (r *anomalyRepository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
