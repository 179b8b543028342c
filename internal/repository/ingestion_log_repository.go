package repository

import (
	"context"
	"fmt"

	"github.com/Pedro-99/taqa-backend/internal/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
)

type ingestionLogRepository struct {
	db   DB
	psql sq.StatementBuilderType
}

// NewIngestionLogRepository wires a repository backed by a pgx pool.
func NewIngestionLogRepository(db DB) IngestionLogRepository {
	return &ingestionLogRepository{
		db:   db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *ingestionLogRepository) Record(ctx context.Context, entry domain.IngestionLogEntry) error {
	if r.db == nil {
		return fmt.Errorf("ingestion log repository not initialized")
	}

	query, args, err := r.psql.
		Insert("ingestion_logs").
		Columns("source", "file_name", "row_number", "stage", "error_message").
		Values(string(entry.Source), entry.FileName, entry.RowNumber, entry.Stage, entry.ErrorMessage).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build ingestion log insert: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record ingestion log: %w", err)
	}
	return nil
}

func (r *ingestionLogRepository) List(ctx context.Context, source domain.OriginSystem, limit int, offset int) ([]domain.IngestionLogEntry, error) {
	if r.db == nil {
		return nil, fmt.Errorf("ingestion log repository not initialized")
	}

	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	builder := r.psql.
		Select("id", "source", "file_name", "row_number", "stage", "error_message", "created_at").
		From("ingestion_logs").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
	if source != "" {
		builder = builder.Where(sq.Eq{"source": string(source)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build ingestion log query: %w", err)
	}

	logs := []domain.IngestionLogEntry{}
	if err := pgxscan.Select(ctx, r.db, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list ingestion logs: %w", err)
	}
	return logs, nil
}
