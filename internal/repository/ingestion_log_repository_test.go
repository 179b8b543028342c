package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Pedro-99/taqa-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestionLogRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	row := 3
	mock.ExpectExec(`INSERT INTO ingestion_logs \(source,file_name,row_number,stage,error_message\) VALUES \(\$1,\$2,\$3,\$4,\$5\)`).
		WithArgs("excel", "anomalies.xlsx", &row, domain.IngestionStageReconcile, "record 3: record is empty").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewIngestionLogRepository(mock)
	err = repo.Record(context.Background(), domain.IngestionLogEntry{
		Source:       domain.OriginExcel,
		FileName:     "anomalies.xlsx",
		RowNumber:    &row,
		Stage:        domain.IngestionStageReconcile,
		ErrorMessage: "record 3: record is empty",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestionLogList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	created := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	row := 7

	mock.ExpectQuery(`SELECT id, source, file_name, row_number, stage, error_message, created_at FROM ingestion_logs WHERE source = \$1 ORDER BY created_at DESC LIMIT 200 OFFSET 0`).
		WithArgs("oracle").
		WillReturnRows(pgxmock.NewRows([]string{"id", "source", "file_name", "row_number", "stage", "error_message", "created_at"}).
			AddRow(id, domain.OriginOracle, "", &row, domain.IngestionStageInsert, "insert failed", created))

	repo := NewIngestionLogRepository(mock)
	logs, err := repo.List(context.Background(), domain.OriginOracle, 0, -1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, id, logs[0].ID)
	assert.Equal(t, domain.OriginOracle, logs[0].Source)
	require.NotNil(t, logs[0].RowNumber)
	assert.Equal(t, 7, *logs[0].RowNumber)
	assert.Equal(t, created, logs[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
