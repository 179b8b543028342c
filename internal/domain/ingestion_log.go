package domain

import (
	"time"

	"github.com/google/uuid"
)

// IngestionLogEntry captures record level issues that occur during ingestion.
type IngestionLogEntry struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	Source       OriginSystem `json:"source" db:"source"`
	FileName     string       `json:"file_name" db:"file_name"`
	RowNumber    *int         `json:"row_number,omitempty" db:"row_number"`
	Stage        string       `json:"stage" db:"stage"`
	ErrorMessage string       `json:"error_message" db:"error_message"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

const (
	IngestionStageReconcile = "reconcile"
	IngestionStageInsert    = "insert"
)
