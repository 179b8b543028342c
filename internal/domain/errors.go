package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrValidation marks batch level input problems; the whole batch is rejected.
	ErrValidation = errors.New("validation error")
	// ErrUnknownSource is returned for a source type outside excel, oracle and manual.
	ErrUnknownSource = fmt.Errorf("%w: unknown source", ErrValidation)
	// ErrEmptyBatch is returned when there is nothing to ingest.
	ErrEmptyBatch = fmt.Errorf("%w: no data to process", ErrValidation)

	// ErrPersistence matches any PersistenceFailure.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotImplemented is returned by enterprise source connectivity.
	ErrNotImplemented = errors.New("not implemented")
)

// RecordReconciliationError describes a raw record that could not be mapped
// onto the canonical shape. It is recovered locally and the record skipped.
type RecordReconciliationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *RecordReconciliationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("record %d: field %s: %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
}

// RecordInsertError wraps a storage failure for a single anomaly.
type RecordInsertError struct {
	AnomalyID uuid.UUID
	Code      string
	Err       error
}

func (e *RecordInsertError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("insert anomaly %s (sqlstate %s): %v", e.AnomalyID, e.Code, e.Err)
	}
	return fmt.Sprintf("insert anomaly %s: %v", e.AnomalyID, e.Err)
}

func (e *RecordInsertError) Unwrap() error { return e.Err }

// PersistenceFailure is a transaction level failure. Nothing from the batch is stored.
type PersistenceFailure struct {
	Op  string
	Err error
}

// NewPersistenceFailure wraps err as a failure of op.
func NewPersistenceFailure(op string, err error) *PersistenceFailure {
	return &PersistenceFailure{Op: op, Err: err}
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("database save failed: %s: %v", e.Op, e.Err)
}

func (e *PersistenceFailure) Unwrap() error { return e.Err }

func (e *PersistenceFailure) Is(target error) bool { return target == ErrPersistence }
