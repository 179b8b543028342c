package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the canonical lifecycle state of an anomaly.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the five canonical statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusResolved, StatusClosed, StatusCancelled:
		return true
	}
	return false
}

// Criticality is the three-level severity label derived from priority.
type Criticality string

const (
	CriticalityCritical Criticality = "critical"
	CriticalityMedium   Criticality = "medium"
	CriticalityLow      Criticality = "low"
)

// Valid reports whether c is a known criticality.
func (c Criticality) Valid() bool {
	switch c {
	case CriticalityCritical, CriticalityMedium, CriticalityLow:
		return true
	}
	return false
}

// OriginSystem tags the ingestion channel that produced an anomaly.
type OriginSystem string

const (
	OriginExcel  OriginSystem = "excel"
	OriginOracle OriginSystem = "oracle"
	OriginManual OriginSystem = "manual"
)

// Valid reports whether o is a supported ingestion source.
func (o OriginSystem) Valid() bool {
	switch o {
	case OriginExcel, OriginOracle, OriginManual:
		return true
	}
	return false
}

const (
	MinPriority     = 1
	MaxPriority     = 5
	DefaultPriority = 2
)

// CriticalityForPriority maps a numeric priority onto its criticality.
// Anything outside the known range falls back to medium.
func CriticalityForPriority(priority int) Criticality {
	switch {
	case priority == 1:
		return CriticalityCritical
	case priority == 2:
		return CriticalityMedium
	case priority >= 3:
		return CriticalityLow
	default:
		return CriticalityMedium
	}
}

// Anomaly is the canonical maintenance-anomaly record shared by every source.
type Anomaly struct {
	ID                   uuid.UUID    `json:"id" db:"id"`
	EquipmentNumber      *string      `json:"equipment_number" db:"equipment_number"`
	Title                *string      `json:"title" db:"title"`
	Description          *string      `json:"description" db:"description"`
	DetectionDate        time.Time    `json:"detection_date" db:"detection_date"`
	Status               Status       `json:"status" db:"status"`
	Priority             int          `json:"priority" db:"priority"`
	EquipmentDescription *string      `json:"equipment_description" db:"equipment_description"`
	ResponsibleSection   *string      `json:"responsible_section" db:"responsible_section"`
	Criticality          Criticality  `json:"criticality" db:"criticality"`
	OriginSystem         OriginSystem `json:"origin_system" db:"origin_system"`
	CreatedAt            time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at" db:"updated_at"`
}

// DedupKey identifies anomalies considered the same event: equipment, title
// and calendar day of detection. ok is false when equipment or title is absent,
// in which case the anomaly never matches another one.
func (a Anomaly) DedupKey() (key string, ok bool) {
	if a.EquipmentNumber == nil || a.Title == nil {
		return "", false
	}
	return *a.EquipmentNumber + "\x00" + *a.Title + "\x00" + a.DetectionDay(), true
}

// DetectionDay is the UTC calendar day of detection as YYYY-MM-DD.
func (a Anomaly) DetectionDay() string {
	return a.DetectionDate.UTC().Format("2006-01-02")
}

// Statistics aggregates counts across all stored anomalies.
type Statistics struct {
	TotalAnomalies  int64 `json:"total_anomalies" db:"total_anomalies"`
	NewCount        int64 `json:"new_count" db:"new_count"`
	InProgressCount int64 `json:"in_progress_count" db:"in_progress_count"`
	ResolvedCount   int64 `json:"resolved_count" db:"resolved_count"`
	CriticalCount   int64 `json:"critical_count" db:"critical_count"`
	MediumCount     int64 `json:"medium_count" db:"medium_count"`
	LowCount        int64 `json:"low_count" db:"low_count"`
	UniqueEquipment int64 `json:"unique_equipment" db:"unique_equipment"`
	UniqueSections  int64 `json:"unique_sections" db:"unique_sections"`
}
