package domain

import "time"

// AnomalyFilter represents filtering options for listing anomalies.
// Nil or zero fields are not applied.
type AnomalyFilter struct {
	Status             *Status
	Priority           *int
	EquipmentNumber    string
	ResponsibleSection string
	DetectedFrom       *time.Time
	DetectedTo         *time.Time
	Criticality        *Criticality
	Limit              int
}

// IsEmpty reports whether no filter is set.
func (f AnomalyFilter) IsEmpty() bool {
	return f.Status == nil &&
		f.Priority == nil &&
		f.EquipmentNumber == "" &&
		f.ResponsibleSection == "" &&
		f.DetectedFrom == nil &&
		f.DetectedTo == nil &&
		f.Criticality == nil &&
		f.Limit <= 0
}
