package normalizer

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/Pedro-99/taqa-backend/internal/domain"
)

// RawRecord is one source row keyed by its raw field names.
type RawRecord map[string]any

// Reconcile maps one raw record onto an Anomaly. index is the position of the
// record in its batch and is only used for error reporting.
func (n *Normalizer) Reconcile(index int, record RawRecord, source domain.OriginSystem) (domain.Anomaly, error) {
	if !source.Valid() {
		return domain.Anomaly{}, fmt.Errorf("%w: %q", domain.ErrUnknownSource, source)
	}
	if record == nil {
		return domain.Anomaly{}, &domain.RecordReconciliationError{Index: index, Reason: "record is empty"}
	}

	lookup := newFieldLookup(record)
	values := make(map[Field]any, len(Fields))
	for _, field := range Fields {
		value, key := lookup.find(fieldAliases[field][source])
		if key != "" && !isScalar(value) {
			return domain.Anomaly{}, &domain.RecordReconciliationError{
				Index:  index,
				Field:  key,
				Reason: fmt.Sprintf("unsupported value of type %T", value),
			}
		}
		values[field] = value
	}

	now := n.now()
	priority := ParsePriority(values[FieldPriority])
	return domain.Anomaly{
		ID:                   n.newID(),
		EquipmentNumber:      CleanString(values[FieldEquipmentNumber]),
		Title:                CleanString(values[FieldTitle]),
		Description:          CleanString(values[FieldDescription]),
		DetectionDate:        ParseDate(values[FieldDetectionDate], now),
		Status:               MapStatus(values[FieldStatus]),
		Priority:             priority,
		Criticality:          domain.CriticalityForPriority(priority),
		EquipmentDescription: CleanString(values[FieldEquipmentDescription]),
		ResponsibleSection:   CleanString(values[FieldResponsibleSection]),
		OriginSystem:         source,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

type fieldLookup struct {
	record RawRecord
	folded map[string]string
}

func newFieldLookup(record RawRecord) fieldLookup {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	// sorted so that two raw keys folding to the same name resolve the same way every time
	sort.Strings(keys)
	folded := make(map[string]string, len(keys))
	for _, k := range keys {
		fk := foldKey(k)
		if _, taken := folded[fk]; !taken {
			folded[fk] = k
		}
	}
	return fieldLookup{record: record, folded: folded}
}

// find returns the first non-empty value among aliases, matching each alias
// exactly before trying its folded form. key is the raw name that matched.
func (l fieldLookup) find(aliases []string) (value any, key string) {
	for _, alias := range aliases {
		if v, ok := l.record[alias]; ok && !isAbsent(v) {
			return v, alias
		}
		if raw, ok := l.folded[foldKey(alias)]; ok {
			if v := l.record[raw]; !isAbsent(v) {
				return v, raw
			}
		}
	}
	return nil, ""
}

var timeType = reflect.TypeOf(time.Time{})

func isScalar(value any) bool {
	if value == nil {
		return true
	}
	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Chan, reflect.Func:
		return false
	case reflect.Struct:
		return t == timeType
	}
	return true
}
