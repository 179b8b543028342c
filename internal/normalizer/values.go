package normalizer

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Pedro-99/taqa-backend/internal/domain"

	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
)

// Largest serial excel can represent (9999-12-31).
const maxExcelSerial = 2958465

// Largest magnitude in unix milliseconds accepted as a date (+/-100M days
// around the epoch, inside the postgres timestamptz range).
const maxUnixMillis = 8.64e15

var (
	dateLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		// Day first is tried before month first because the sources are
		// French: 03/04/2024 is 3 April.
		"02-01-2006 15:04:05",
		"02-01-2006 15:04",
		"02-01-2006",
		"01-02-2006 15:04:05",
		"01-02-2006",
		// Two digit years only come from excelize rendering the builtin date
		// format as mm-dd-yy, so these stay month first.
		"01-02-06 15:04",
		"01-02-06",
		time.RFC1123Z,
		time.RFC1123,
		"Jan 2, 2006",
		"2 January 2006",
	}

	leadingInt = regexp.MustCompile(`^\s*[+-]?\d+`)

	statusTerms = map[string]domain.Status{
		// French
		"terminé":  domain.StatusResolved,
		"termine":  domain.StatusResolved,
		"résolu":   domain.StatusResolved,
		"resolu":   domain.StatusResolved,
		"en cours": domain.StatusInProgress,
		"encours":  domain.StatusInProgress,
		"nouveau":  domain.StatusNew,
		"fermé":    domain.StatusClosed,
		"ferme":    domain.StatusClosed,
		"annulé":   domain.StatusCancelled,
		"annule":   domain.StatusCancelled,

		// English
		"completed":   domain.StatusResolved,
		"resolved":    domain.StatusResolved,
		"in progress": domain.StatusInProgress,
		"in_progress": domain.StatusInProgress,
		"pending":     domain.StatusInProgress,
		"new":         domain.StatusNew,
		"open":        domain.StatusNew,
		"closed":      domain.StatusClosed,
		"cancelled":   domain.StatusCancelled,
		"canceled":    domain.StatusCancelled,
	}

	priorityTerms = map[string]int{
		"critique": 1,
		"critical": 1,
		"urgent":   1,
		"haute":    1,
		"high":     1,
		"élevé":    1,
		"eleve":    1,
		"moyenne":  2,
		"medium":   2,
		"moyen":    2,
		"normale":  2,
		"normal":   2,
		"basse":    3,
		"low":      3,
		"faible":   3,
	}

	foldedStatusTerms   = foldTable(statusTerms)
	foldedPriorityTerms = foldTable(priorityTerms)
)

func foldTable[V any](table map[string]V) map[string]V {
	folded := make(map[string]V, len(table))
	for term, v := range table {
		folded[foldTerm(term)] = v
	}
	return folded
}

// isAbsent treats nil, nil pointers and blank strings as missing values.
func isAbsent(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case *string:
		return v == nil || strings.TrimSpace(*v) == ""
	case *time.Time:
		return v == nil
	}
	return false
}

func toText(value any) string {
	if s, err := cast.ToStringE(value); err == nil {
		return s
	}
	if b, err := json.Marshal(value); err == nil {
		return string(b)
	}
	return ""
}

// CleanString stringifies value and trims it. Empty results are nil.
func CleanString(value any) *string {
	if isAbsent(value) {
		return nil
	}
	s := strings.TrimSpace(toText(value))
	if s == "" {
		return nil
	}
	return &s
}

// ParseDate turns value into a timestamp and never fails: anything that
// cannot be read as a date yields now.
func ParseDate(value any, now time.Time) time.Time {
	if isAbsent(value) {
		return now
	}
	switch v := value.(type) {
	case time.Time:
		if !v.IsZero() {
			return v
		}
		return now
	case *time.Time:
		if !v.IsZero() {
			return *v
		}
		return now
	case json.Number:
		if f, err := v.Float64(); err == nil {
			if ts, ok := numericDate(f); ok {
				return ts
			}
		}
		return now
	case string:
		if ts, ok := ParseTimestamp(v); ok {
			return ts
		}
		return now
	}
	if isNumeric(value) {
		if ts, ok := numericDate(cast.ToFloat64(value)); ok {
			return ts
		}
		return now
	}
	if ts, ok := ParseTimestamp(toText(value)); ok {
		return ts
	}
	return now
}

// ParseTimestamp tries the literal string, then the variants with '/' and '.'
// replaced by '-', against every known layout.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	candidates := []string{
		raw,
		strings.ReplaceAll(raw, "/", "-"),
		strings.ReplaceAll(raw, ".", "-"),
	}
	for _, candidate := range candidates {
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, candidate); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// numericDate reads small positive numbers as excel serial days and anything
// larger as unix milliseconds. NaN, infinities and out of range values are
// rejected.
func numericDate(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 || f > maxUnixMillis {
		return time.Time{}, false
	}
	if f <= maxExcelSerial {
		ts, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	}
	return time.UnixMilli(int64(f)).UTC(), true
}

func isNumeric(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// MapStatus maps a French or English status label onto the canonical enum.
// Unknown labels are new.
func MapStatus(value any) domain.Status {
	if isAbsent(value) {
		return domain.StatusNew
	}
	term := strings.ToLower(strings.TrimSpace(toText(value)))
	if status, ok := statusTerms[term]; ok {
		return status
	}
	if status, ok := foldedStatusTerms[foldTerm(term)]; ok {
		return status
	}
	return domain.StatusNew
}

// ParsePriority returns value as a priority in [1,5]. Integers in range are
// taken as is; labels such as "urgent" or "faible" go through the term table.
// Everything else is the default priority.
func ParsePriority(value any) int {
	if isAbsent(value) {
		return domain.DefaultPriority
	}
	if isNumeric(value) {
		if p, ok := priorityInRange(int64(cast.ToFloat64(value))); ok {
			return p
		}
	}
	text := toText(value)
	if m := leadingInt.FindString(text); m != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(m), 10, 64); err == nil {
			if p, ok := priorityInRange(n); ok {
				return p
			}
		}
	}
	term := strings.ToLower(strings.TrimSpace(text))
	if p, ok := priorityTerms[term]; ok {
		return p
	}
	if p, ok := foldedPriorityTerms[foldTerm(term)]; ok {
		return p
	}
	return domain.DefaultPriority
}

func priorityInRange(n int64) (int, bool) {
	if n >= domain.MinPriority && n <= domain.MaxPriority {
		return int(n), true
	}
	return 0, false
}

// CriticalityFor derives the criticality of a raw priority value.
func CriticalityFor(value any) domain.Criticality {
	return domain.CriticalityForPriority(ParsePriority(value))
}
