package normalizer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Pedro-99/taqa-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func TestNormalizeManualRecord(t *testing.T) {
	n := newTestNormalizer()

	anomalies, err := n.Normalize(context.Background(), []RawRecord{
		{"equipment_number": "EQ-1", "title": "Leak", "priority": "urgent"},
	}, domain.OriginManual)
	require.NoError(t, err)
	require.Len(t, anomalies, 1)

	a := anomalies[0]
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, "EQ-1", *a.EquipmentNumber)
	assert.Equal(t, "Leak", *a.Title)
	require.NotNil(t, a.Description)
	assert.Equal(t, "Leak", *a.Description, "manual description falls back to title")
	assert.Equal(t, 1, a.Priority)
	assert.Equal(t, domain.CriticalityCritical, a.Criticality)
	assert.Equal(t, domain.StatusNew, a.Status)
	assert.Equal(t, domain.OriginManual, a.OriginSystem)
	assert.True(t, fixedNow.Equal(a.DetectionDate))
	assert.True(t, fixedNow.Equal(a.CreatedAt))
	assert.True(t, fixedNow.Equal(a.UpdatedAt))
	assert.Nil(t, a.EquipmentDescription)
	assert.Nil(t, a.ResponsibleSection)
}

func TestNormalizeOutOfRangeNumericDate(t *testing.T) {
	var record RawRecord
	require.NoError(t, json.Unmarshal([]byte(`{"equipment_number":"EQ-1","title":"Leak","detection_date":1e20}`), &record))

	anomalies, err := newTestNormalizer().Normalize(context.Background(), []RawRecord{record}, domain.OriginManual)
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.True(t, fixedNow.Equal(anomalies[0].DetectionDate), "got %s", anomalies[0].DetectionDate)
}

func TestNormalizeOracleRecord(t *testing.T) {
	n := newTestNormalizer()

	anomalies, err := n.Normalize(context.Background(), []RawRecord{{
		"Num_equipement":                  "EQ_ORACLE_002",
		"Description":                     "Température élevée sur roulement",
		"Date de detection de l'anomalie": "2024-01-23T10:15:00Z",
		"Statut":                          "En cours",
		"Priorité":                        2,
		"Description equipement":          "Moteur électrique 750KW",
		"Section proprietaire":            "Maintenance Électrique",
	}}, domain.OriginOracle)
	require.NoError(t, err)
	require.Len(t, anomalies, 1)

	a := anomalies[0]
	assert.Equal(t, "EQ_ORACLE_002", *a.EquipmentNumber)
	assert.Equal(t, "Température élevée sur roulement", *a.Title)
	assert.Equal(t, *a.Title, *a.Description)
	assert.Equal(t, domain.StatusInProgress, a.Status)
	assert.Equal(t, 2, a.Priority)
	assert.Equal(t, domain.CriticalityMedium, a.Criticality)
	assert.Equal(t, "Moteur électrique 750KW", *a.EquipmentDescription)
	assert.Equal(t, "Maintenance Électrique", *a.ResponsibleSection)
	assert.True(t, time.Date(2024, 1, 23, 10, 15, 0, 0, time.UTC).Equal(a.DetectionDate))
}

func TestNormalizeExcelAliasesAndFolding(t *testing.T) {
	n := newTestNormalizer()

	anomalies, err := n.Normalize(context.Background(), []RawRecord{
		{
			"Numéro équipement": "P-101",
			"Titre":             "Fuite d'huile",
			"Date":              "23/01/2024",
			"Statut":            "Terminé",
			"priorite":          "Faible",
			"section":           "Mécanique",
		},
		{
			// exact alias wins over a later alias
			"Equipment Number": "P-102",
			"Num_equipement":   "ignored",
			"Title":            "Noise",
			"Description":      "Bearing noise at high speed",
		},
	}, domain.OriginExcel)
	require.NoError(t, err)
	require.Len(t, anomalies, 2)

	first := anomalies[0]
	assert.Equal(t, "P-101", *first.EquipmentNumber)
	assert.Equal(t, "Fuite d'huile", *first.Title)
	assert.Nil(t, first.Description)
	assert.Equal(t, domain.StatusResolved, first.Status)
	assert.Equal(t, 3, first.Priority)
	assert.Equal(t, domain.CriticalityLow, first.Criticality)
	assert.Equal(t, "Mécanique", *first.ResponsibleSection)
	assert.True(t, time.Date(2024, 1, 23, 0, 0, 0, 0, time.UTC).Equal(first.DetectionDate))

	second := anomalies[1]
	assert.Equal(t, "P-102", *second.EquipmentNumber)
	assert.Equal(t, "Noise", *second.Title)
	assert.Equal(t, "Bearing noise at high speed", *second.Description)
}

func TestNormalizeBlankAliasFallsThrough(t *testing.T) {
	n := newTestNormalizer()

	a, err := n.Reconcile(0, RawRecord{"Title": "  ", "Description": "Crack"}, domain.OriginExcel)
	require.NoError(t, err)
	assert.Equal(t, "Crack", *a.Title)
}

func TestNormalizeSkipsUnreadableRecords(t *testing.T) {
	n := newTestNormalizer()

	records := []RawRecord{
		{"equipment_number": "EQ-1", "title": "A"},
		nil,
		{"equipment_number": map[string]any{"nested": true}, "title": "B"},
		{"equipment_number": "EQ-4", "title": "D"},
	}

	batch, err := n.NormalizeBatch(context.Background(), records, domain.OriginManual)
	require.NoError(t, err)
	require.Len(t, batch.Anomalies, 2)
	assert.Equal(t, "A", *batch.Anomalies[0].Title)
	assert.Equal(t, "D", *batch.Anomalies[1].Title)
	assert.Equal(t, []int{0, 3}, batch.Indexes)

	require.Len(t, batch.Failures, 2)
	assert.Equal(t, 1, batch.Failures[0].Index)
	assert.Equal(t, 2, batch.Failures[1].Index)

	var recErr *domain.RecordReconciliationError
	require.ErrorAs(t, batch.Failures[1].Err, &recErr)
	assert.Equal(t, "equipment_number", recErr.Field)
}

func TestNormalizeUnknownSource(t *testing.T) {
	n := newTestNormalizer()

	_, err := n.Normalize(context.Background(), []RawRecord{{"title": "x"}}, domain.OriginSystem("sap"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownSource))
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestNormalizeEmptyInput(t *testing.T) {
	n := newTestNormalizer()

	anomalies, err := n.Normalize(context.Background(), nil, domain.OriginManual)
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}

func TestNormalizeInvariants(t *testing.T) {
	n := New()
	records := []RawRecord{
		{"title": "a", "priority": "nope", "status": "??"},
		{"title": "b", "priority": 4, "detection_date": "bogus"},
		{"priority": -3},
		{},
	}

	anomalies, err := n.Normalize(context.Background(), records, domain.OriginManual)
	require.NoError(t, err)
	require.Len(t, anomalies, len(records))

	seen := make(map[uuid.UUID]struct{})
	for _, a := range anomalies {
		assert.True(t, a.Status.Valid())
		assert.GreaterOrEqual(t, a.Priority, domain.MinPriority)
		assert.LessOrEqual(t, a.Priority, domain.MaxPriority)
		assert.Equal(t, domain.CriticalityForPriority(a.Priority), a.Criticality)
		assert.Equal(t, domain.OriginManual, a.OriginSystem)
		assert.False(t, a.DetectionDate.IsZero())
		assert.Equal(t, a.CreatedAt, a.UpdatedAt)
		_, dup := seen[a.ID]
		assert.False(t, dup, "ids must be unique")
		seen[a.ID] = struct{}{}
	}
}

func TestNormalizeHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestNormalizer().Normalize(ctx, []RawRecord{{"title": "x"}}, domain.OriginManual)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHasRecognizedFields(t *testing.T) {
	assert.True(t, HasRecognizedFields(domain.OriginExcel, []string{"Foo", "equipment number"}))
	assert.True(t, HasRecognizedFields(domain.OriginExcel, []string{"Titre"}))
	assert.False(t, HasRecognizedFields(domain.OriginExcel, []string{"Foo", "Bar"}))
}
