package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Pedro-99/taqa-backend/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestProcessEndpoint(t *testing.T) {
	repo := &stubAnomalyRepo{}
	handler := NewHTTPHandler(newTestService(repo, nil))

	payload := `{"source":"manual","data":[` +
		`{"equipment_number":"EQ-1","title":"A"},{"equipment_number":"EQ-2","title":"B"},` +
		`{"equipment_number":"EQ-3","title":"C"},{"equipment_number":"EQ-4","title":"D"},` +
		`{"equipment_number":"EQ-5","title":"E"},{"equipment_number":"EQ-6","title":"F"}]}`
	rec, body := serve(t, handler, httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(payload)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(6), body["processed"])
	assert.Equal(t, float64(6), body["submitted"])
	assert.Equal(t, "manual", body["source"])
	assert.Equal(t, "Successfully processed 6 records from manual", body["message"])
	assert.Len(t, body["data"], 5)
}

func TestProcessEndpointCountsSkippedRecords(t *testing.T) {
	repo := &stubAnomalyRepo{failIndex: map[int]bool{1: true}}
	handler := NewHTTPHandler(newTestService(repo, nil))

	payload := `{"source":"manual","data":[` +
		`{"equipment_number":"EQ-1","title":"A"},` +
		`{"equipment_number":{"nested":true},"title":"B"},` +
		`{"equipment_number":"EQ-3","title":"C"}]}`
	rec, body := serve(t, handler, httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(payload)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(3), body["submitted"])
	assert.Equal(t, float64(3), body["received"])
	assert.Equal(t, float64(2), body["normalized"])
	assert.Equal(t, float64(1), body["skipped"])
	assert.Equal(t, float64(1), body["failed"])
	assert.Equal(t, float64(1), body["processed"])
}

func TestProcessEndpointErrors(t *testing.T) {
	tests := []struct {
		name    string
		repo    *stubAnomalyRepo
		payload string
		status  int
	}{
		{name: "invalid json", repo: &stubAnomalyRepo{}, payload: `{`, status: http.StatusBadRequest},
		{name: "unknown source", repo: &stubAnomalyRepo{}, payload: `{"source":"sap","data":[{}]}`, status: http.StatusBadRequest},
		{name: "no data", repo: &stubAnomalyRepo{}, payload: `{"source":"manual"}`, status: http.StatusBadRequest},
		{name: "oracle not configured", repo: &stubAnomalyRepo{}, payload: `{"source":"oracle"}`, status: http.StatusNotImplemented},
		{
			name:    "save failure",
			repo:    &stubAnomalyRepo{saveErr: domain.NewPersistenceFailure("commit", errors.New("reset"))},
			payload: `{"source":"manual","data":{"title":"x"}}`,
			status:  http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHTTPHandler(newTestService(tt.repo, nil))
			rec, body := serve(t, handler, httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(tt.payload)))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestProcessEndpointRejectsGet(t *testing.T) {
	handler := NewHTTPHandler(newTestService(&stubAnomalyRepo{}, nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUploadEndpointBase64(t *testing.T) {
	repo := &stubAnomalyRepo{}
	handler := NewHTTPHandler(newTestService(repo, nil))

	payload := `{"file":"VGl0bGUsU3RhdHVzCkxlYWssb3Blbgo=","filename":"report.csv","type":"csv"}`
	rec, body := serve(t, handler, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(payload)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), body["processed"])
	assert.Equal(t, "excel", body["source"])
}

func TestUploadEndpointMultipart(t *testing.T) {
	repo := &stubAnomalyRepo{}
	handler := NewHTTPHandler(newTestService(repo, nil))

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "report.csv")
	require.NoError(t, err)
	_, err = io.WriteString(part, "Title,Priority\nLeak,1\nCrack,4\n")
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec, body := serve(t, handler, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(2), body["processed"])
	require.Len(t, repo.saved, 1)
	assert.Equal(t, 4, repo.saved[0][1].Priority)
}

func TestListAnomaliesEndpoint(t *testing.T) {
	title := "Leak"
	repo := &stubAnomalyRepo{listResult: []domain.Anomaly{{Title: &title, Status: domain.StatusNew}}}
	handler := NewHTTPHandler(newTestService(repo, nil))

	rec, body := serve(t, handler, httptest.NewRequest(http.MethodGet, "/anomalies?status=new&limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["count"])
	require.NotNil(t, repo.listFilter)
	assert.Equal(t, domain.StatusNew, *repo.listFilter.Status)
	assert.Equal(t, 5, repo.listFilter.Limit)
}

func TestListAnomaliesEndpointRejectsBadFilter(t *testing.T) {
	repo := &stubAnomalyRepo{}
	handler := NewHTTPHandler(newTestService(repo, nil))

	rec, _ := serve(t, handler, httptest.NewRequest(http.MethodGet, "/anomalies?priority=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, repo.listFilter)
}

func TestStatisticsEndpoint(t *testing.T) {
	repo := &stubAnomalyRepo{stats: domain.Statistics{TotalAnomalies: 3, NewCount: 2}}
	handler := NewHTTPHandler(newTestService(repo, nil))

	rec, body := serve(t, handler, httptest.NewRequest(http.MethodGet, "/statistics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), data["total_anomalies"])
	assert.Equal(t, float64(2), data["new_count"])
}

func TestHealthEndpoint(t *testing.T) {
	repo := &stubAnomalyRepo{}
	handler := NewHTTPHandler(newTestService(repo, nil))

	rec, body := serve(t, handler, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	repo.pingErr = errors.New("refused")
	rec, body = serve(t, handler, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestMetricsCountIngestedRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	repo := &stubAnomalyRepo{failIndex: map[int]bool{0: true}}
	handler := NewHTTPHandler(newTestService(repo, nil, WithMetrics(NewMetrics(reg))))

	payload := `{"source":"manual","data":[{"title":"A"},{"title":"B"},"oops"]}`
	rec, _ := serve(t, handler, httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code)

	metrics := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := metrics.Body.String()

	assert.Contains(t, out, `anomaly_records_submitted_total{source="manual"} 2`)
	assert.Contains(t, out, `anomaly_records_persisted_total{source="manual"} 1`)
	assert.Contains(t, out, `anomaly_records_skipped_total{reason="insert",source="manual"} 1`)
	assert.Contains(t, out, `anomaly_records_skipped_total{reason="reconcile",source="manual"} 1`)
}
