package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/Pedro-99/taqa-backend/internal/domain"
	"github.com/Pedro-99/taqa-backend/pkg/logger"
)

const (
	maxBodyBytes = 32 << 20
	previewSize  = 5
)

// Handler exposes ingestion and anomaly queries over HTTP.
type Handler struct {
	service *Service
	mux     *http.ServeMux
}

// NewHTTPHandler routes the ingestion endpoints to service.
func NewHTTPHandler(service *Service) http.Handler {
	h := &Handler{service: service, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /process", h.handleProcess)
	h.mux.HandleFunc("POST /upload", h.handleUpload)
	h.mux.HandleFunc("GET /anomalies", h.handleListAnomalies)
	h.mux.HandleFunc("GET /statistics", h.handleStatistics)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// processResponse reports a batch. Submitted and Received count the records
// in the request; Normalized counts those that survived reconciliation.
type processResponse struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Processed  int                 `json:"processed"`
	Submitted  int                 `json:"submitted"`
	Received   int                 `json:"received"`
	Normalized int                 `json:"normalized"`
	Skipped    int                 `json:"skipped"`
	Duplicates int                 `json:"duplicates"`
	Failed     int                 `json:"failed"`
	Source     domain.OriginSystem `json:"source"`
	Data       []domain.Anomaly    `json:"data"`
}

type listResponse struct {
	Success bool             `json:"success"`
	Count   int              `json:"count"`
	Data    []domain.Anomaly `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := h.service.Process(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProcessResponse(summary))
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		summary Summary
		err     error
	)
	if mediaType == "multipart/form-data" {
		summary, err = h.uploadMultipart(r)
	} else {
		var req UploadRequest
		if err = decodeJSON(w, r, &req); err == nil {
			summary, err = h.service.Upload(r.Context(), req)
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProcessResponse(summary))
}

func (h *Handler) uploadMultipart(r *http.Request) (Summary, error) {
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		return Summary{}, fmt.Errorf("%w: invalid form data: %v", domain.ErrValidation, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return Summary{}, fmt.Errorf("%w: file required: %v", domain.ErrValidation, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: failed to read file: %v", domain.ErrValidation, err)
	}
	return h.service.IngestWorkbook(r.Context(), header.Filename, data)
}

func (h *Handler) handleListAnomalies(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseListFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	anomalies, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Count: len(anomalies), Data: anomalies})
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": stats})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		logger.FromContext(r.Context()).Warn("Health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"status":  "unhealthy",
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func newProcessResponse(summary Summary) processResponse {
	preview := summary.Anomalies
	if len(preview) > previewSize {
		preview = preview[:previewSize]
	}
	if preview == nil {
		preview = []domain.Anomaly{}
	}
	return processResponse{
		Success:    true,
		Message:    fmt.Sprintf("Successfully processed %d records from %s", summary.Persisted, summary.Source),
		Processed:  summary.Persisted,
		Submitted:  summary.Received,
		Received:   summary.Received,
		Normalized: summary.Submitted,
		Skipped:    summary.Skipped,
		Duplicates: summary.Duplicates,
		Failed:     summary.Failed,
		Source:     summary.Source,
		Data:       preview,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrValidation, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotImplemented):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "path", r.URL.Path, "err", err)
	} else {
		log.Warn("Request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorResponse{Success: false, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
