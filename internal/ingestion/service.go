package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Pedro-99/taqa-backend/internal/domain"
	"github.com/Pedro-99/taqa-backend/internal/normalizer"
	"github.com/Pedro-99/taqa-backend/internal/repository"
	"github.com/Pedro-99/taqa-backend/pkg/logger"
)

// RecordSource produces raw records on demand, such as the Oracle feed.
type RecordSource interface {
	Fetch(ctx context.Context) ([]normalizer.RawRecord, error)
}

// Service normalizes raw records from every source and persists them.
type Service struct {
	normalizer *normalizer.Normalizer
	anomalies  repository.AnomalyRepository
	logRepo    repository.IngestionLogRepository
	oracle     RecordSource
	metrics    *Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithOracleSource sets the feed used when an oracle request carries no data.
func WithOracleSource(source RecordSource) Option {
	return func(s *Service) { s.oracle = source }
}

// WithMetrics enables ingestion counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a new ingestion service. logRepo may be nil, in which
// case record failures are only logged.
func NewService(
	n *normalizer.Normalizer,
	anomalies repository.AnomalyRepository,
	logRepo repository.IngestionLogRepository,
	opts ...Option,
) *Service {
	if n == nil {
		n = normalizer.New()
	}
	s := &Service{
		normalizer: n,
		anomalies:  anomalies,
		logRepo:    logRepo,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessRequest is a processing request as received over HTTP. Data is the
// decoded JSON payload: an object or an array of objects.
type ProcessRequest struct {
	Source   string `json:"source"`
	Data     any    `json:"data"`
	FilePath string `json:"filePath"`
}

// UploadRequest carries a base64 encoded workbook.
type UploadRequest struct {
	File     string `json:"file"`
	FileName string `json:"filename"`
	Type     string `json:"type"`
}

// Summary returns ingestion level metrics.
type Summary struct {
	Source     domain.OriginSystem `json:"source"`
	FileName   string              `json:"fileName,omitempty"`
	Received   int                 `json:"received"`
	Submitted  int                 `json:"submitted"`
	Persisted  int                 `json:"persisted"`
	Duplicates int                 `json:"duplicates"`
	Failed     int                 `json:"failed"`
	Skipped    int                 `json:"skipped"`
	// Anomalies holds the stored rows, in input order.
	Anomalies []domain.Anomaly `json:"-"`
}

// Process dispatches a request to the ingestion path of its source.
func (s *Service) Process(ctx context.Context, req ProcessRequest) (Summary, error) {
	source := domain.OriginSystem(strings.ToLower(strings.TrimSpace(req.Source)))

	switch source {
	case domain.OriginExcel:
		if path := strings.TrimSpace(req.FilePath); path != "" {
			return s.IngestFile(ctx, path)
		}
		records, err := toRecords(req.Data)
		if err != nil {
			return Summary{Source: source}, err
		}
		return s.IngestRecords(ctx, source, "", records)

	case domain.OriginOracle:
		if req.Data == nil {
			return s.SyncOracle(ctx)
		}
		records, err := toRecords(req.Data)
		if err != nil {
			return Summary{Source: source}, err
		}
		return s.IngestRecords(ctx, source, "", records)

	case domain.OriginManual:
		records, err := toRecords(req.Data)
		if err != nil {
			return Summary{Source: source}, err
		}
		return s.IngestRecords(ctx, source, "", records)
	}

	return Summary{}, fmt.Errorf("%w: %q", domain.ErrUnknownSource, req.Source)
}

// IngestFile reads a workbook from disk and ingests it as an excel batch.
func (s *Service) IngestFile(ctx context.Context, path string) (Summary, error) {
	sheet, err := ReadWorkbookFile(path)
	if err != nil {
		return Summary{Source: domain.OriginExcel, FileName: path}, err
	}
	return s.ingestSheet(ctx, filepath.Base(path), sheet)
}

// IngestWorkbook ingests an in-memory workbook as an excel batch.
func (s *Service) IngestWorkbook(ctx context.Context, fileName string, payload []byte) (Summary, error) {
	sheet, err := ReadWorkbook(fileName, payload)
	if err != nil {
		return Summary{Source: domain.OriginExcel, FileName: fileName}, err
	}
	return s.ingestSheet(ctx, fileName, sheet)
}

// uploadFormats maps the upload type onto the reader extension. The type
// wins over whatever extension the file name carries.
var uploadFormats = map[string]string{
	"excel": ".xlsx",
	"xlsx":  ".xlsx",
	"xlsm":  ".xlsm",
	"csv":   ".csv",
}

// Upload decodes a base64 workbook and ingests it.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (Summary, error) {
	payload, err := DecodeBase64Workbook(req.File)
	if err != nil {
		return Summary{Source: domain.OriginExcel, FileName: req.FileName}, err
	}

	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		fileName = "upload"
	}

	kind := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(req.Type)), ".")
	readAs := filepath.Ext(fileName)
	switch ext, ok := uploadFormats[kind]; {
	case ok:
		readAs = ext
	case kind != "":
		return Summary{Source: domain.OriginExcel, FileName: fileName}, fmt.Errorf("%w: upload type %q", ErrUnsupportedFormat, req.Type)
	case readAs == "":
		readAs = ".xlsx"
	}
	if filepath.Ext(fileName) == "" {
		fileName += readAs
	}

	sheet, err := readWorkbookAs(fileName, readAs, payload)
	if err != nil {
		return Summary{Source: domain.OriginExcel, FileName: fileName}, err
	}
	return s.ingestSheet(ctx, fileName, sheet)
}

// SyncOracle pulls the Oracle feed and ingests it.
func (s *Service) SyncOracle(ctx context.Context) (Summary, error) {
	if s.oracle == nil {
		return Summary{Source: domain.OriginOracle}, fmt.Errorf("%w: oracle source not configured", domain.ErrNotImplemented)
	}
	records, err := s.oracle.Fetch(ctx)
	if err != nil {
		return Summary{Source: domain.OriginOracle}, fmt.Errorf("failed to fetch oracle records: %w", err)
	}
	return s.IngestRecords(ctx, domain.OriginOracle, "", records)
}

func (s *Service) ingestSheet(ctx context.Context, fileName string, sheet Sheet) (Summary, error) {
	log := logger.FromContext(ctx)
	log.Info("Read workbook", "file", fileName, "sheet", sheet.Name, "rows", len(sheet.Records))
	if !normalizer.HasRecognizedFields(domain.OriginExcel, sheet.Headers) {
		log.Warn("Workbook headers match no known anomaly field", "file", fileName, "headers", sheet.Headers)
	}
	return s.IngestRecords(ctx, domain.OriginExcel, fileName, sheet.Records)
}

// IngestRecords normalizes records and saves the survivors in one batch.
// Unreadable records, duplicates and failed inserts are counted, not returned
// as errors.
func (s *Service) IngestRecords(ctx context.Context, source domain.OriginSystem, fileName string, records []normalizer.RawRecord) (Summary, error) {
	summary := Summary{Source: source, FileName: fileName, Received: len(records)}
	if !source.Valid() {
		return summary, fmt.Errorf("%w: %q", domain.ErrUnknownSource, source)
	}
	if len(records) == 0 {
		return summary, domain.ErrEmptyBatch
	}

	log := logger.FromContext(ctx).With("source", source)

	batch, err := s.normalizer.NormalizeBatch(ctx, records, source)
	if err != nil {
		return summary, err
	}
	summary.Submitted = len(batch.Anomalies)
	summary.Skipped = len(batch.Failures)

	var report repository.SaveReport
	if len(batch.Anomalies) > 0 {
		report, err = s.anomalies.Save(ctx, batch.Anomalies)
		if err != nil {
			s.recordFailures(ctx, source, fileName, batch, repository.SaveReport{})
			return summary, err
		}
	}

	summary.Persisted = report.PersistedCount()
	summary.Duplicates = report.Count(repository.OutcomeDuplicate)
	summary.Failed = report.Count(repository.OutcomeInsertFailed)
	summary.Anomalies = report.Persisted

	s.recordFailures(ctx, source, fileName, batch, report)
	s.metrics.observe(source, summary)

	log.Info("Ingested records",
		"file", fileName,
		"received", summary.Received,
		"submitted", summary.Submitted,
		"persisted", summary.Persisted,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed)
	return summary, nil
}

// recordFailures writes reconciliation and insert failures to the ingestion
// log. It runs after the batch transaction has finished.
func (s *Service) recordFailures(ctx context.Context, source domain.OriginSystem, fileName string, batch normalizer.Batch, report repository.SaveReport) {
	for _, failure := range batch.Failures {
		s.logIngestionError(ctx, domain.IngestionLogEntry{
			Source:       source,
			FileName:     fileName,
			RowNumber:    rowNumber(failure.Index),
			Stage:        domain.IngestionStageReconcile,
			ErrorMessage: failure.Err.Error(),
		})
	}
	for _, failure := range report.Failures() {
		index := failure.Index
		if index < len(batch.Indexes) {
			index = batch.Indexes[index]
		}
		s.logIngestionError(ctx, domain.IngestionLogEntry{
			Source:       source,
			FileName:     fileName,
			RowNumber:    rowNumber(index),
			Stage:        domain.IngestionStageInsert,
			ErrorMessage: failure.Err.Error(),
		})
	}
}

func (s *Service) logIngestionError(ctx context.Context, entry domain.IngestionLogEntry) {
	log := logger.FromContext(ctx)
	if s.logRepo == nil {
		log.Warn("Ingestion error", "source", entry.Source, "row", entry.RowNumber, "stage", entry.Stage, "err", entry.ErrorMessage)
		return
	}
	if err := s.logRepo.Record(ctx, entry); err != nil {
		log.Error("Failed to record ingestion error", "err", err, "original", entry.ErrorMessage)
	}
}

// rowNumber converts a batch index to a 1-based record number.
func rowNumber(index int) *int {
	n := index + 1
	return &n
}

// List returns stored anomalies matching filter, most recent detection first.
func (s *Service) List(ctx context.Context, filter domain.AnomalyFilter) ([]domain.Anomaly, error) {
	return s.anomalies.List(ctx, filter)
}

// Statistics returns aggregate counts over stored anomalies.
func (s *Service) Statistics(ctx context.Context) (domain.Statistics, error) {
	return s.anomalies.Statistics(ctx)
}

// Health checks that the database answers.
func (s *Service) Health(ctx context.Context) error {
	return s.anomalies.Ping(ctx)
}

// toRecords turns a decoded JSON payload into raw records. An object is a
// single record; array elements that are not objects become nil records and
// are skipped during normalization.
func toRecords(data any) ([]normalizer.RawRecord, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case []normalizer.RawRecord:
		return v, nil
	case normalizer.RawRecord:
		return []normalizer.RawRecord{v}, nil
	case map[string]any:
		return []normalizer.RawRecord{v}, nil
	case []map[string]any:
		records := make([]normalizer.RawRecord, len(v))
		for i, item := range v {
			records[i] = item
		}
		return records, nil
	case []any:
		records := make([]normalizer.RawRecord, len(v))
		for i, item := range v {
			if obj, ok := item.(map[string]any); ok {
				records[i] = obj
			}
		}
		return records, nil
	}
	return nil, fmt.Errorf("%w: data must be an object or an array of objects", domain.ErrValidation)
}
