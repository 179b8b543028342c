package ingestion

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Pedro-99/taqa-backend/internal/domain"
	"github.com/Pedro-99/taqa-backend/internal/normalizer"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported file format", domain.ErrValidation)
	// ErrFileNotFound is returned when a workbook path does not exist.
	ErrFileNotFound = fmt.Errorf("%w: file not found", domain.ErrValidation)

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// Sheet is the first worksheet of a workbook: a header row and the data rows
// below it keyed by header.
type Sheet struct {
	Name           string
	Headers        []string
	Records        []normalizer.RawRecord
	HeaderRowIndex int
}

// ReadWorkbookFile reads the workbook stored at path.
func ReadWorkbookFile(path string) (Sheet, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Sheet{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return Sheet{}, fmt.Errorf("failed to read workbook %s: %w", path, err)
	}
	return ReadWorkbook(filepath.Base(path), payload)
}

// DecodeBase64Workbook decodes an uploaded workbook. A data URL prefix
// ("data:...;base64,") is tolerated.
func DecodeBase64Workbook(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if idx := strings.Index(encoded, ";base64,"); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+len(";base64,"):]
	}
	if encoded == "" {
		return nil, fmt.Errorf("%w: file is empty", domain.ErrValidation)
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 file content: %v", domain.ErrValidation, err)
	}
	return payload, nil
}

// ReadWorkbook parses an in-memory workbook. The format is chosen from the
// extension of fileName; .xlsx and .csv are supported.
func ReadWorkbook(fileName string, payload []byte) (Sheet, error) {
	return readWorkbookAs(fileName, filepath.Ext(fileName), payload)
}

// readWorkbookAs parses payload in the format named by ext, ignoring the
// extension of fileName.
func readWorkbookAs(fileName, ext string, payload []byte) (Sheet, error) {
	if len(payload) == 0 {
		return Sheet{}, fmt.Errorf("%w: file is empty", domain.ErrValidation)
	}

	var (
		name string
		rows [][]string
		err  error
	)
	ext = strings.ToLower(ext)
	switch ext {
	case ".csv":
		name = strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
		rows, err = readCSV(payload)
	case ".xlsx", ".xlsm":
		name, rows, err = readExcel(payload)
	default:
		return Sheet{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Sheet{}, err
	}

	sheet, err := buildSheet(rows)
	if err != nil {
		return Sheet{}, err
	}
	sheet.Name = name
	return sheet, nil
}

func readCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read csv: %v", domain.ErrValidation, err)
	}
	return records, nil
}

func readExcel(payload []byte) (string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return "", nil, fmt.Errorf("%w: failed to open xlsx: %v", domain.ErrValidation, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, fmt.Errorf("%w: excel file has no sheets", domain.ErrValidation)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return sheets[0], rows, nil
}

// buildSheet takes the first non-blank row as header and keys every later
// non-blank row by it. Missing or blank cells become nil.
func buildSheet(rows [][]string) (Sheet, error) {
	headerIndex := -1
	var headerRow []string
	var dataRows [][]string

	for idx, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if headerRow == nil {
			headerRow = row
			headerIndex = idx
			continue
		}
		dataRows = append(dataRows, row)
	}

	if headerRow == nil {
		return Sheet{}, fmt.Errorf("%w: no rows found in file", domain.ErrValidation)
	}

	headers := uniqueHeaders(headerRow)
	records := make([]normalizer.RawRecord, 0, len(dataRows))
	for _, row := range dataRows {
		row = padRow(row, len(headers))
		record := make(normalizer.RawRecord, len(headers))
		for i, header := range headers {
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				record[header] = nil
				continue
			}
			record[header] = cell
		}
		records = append(records, record)
	}

	return Sheet{
		Headers:        headers,
		Records:        records,
		HeaderRowIndex: headerIndex,
	}, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// uniqueHeaders trims header labels, names empty ones after their column and
// suffixes repeated labels.
func uniqueHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
