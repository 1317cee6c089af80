// Package spreadsheet reads lesson rows from CSV and XLSX uploads.
package spreadsheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/schedulus-api/pkg/casing"
)

// Column names shared by import and export.
const (
	ColumnID                = "id"
	ColumnSubject           = "subject"
	ColumnTeacher           = "teacher"
	ColumnStudentGroup      = "student_group"
	ColumnDifficultyWeight  = "difficulty_weight"
	ColumnSatisfactionScore = "satisfaction_score"
	ColumnPinned            = "pinned"
)

// Headers is the canonical column order for lesson exports.
var Headers = []string{
	ColumnID,
	ColumnSubject,
	ColumnTeacher,
	ColumnStudentGroup,
	ColumnDifficultyWeight,
	ColumnSatisfactionScore,
	ColumnPinned,
}

var requiredColumns = []string{ColumnSubject, ColumnTeacher, ColumnStudentGroup}

var (
	// ErrUnsupportedFormat is returned for files that are neither .csv nor .xlsx.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	// ErrEmpty is returned when the file has no header row.
	ErrEmpty = errors.New("spreadsheet is empty")
)

// RowError reports a problem with a single data row. Row is 1-based and counts the header.
type RowError struct {
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d, column %s: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// LessonRow is one parsed data row. Weights are nil when the cell was blank.
type LessonRow struct {
	Row               int
	ID                string
	Subject           string
	Teacher           string
	StudentGroup      string
	DifficultyWeight  *float64
	SatisfactionScore *float64
	Pinned            bool
}

// Parse dispatches on the file extension.
func Parse(filename string, r io.Reader) ([]LessonRow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// ParseCSV reads lesson rows from CSV.
func ParseCSV(r io.Reader) ([]LessonRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromRecords(records)
}

// ParseXLSX reads lesson rows from the first sheet of a workbook.
func ParseXLSX(r io.Reader) ([]LessonRow, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close() //nolint:errcheck

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	records, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return fromRecords(records)
}

// NormalizeHeader maps "Student Group", "studentGroup" and "student_group" to the same column name.
func NormalizeHeader(raw string) string {
	header := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	header = strings.ReplaceAll(header, " ", "_")
	header = strings.ReplaceAll(header, "-", "_")
	header = strings.ToLower(casing.SnakeKey(header))
	for strings.Contains(header, "__") {
		header = strings.ReplaceAll(header, "__", "_")
	}
	return strings.Trim(header, "_")
}

func fromRecords(records [][]string) ([]LessonRow, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	index := make(map[string]int, len(records[0]))
	for i, raw := range records[0] {
		if name := NormalizeHeader(raw); name != "" {
			if _, dup := index[name]; !dup {
				index[name] = i
			}
		}
	}
	for _, column := range requiredColumns {
		if _, ok := index[column]; !ok {
			return nil, fmt.Errorf("missing required column %q", column)
		}
	}

	rows := make([]LessonRow, 0, len(records)-1)
	for i, record := range records[1:] {
		if blank(record) {
			continue
		}
		cell := func(column string) string {
			pos, ok := index[column]
			if !ok || pos >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[pos])
		}
		row := LessonRow{
			Row:          i + 2,
			ID:           cell(ColumnID),
			Subject:      cell(ColumnSubject),
			Teacher:      cell(ColumnTeacher),
			StudentGroup: cell(ColumnStudentGroup),
		}
		var err error
		if row.DifficultyWeight, err = parseOptionalFloat(cell(ColumnDifficultyWeight)); err != nil {
			return nil, &RowError{Row: row.Row, Column: ColumnDifficultyWeight, Err: err}
		}
		if row.SatisfactionScore, err = parseOptionalFloat(cell(ColumnSatisfactionScore)); err != nil {
			return nil, &RowError{Row: row.Row, Column: ColumnSatisfactionScore, Err: err}
		}
		if raw := cell(ColumnPinned); raw != "" {
			if row.Pinned, err = parseBool(raw); err != nil {
				return nil, &RowError{Row: row.Row, Column: ColumnPinned, Err: err}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseOptionalFloat(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", raw)
	}
	return &v, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y":
		return true, nil
	case "0", "false", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", raw)
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
