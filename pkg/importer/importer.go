// Package importer parses roster and attendance spreadsheets exported as CSV.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrEmptyFile is returned when the file contains no header row.
var ErrEmptyFile = errors.New("import file is empty")

// RowError describes a rejected row. Line numbers are 1-based and count the header.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// EnrollmentRow is one participant from a roster upload.
type EnrollmentRow struct {
	Line       int
	EmployeeID string
	Name       string
	Email      string
	SBU        string
	Department string
}

// AttendanceRow is one result line from an attendance upload. Nil pointers mean the column was
// absent or blank and the stored value should be kept.
type AttendanceRow struct {
	Line             int
	EmployeeID       string
	Email            string
	Present          *int
	Total            *int
	Score            *float64
	CompletionStatus string
}

var headerAliases = map[string]string{
	"employee_id":       "employee_id",
	"employee_no":       "employee_id",
	"nik":               "employee_id",
	"id_karyawan":       "employee_id",
	"name":              "name",
	"full_name":         "name",
	"student_name":      "name",
	"email":             "email",
	"email_address":     "email",
	"sbu":               "sbu",
	"department":        "department",
	"dept":              "department",
	"present":           "present",
	"attended":          "present",
	"total":             "total",
	"total_attendance":  "total",
	"sessions":          "total",
	"score":             "score",
	"completion_status": "completion_status",
	"status":            "completion_status",
}

// ParseEnrollments reads roster rows. Rows without an employee id or name are reported as row
// errors; duplicate employee ids keep the first occurrence.
func ParseEnrollments(r io.Reader) ([]EnrollmentRow, []RowError, error) {
	table, err := readTable(r)
	if err != nil {
		return nil, nil, err
	}
	if err := table.require("employee_id", "name"); err != nil {
		return nil, nil, err
	}

	rows := make([]EnrollmentRow, 0, len(table.records))
	rowErrors := make([]RowError, 0)
	seen := make(map[string]int)
	for i, record := range table.records {
		line := i + 2
		row := EnrollmentRow{
			Line:       line,
			EmployeeID: table.value(record, "employee_id"),
			Name:       table.value(record, "name"),
			Email:      strings.ToLower(table.value(record, "email")),
			SBU:        table.value(record, "sbu"),
			Department: table.value(record, "department"),
		}
		if isBlank(record) {
			continue
		}
		switch {
		case row.EmployeeID == "":
			rowErrors = append(rowErrors, RowError{Line: line, Message: "employee_id is required"})
			continue
		case row.Name == "":
			rowErrors = append(rowErrors, RowError{Line: line, Message: "name is required"})
			continue
		}
		if first, ok := seen[row.EmployeeID]; ok {
			rowErrors = append(rowErrors, RowError{Line: line, Message: fmt.Sprintf("duplicate employee_id %s (first seen on line %d)", row.EmployeeID, first)})
			continue
		}
		seen[row.EmployeeID] = line
		rows = append(rows, row)
	}
	return rows, rowErrors, nil
}

// ParseAttendance reads attendance and score rows. Each row must identify the participant by
// employee id or email.
func ParseAttendance(r io.Reader) ([]AttendanceRow, []RowError, error) {
	table, err := readTable(r)
	if err != nil {
		return nil, nil, err
	}
	if !table.has("employee_id") && !table.has("email") {
		return nil, nil, fmt.Errorf("missing column: employee_id or email")
	}

	rows := make([]AttendanceRow, 0, len(table.records))
	rowErrors := make([]RowError, 0)
	for i, record := range table.records {
		line := i + 2
		if isBlank(record) {
			continue
		}
		row := AttendanceRow{
			Line:             line,
			EmployeeID:       table.value(record, "employee_id"),
			Email:            strings.ToLower(table.value(record, "email")),
			CompletionStatus: table.value(record, "completion_status"),
		}
		if row.EmployeeID == "" && row.Email == "" {
			rowErrors = append(rowErrors, RowError{Line: line, Message: "employee_id or email is required"})
			continue
		}

		var msg string
		if row.Present, msg = parseCount(table.value(record, "present"), "present"); msg != "" {
			rowErrors = append(rowErrors, RowError{Line: line, Message: msg})
			continue
		}
		if row.Total, msg = parseCount(table.value(record, "total"), "total"); msg != "" {
			rowErrors = append(rowErrors, RowError{Line: line, Message: msg})
			continue
		}
		if row.Present != nil && row.Total != nil && *row.Present > *row.Total {
			rowErrors = append(rowErrors, RowError{Line: line, Message: "present exceeds total"})
			continue
		}
		if raw := table.value(record, "score"); raw != "" {
			score, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
			if err != nil || score < 0 || score > 100 {
				rowErrors = append(rowErrors, RowError{Line: line, Message: "score must be a number between 0 and 100"})
				continue
			}
			row.Score = &score
		}
		rows = append(rows, row)
	}
	return rows, rowErrors, nil
}

type table struct {
	columns map[string]int
	records [][]string
}

func readTable(r io.Reader) (*table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comma = detectDelimiter(data)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	columns := make(map[string]int)
	for idx, raw := range records[0] {
		key := normalizeHeader(raw)
		if canonical, ok := headerAliases[key]; ok {
			if _, exists := columns[canonical]; !exists {
				columns[canonical] = idx
			}
		}
	}
	return &table{columns: columns, records: records[1:]}, nil
}

func (t *table) has(column string) bool {
	_, ok := t.columns[column]
	return ok
}

func (t *table) require(columns ...string) error {
	missing := make([]string, 0)
	for _, column := range columns {
		if !t.has(column) {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing column: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (t *table) value(record []string, column string) string {
	idx, ok := t.columns[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// detectDelimiter picks semicolon when the header uses it; spreadsheet exports in
// comma-decimal locales do.
func detectDelimiter(data []byte) rune {
	header := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		header = data[:idx]
	}
	if bytes.Count(header, []byte{';'}) > bytes.Count(header, []byte{','}) {
		return ';'
	}
	return ','
}

func normalizeHeader(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_", ".", "").Replace(key)
	return key
}

func parseCount(raw, field string) (*int, string) {
	if raw == "" {
		return nil, ""
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return nil, field + " must be a non-negative integer"
	}
	return &value, ""
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
