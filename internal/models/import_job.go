package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ImportKind selects the row format of an uploaded file.
type ImportKind string

// Supported import kinds.
const (
	ImportKindEnrollments ImportKind = "enrollments"
	ImportKindAttendance  ImportKind = "attendance"
)

// ImportStatus tracks processing of an uploaded file.
type ImportStatus string

// Import job statuses.
const (
	ImportStatusQueued     ImportStatus = "QUEUED"
	ImportStatusProcessing ImportStatus = "PROCESSING"
	ImportStatusFinished   ImportStatus = "FINISHED"
	ImportStatusFailed     ImportStatus = "FAILED"
)

// ImportRowError reports a rejected row.
type ImportRowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportResult summarises a finished import.
type ImportResult struct {
	TotalRows int              `json:"total_rows"`
	Created   int              `json:"created"`
	Updated   int              `json:"updated"`
	Skipped   int              `json:"skipped"`
	Errors    []ImportRowError `json:"errors"`
}

// Value implements driver.Valuer.
func (r ImportResult) Value() (driver.Value, error) {
	if r.Errors == nil {
		r.Errors = []ImportRowError{}
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *ImportResult) Scan(src interface{}) error {
	return scanJSON(src, r)
}

// ImportJob is a queued bulk upload.
type ImportJob struct {
	ID           string        `db:"id" json:"id"`
	CourseID     string        `db:"course_id" json:"course_id"`
	Kind         ImportKind    `db:"kind" json:"kind"`
	FilePath     string        `db:"file_path" json:"-"`
	OriginalName string        `db:"original_name" json:"original_name"`
	Status       ImportStatus  `db:"status" json:"status"`
	Result       *ImportResult `db:"result" json:"result,omitempty"`
	ErrorMessage *string       `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string        `db:"created_by" json:"created_by"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time    `db:"finished_at" json:"finished_at,omitempty"`
}
