package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CourseStatus is the stored lifecycle state of a course.
type CourseStatus string

// Stored course statuses.
const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusOngoing   CourseStatus = "ongoing"
	CourseStatusCompleted CourseStatus = "completed"
)

// ClassSession is one weekly meeting slot.
type ClassSession struct {
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ClassSchedule is stored as a JSONB array.
type ClassSchedule []ClassSession

// Value implements driver.Valuer.
func (s ClassSchedule) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *ClassSchedule) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// Course is the persisted course record plus related collections loaded on demand.
type Course struct {
	ID                   string        `db:"id" json:"id"`
	Name                 string        `db:"name" json:"name"`
	BatchCode            string        `db:"batch_code" json:"batch_code"`
	Description          string        `db:"description" json:"description"`
	StartDate            time.Time     `db:"start_date" json:"start_date"`
	EndDate              time.Time     `db:"end_date" json:"end_date"`
	ClassSchedule        ClassSchedule `db:"class_schedule" json:"class_schedule"`
	SeatLimit            int           `db:"seat_limit" json:"seat_limit"`
	CurrentEnrolled      int           `db:"current_enrolled" json:"current_enrolled"`
	Status               CourseStatus  `db:"status" json:"status"`
	FoodCost             Amount        `db:"food_cost" json:"food_cost"`
	OtherCost            Amount        `db:"other_cost" json:"other_cost"`
	PrerequisiteCourseID *string       `db:"prerequisite_course_id" json:"prerequisite_course_id,omitempty"`
	ApprovedBy           *string       `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt           *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	CreatedBy            string        `db:"created_by" json:"created_by"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`

	Draft    *DraftOverlay      `db:"-" json:"draft,omitempty"`
	Mentors  []MentorAssignment `db:"-" json:"mentors,omitempty"`
	Comments []Comment          `db:"-" json:"comments,omitempty"`
}

// IsDraft reports whether the course still carries a mutable overlay.
func (c *Course) IsDraft() bool {
	return c.Status == CourseStatusDraft
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	Statuses  []CourseStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// MentorRef is the denormalized mentor shown next to an assignment.
type MentorRef struct {
	Name       string `db:"name" json:"name"`
	IsInternal bool   `db:"is_internal" json:"is_internal"`
}

// MentorAssignment links a mentor to a course with the hours taught and amount paid. Draft
// entries have no durable row id and are flagged with IsDraft when displayed.
type MentorAssignment struct {
	ID          string    `db:"id" json:"id,omitempty"`
	CourseID    string    `db:"course_id" json:"course_id,omitempty"`
	MentorID    string    `db:"mentor_id" json:"mentor_id"`
	HoursTaught Amount    `db:"hours_taught" json:"hours_taught"`
	AmountPaid  Amount    `db:"amount_paid" json:"amount_paid"`
	Mentor      MentorRef `db:"mentor" json:"mentor"`
	IsDraft     bool      `db:"-" json:"is_draft,omitempty"`
}

// DraftOverlay is the shadow copy of mentor and cost data edited while a course is in draft.
// Nil cost pointers mean the overlay has no value and the official field applies.
type DraftOverlay struct {
	MentorAssignments []MentorAssignment `json:"mentor_assignments"`
	FoodCost          *Amount            `json:"food_cost,omitempty"`
	OtherCost         *Amount            `json:"other_cost,omitempty"`
}

// Value implements driver.Valuer.
func (d DraftOverlay) Value() (driver.Value, error) {
	if d.MentorAssignments == nil {
		d.MentorAssignments = []MentorAssignment{}
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *DraftOverlay) Scan(src interface{}) error {
	return scanJSON(src, d)
}

// CourseDraft is the persisted overlay row. Version increments on every write and backs the
// ETag handed to clients.
type CourseDraft struct {
	CourseID  string       `db:"course_id" json:"course_id"`
	Payload   DraftOverlay `db:"payload" json:"draft"`
	Version   int          `db:"version" json:"version"`
	UpdatedBy string       `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// Comment is an append-only note on a course.
type Comment struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json source %T", src)
	}
}
