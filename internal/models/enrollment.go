package models

import (
	"strings"
	"time"
)

// ApprovalStatus is the admin decision on an enrollment.
type ApprovalStatus string

// Approval statuses.
const (
	ApprovalPending   ApprovalStatus = "Pending"
	ApprovalApproved  ApprovalStatus = "Approved"
	ApprovalRejected  ApprovalStatus = "Rejected"
	ApprovalWithdrawn ApprovalStatus = "Withdrawn"
)

// EligibilityStatus is computed once when the enrollment is requested.
type EligibilityStatus string

// Eligibility outcomes.
const (
	EligibilityEligible            EligibilityStatus = "Eligible"
	EligibilityMissingPrerequisite EligibilityStatus = "Ineligible (Missing Prerequisite)"
	EligibilityAlreadyTaken        EligibilityStatus = "Ineligible (Already Taken)"
	EligibilityAnnualLimit         EligibilityStatus = "Ineligible (Annual Limit)"
)

// IsIneligible reports any of the ineligible variants, including unknown future ones.
func (e EligibilityStatus) IsIneligible() bool {
	return strings.HasPrefix(string(e), "Ineligible")
}

// Completion statuses recorded with results.
const (
	CompletionCompleted  = "Completed"
	CompletionFailed     = "Failed"
	CompletionInProgress = "In Progress"
)

// Enrollment is a student's registration in a course with denormalized student fields.
type Enrollment struct {
	ID                   string            `db:"id" json:"id"`
	CourseID             string            `db:"course_id" json:"course_id"`
	StudentID            string            `db:"student_id" json:"student_id"`
	StudentName          string            `db:"student_name" json:"student_name"`
	StudentEmail         string            `db:"student_email" json:"student_email"`
	StudentEmployeeID    string            `db:"student_employee_id" json:"student_employee_id"`
	StudentSBU           string            `db:"student_sbu" json:"student_sbu"`
	StudentDepartment    string            `db:"student_department" json:"student_department"`
	ApprovalStatus       ApprovalStatus    `db:"approval_status" json:"approval_status"`
	EligibilityStatus    EligibilityStatus `db:"eligibility_status" json:"eligibility_status"`
	CompletionStatus     *string           `db:"completion_status" json:"completion_status,omitempty"`
	Score                *float64          `db:"score" json:"score"`
	Present              *int              `db:"present" json:"present"`
	TotalAttendance      *int              `db:"total_attendance" json:"total_attendance"`
	AttendancePercentage *float64          `db:"attendance_percentage" json:"attendance_percentage"`
	StatusReason         *string           `db:"status_reason" json:"status_reason,omitempty"`
	StatusChangedBy      *string           `db:"status_changed_by" json:"status_changed_by,omitempty"`
	StatusChangedAt      *time.Time        `db:"status_changed_at" json:"status_changed_at,omitempty"`
	EnrolledAt           time.Time         `db:"enrolled_at" json:"enrolled_at"`
}

// DisplayStatus prefers the completion status when recorded.
func (e *Enrollment) DisplayStatus() string {
	if e.CompletionStatus != nil && *e.CompletionStatus != "" {
		return *e.CompletionStatus
	}
	return string(e.ApprovalStatus)
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	CourseID         string
	StudentID        string
	ApprovalStatuses []ApprovalStatus
	Search           string
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}

// EnrollmentStatusChange carries the audit fields written with an approval transition.
type EnrollmentStatusChange struct {
	ID        string
	From      ApprovalStatus
	To        ApprovalStatus
	Reason    *string
	ChangedBy string
	ChangedAt time.Time
}

// EnrollmentResult is a score and attendance update.
type EnrollmentResult struct {
	CompletionStatus     *string
	Score                *float64
	Present              *int
	TotalAttendance      *int
	AttendancePercentage *float64
}
