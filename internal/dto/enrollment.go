package dto

// CreateEnrollmentRequest enrolls a student manually, identified by id or employee id.
type CreateEnrollmentRequest struct {
	CourseID   string `json:"course_id" validate:"required"`
	StudentID  string `json:"student_id" validate:"max=64"`
	EmployeeID string `json:"employee_id" validate:"omitempty,max=50"`
}

// EnrollmentStatusRequest carries the optional reason of a status change. Withdrawals require it.
type EnrollmentStatusRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// EnrollmentResultRequest records attendance and score.
type EnrollmentResultRequest struct {
	Score            *float64 `json:"score" validate:"omitempty,gte=0,lte=100"`
	Present          *int     `json:"present" validate:"omitempty,gte=0"`
	TotalAttendance  *int     `json:"total_attendance" validate:"omitempty,gte=0"`
	CompletionStatus *string  `json:"completion_status" validate:"omitempty,max=50"`
}

// EnrollmentListQuery captures list filters.
type EnrollmentListQuery struct {
	CourseID       string
	ApprovalStatus string
	Search         string
	Page           int
	Limit          int
}

// CreateStudentRequest registers an employee in the student directory.
type CreateStudentRequest struct {
	EmployeeID string `json:"employee_id" validate:"required,max=50"`
	Name       string `json:"name" validate:"required,max=200"`
	Email      string `json:"email" validate:"omitempty,email"`
	SBU        string `json:"sbu" validate:"max=100"`
	Department string `json:"department" validate:"max=100"`
}
