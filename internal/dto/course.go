package dto

import (
	"github.com/noah-isme/lnd-admin-api/internal/lifecycle"
	"github.com/noah-isme/lnd-admin-api/internal/models"
)

// ClassSessionRequest is one weekly slot in a course payload.
type ClassSessionRequest struct {
	Day       string `json:"day" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// CourseRequest is the payload for creating or replacing a course's descriptive fields.
// Status, costs and mentors are managed through the draft and approval endpoints.
type CourseRequest struct {
	Name                 string                `json:"name" validate:"required,max=200"`
	BatchCode            string                `json:"batch_code" validate:"required,max=50"`
	Description          string                `json:"description" validate:"max=5000"`
	StartDate            string                `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate              string                `json:"end_date" validate:"required,datetime=2006-01-02"`
	ClassSchedule        []ClassSessionRequest `json:"class_schedule" validate:"dive"`
	SeatLimit            int                   `json:"seat_limit" validate:"gte=0"`
	PrerequisiteCourseID *string               `json:"prerequisite_course_id" validate:"omitempty,uuid"`
}

// CourseListQuery captures list filters.
type CourseListQuery struct {
	Phase  string
	Status string
	Search string
	Page   int
	Limit  int
}

// CourseListItem is a course row enriched with its derived status and total cost.
type CourseListItem struct {
	models.Course
	DisplayStatus     lifecycle.DisplayStatus `json:"display_status"`
	Phase             lifecycle.DisplayStatus `json:"phase"`
	TotalTrainingCost models.Amount           `json:"total_training_cost"`
}

// CourseDetail is the full course view used by the course page.
type CourseDetail struct {
	Course        *models.Course            `json:"course"`
	DisplayStatus lifecycle.DisplayStatus   `json:"display_status"`
	Phase         lifecycle.DisplayStatus   `json:"phase"`
	Mentors       []models.MentorAssignment `json:"mentors"`
	Costs         lifecycle.CostSummary     `json:"costs"`
	Comments      []models.Comment          `json:"comments"`
	DraftVersion  *int                      `json:"draft_version,omitempty"`
}

// CommentRequest appends a comment to a course.
type CommentRequest struct {
	Comment   string `json:"comment" validate:"required,max=2000"`
	CreatedBy string `json:"created_by" validate:"max=200"`
}
