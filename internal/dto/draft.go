package dto

import (
	"github.com/noah-isme/lnd-admin-api/internal/lifecycle"
	"github.com/noah-isme/lnd-admin-api/internal/models"
)

// DraftResponse is the current overlay of a draft course with its version for If-Match.
type DraftResponse struct {
	CourseID string                    `json:"course_id"`
	Draft    models.DraftOverlay       `json:"draft"`
	Mentors  []models.MentorAssignment `json:"mentors"`
	Costs    lifecycle.CostSummary     `json:"costs"`
	Version  int                       `json:"version"`
}

// ApproveCourseRequest optionally names the approver; the caller is used otherwise.
type ApproveCourseRequest struct {
	ApprovedBy string `json:"approved_by" validate:"max=200"`
}

// AssignMentorRequest adds or replaces a mentor on a course.
type AssignMentorRequest struct {
	MentorID    string        `json:"mentor_id" validate:"required"`
	HoursTaught models.Amount `json:"hours_taught"`
	AmountPaid  models.Amount `json:"amount_paid"`
}

// UpdateMentorAssignmentRequest edits hours or amount of an existing assignment.
type UpdateMentorAssignmentRequest struct {
	HoursTaught *models.Amount `json:"hours_taught"`
	AmountPaid  *models.Amount `json:"amount_paid"`
}

// UpdateCostsRequest sets food and other costs. Omitted fields are left unchanged.
type UpdateCostsRequest struct {
	FoodCost  *models.Amount `json:"food_cost"`
	OtherCost *models.Amount `json:"other_cost"`
}

// MentorMutationResponse returns the affected course costs after a mentor or cost change.
type MentorMutationResponse struct {
	CourseID string                    `json:"course_id"`
	Status   models.CourseStatus       `json:"status"`
	Mentor   *models.MentorAssignment  `json:"mentor,omitempty"`
	Mentors  []models.MentorAssignment `json:"mentors"`
	Costs    lifecycle.CostSummary     `json:"costs"`
}

// CreateMentorRequest registers a mentor in the directory.
type CreateMentorRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	Email      string `json:"email" validate:"omitempty,email"`
	IsInternal *bool  `json:"is_internal"`
}
