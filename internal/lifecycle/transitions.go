package lifecycle

import "github.com/noah-isme/lnd-admin-api/internal/models"

var courseTransitions = map[models.CourseStatus]models.CourseStatus{
	models.CourseStatusDraft:   models.CourseStatusOngoing,
	models.CourseStatusOngoing: models.CourseStatusCompleted,
}

// CanTransitionCourse reports whether a course may move from one stored status to another.
// Completed is terminal.
func CanTransitionCourse(from, to models.CourseStatus) bool {
	next, ok := courseTransitions[from]
	return ok && next == to
}

// EnrollmentAction is an admin decision applied to an enrollment.
type EnrollmentAction string

// Enrollment actions.
const (
	ActionApprove   EnrollmentAction = "approve"
	ActionReject    EnrollmentAction = "reject"
	ActionWithdraw  EnrollmentAction = "withdraw"
	ActionReapprove EnrollmentAction = "reapprove"
)

type actionRule struct {
	target models.ApprovalStatus
	from   []models.ApprovalStatus
}

var enrollmentActions = map[EnrollmentAction]actionRule{
	ActionApprove:   {target: models.ApprovalApproved, from: []models.ApprovalStatus{models.ApprovalPending}},
	ActionReject:    {target: models.ApprovalRejected, from: []models.ApprovalStatus{models.ApprovalPending}},
	ActionWithdraw:  {target: models.ApprovalWithdrawn, from: []models.ApprovalStatus{models.ApprovalPending, models.ApprovalApproved}},
	ActionReapprove: {target: models.ApprovalApproved, from: []models.ApprovalStatus{models.ApprovalRejected, models.ApprovalWithdrawn}},
}

// ActionTarget returns the status an action moves an enrollment to.
func ActionTarget(action EnrollmentAction) (models.ApprovalStatus, bool) {
	rule, ok := enrollmentActions[action]
	return rule.target, ok
}

// ActionAllowed reports whether the action applies to an enrollment in the given status.
func ActionAllowed(action EnrollmentAction, from models.ApprovalStatus) bool {
	rule, ok := enrollmentActions[action]
	if !ok {
		return false
	}
	for _, status := range rule.from {
		if status == from {
			return true
		}
	}
	return false
}

// CanTransitionApproval reports whether any action moves an enrollment from one status to
// another.
func CanTransitionApproval(from, to models.ApprovalStatus) bool {
	for action, rule := range enrollmentActions {
		if rule.target == to && ActionAllowed(action, from) {
			return true
		}
	}
	return false
}
