package lifecycle

import (
	"math"

	"github.com/noah-isme/lnd-admin-api/internal/models"
)

// EligibilityInput is what the enrollment service knows about a student when a request is made.
type EligibilityInput struct {
	PrerequisiteRequired  bool
	PrerequisiteCompleted bool
	AlreadyCompleted      bool
	ApprovedThisYear      int
	AnnualLimit           int
}

// Eligibility evaluates the rules in order: prerequisite, repeat attendance, annual limit. A
// non-positive annual limit disables that rule.
func Eligibility(in EligibilityInput) models.EligibilityStatus {
	switch {
	case in.PrerequisiteRequired && !in.PrerequisiteCompleted:
		return models.EligibilityMissingPrerequisite
	case in.AlreadyCompleted:
		return models.EligibilityAlreadyTaken
	case in.AnnualLimit > 0 && in.ApprovedThisYear >= in.AnnualLimit:
		return models.EligibilityAnnualLimit
	default:
		return models.EligibilityEligible
	}
}

// AttendancePercentage is present/total as a percentage rounded to two decimals. It is nil
// when either side is missing or the total is zero.
func AttendancePercentage(present, total *int) *float64 {
	if present == nil || total == nil || *total <= 0 {
		return nil
	}
	pct := math.Round(float64(*present)/float64(*total)*10000) / 100
	return &pct
}
