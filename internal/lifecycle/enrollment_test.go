package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lnd-admin-api/internal/models"
)

func TestEligibility(t *testing.T) {
	tests := []struct {
		name string
		in   EligibilityInput
		want models.EligibilityStatus
	}{
		{"eligible", EligibilityInput{AnnualLimit: 3, ApprovedThisYear: 2}, models.EligibilityEligible},
		{"missing prerequisite wins", EligibilityInput{PrerequisiteRequired: true, AlreadyCompleted: true}, models.EligibilityMissingPrerequisite},
		{"prerequisite done", EligibilityInput{PrerequisiteRequired: true, PrerequisiteCompleted: true}, models.EligibilityEligible},
		{"already taken", EligibilityInput{AlreadyCompleted: true, AnnualLimit: 1, ApprovedThisYear: 5}, models.EligibilityAlreadyTaken},
		{"annual limit reached", EligibilityInput{AnnualLimit: 3, ApprovedThisYear: 3}, models.EligibilityAnnualLimit},
		{"annual limit disabled", EligibilityInput{AnnualLimit: 0, ApprovedThisYear: 30}, models.EligibilityEligible},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Eligibility(tc.in))
		})
	}
}

func TestAttendancePercentage(t *testing.T) {
	intPtr := func(v int) *int { return &v }

	pct := AttendancePercentage(intPtr(2), intPtr(3))
	require.NotNil(t, pct)
	assert.Equal(t, 66.67, *pct)

	assert.Nil(t, AttendancePercentage(intPtr(2), intPtr(0)))
	assert.Nil(t, AttendancePercentage(nil, intPtr(3)))
	assert.Nil(t, AttendancePercentage(intPtr(1), nil))
}
