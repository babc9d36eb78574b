package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lnd-admin-api/internal/models"
)

func TestUpsertAssignmentReplacesSameMentor(t *testing.T) {
	overlay := EmptyOverlay()
	overlay, replaced := UpsertAssignment(overlay, models.MentorAssignment{MentorID: "m1", HoursTaught: amount(2), AmountPaid: amount(100)})
	assert.False(t, replaced)
	overlay, _ = UpsertAssignment(overlay, models.MentorAssignment{MentorID: "m2", AmountPaid: amount(40)})
	overlay, replaced = UpsertAssignment(overlay, models.MentorAssignment{MentorID: "m1", HoursTaught: amount(3), AmountPaid: amount(250)})
	assert.True(t, replaced)

	require.Len(t, overlay.MentorAssignments, 2)
	assert.Equal(t, "m1", overlay.MentorAssignments[0].MentorID)
	assertAmount(t, "250.00", overlay.MentorAssignments[0].AmountPaid)
	assertAmount(t, "3.00", overlay.MentorAssignments[0].HoursTaught)
	assert.Equal(t, "m2", overlay.MentorAssignments[1].MentorID)
}

func TestUpsertAssignmentDoesNotMutateInput(t *testing.T) {
	original := models.DraftOverlay{MentorAssignments: []models.MentorAssignment{{MentorID: "m1", AmountPaid: amount(1)}}}
	_, _ = UpsertAssignment(original, models.MentorAssignment{MentorID: "m1", AmountPaid: amount(9), ID: "draft-m1", IsDraft: true})
	assertAmount(t, "1.00", original.MentorAssignments[0].AmountPaid)
}

func TestUpsertAssignmentStripsDisplayFields(t *testing.T) {
	overlay, _ := UpsertAssignment(EmptyOverlay(), models.MentorAssignment{ID: "draft-m1", CourseID: "c1", MentorID: "m1", IsDraft: true})
	entry := overlay.MentorAssignments[0]
	assert.Empty(t, entry.ID)
	assert.Empty(t, entry.CourseID)
	assert.False(t, entry.IsDraft)
}

func TestRemoveBySyntheticIDResolvesMentor(t *testing.T) {
	mentorID := "3f2b6c1e-9d4a-4e1b-8c55-0a7e2d9b1f00"
	overlay := models.DraftOverlay{MentorAssignments: []models.MentorAssignment{
		{MentorID: mentorID, AmountPaid: amount(100)},
		{MentorID: "m2", AmountPaid: amount(50)},
	}}

	resolved, ok := ResolveDraftRef(overlay, "draft-"+mentorID)
	require.True(t, ok)
	assert.Equal(t, mentorID, resolved)

	overlay, removed := RemoveAssignment(overlay, resolved)
	assert.True(t, removed)
	require.Len(t, overlay.MentorAssignments, 1)
	assert.Equal(t, "m2", overlay.MentorAssignments[0].MentorID)
}

func TestResolveDraftRef(t *testing.T) {
	overlay := models.DraftOverlay{MentorAssignments: []models.MentorAssignment{
		{MentorID: "a-1"},
		{MentorID: "b"},
		{MentorID: "b"},
	}}

	tests := []struct {
		ref  string
		want string
		ok   bool
	}{
		{ref: "a-1", want: "a-1", ok: true},
		{ref: "draft-a-1", want: "a-1", ok: true},
		{ref: "draft-b", want: "b", ok: true},
		{ref: "draft-b-2", want: "b", ok: true},
		{ref: "draft-a-1-0", want: "a-1", ok: true},
		{ref: "draft-zzz", ok: false},
		{ref: "row-uuid", ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.ref, func(t *testing.T) {
			got, ok := ResolveDraftRef(overlay, tc.ref)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDisplayIDsRoundTripThroughResolve(t *testing.T) {
	overlay := &models.DraftOverlay{MentorAssignments: []models.MentorAssignment{
		{MentorID: "x-1"}, {MentorID: "y"}, {MentorID: "y"},
	}}
	course := &models.Course{Status: models.CourseStatusDraft, Draft: overlay}
	for _, m := range DisplayMentors(course) {
		resolved, ok := ResolveDraftRef(*overlay, m.ID)
		require.True(t, ok, m.ID)
		assert.Equal(t, m.MentorID, resolved)
	}
}

func TestNormalizeCollapsesDuplicates(t *testing.T) {
	overlay := models.DraftOverlay{
		MentorAssignments: []models.MentorAssignment{
			{MentorID: "m1", AmountPaid: amount(10)},
			{MentorID: ""},
			{MentorID: "m2", AmountPaid: amount(20)},
			{MentorID: "m1", AmountPaid: amount(30), IsDraft: true, ID: "draft-m1-3"},
		},
		FoodCost: amountPtr(5),
	}
	normalized := Normalize(overlay)
	require.Len(t, normalized.MentorAssignments, 2)
	assert.Equal(t, "m1", normalized.MentorAssignments[0].MentorID)
	assertAmount(t, "30.00", normalized.MentorAssignments[0].AmountPaid)
	assert.Empty(t, normalized.MentorAssignments[0].ID)
	assert.Equal(t, "m2", normalized.MentorAssignments[1].MentorID)
	require.NotNil(t, normalized.FoodCost)
	assertAmount(t, "5.00", *normalized.FoodCost)
	assert.Nil(t, normalized.OtherCost)
}

func TestSetCosts(t *testing.T) {
	overlay := SetCosts(EmptyOverlay(), amountPtr(40), nil)
	require.NotNil(t, overlay.FoodCost)
	assert.Nil(t, overlay.OtherCost)

	overlay = SetCosts(overlay, nil, amountPtr(10))
	assertAmount(t, "40.00", *overlay.FoodCost)
	assertAmount(t, "10.00", *overlay.OtherCost)
}
