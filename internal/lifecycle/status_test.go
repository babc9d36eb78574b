package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/lnd-admin-api/internal/models"
)

var today = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

func day(offset int) time.Time {
	return time.Date(2024, time.March, 15+offset, 0, 0, 0, 0, time.UTC)
}

func TestCourseStatus(t *testing.T) {
	tests := []struct {
		name   string
		status models.CourseStatus
		want   DisplayStatus
	}{
		{name: "completed", status: models.CourseStatusCompleted, want: StatusCompleted},
		{name: "draft shows as planning", status: models.CourseStatusDraft, want: StatusPlanning},
		{name: "ongoing", status: models.CourseStatusOngoing, want: StatusOngoing},
		{name: "unknown falls back to planning", status: "archived", want: StatusPlanning},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			course := &models.Course{Status: tc.status, StartDate: day(1)}
			assert.Equal(t, tc.want, CourseStatus(course))
		})
	}
}

func TestCourseStatusIsDeterministicForFixedDay(t *testing.T) {
	courses := []models.Course{
		{Status: models.CourseStatusDraft, StartDate: day(3)},
		{Status: models.CourseStatusOngoing, StartDate: day(1)},
		{Status: models.CourseStatusOngoing, StartDate: day(-1)},
		{Status: models.CourseStatusCompleted, StartDate: day(-30)},
		{Status: models.CourseStatusOngoing},
	}
	for i := range courses {
		first := Phase(&courses[i], today)
		for n := 0; n < 5; n++ {
			assert.Equal(t, first, Phase(&courses[i], today))
			assert.Equal(t, CourseStatus(&courses[i]), CourseStatus(&courses[i]))
		}
	}
}

func TestPhaseSeparatesUpcomingFromActiveOngoing(t *testing.T) {
	tomorrow := &models.Course{Status: models.CourseStatusOngoing, StartDate: day(1)}
	yesterday := &models.Course{Status: models.CourseStatusOngoing, StartDate: day(-1)}

	assert.True(t, IsUpcoming(tomorrow, today))
	assert.Equal(t, StatusUpcoming, Phase(tomorrow, today))
	assert.Equal(t, StatusOngoing, CourseStatus(tomorrow))

	assert.False(t, IsUpcoming(yesterday, today))
	assert.Equal(t, StatusOngoing, Phase(yesterday, today))
}

func TestIsUpcomingEdges(t *testing.T) {
	tests := []struct {
		name   string
		course models.Course
		want   bool
	}{
		{name: "draft starting later", course: models.Course{Status: models.CourseStatusDraft, StartDate: day(7)}, want: true},
		{name: "starts today", course: models.Course{Status: models.CourseStatusOngoing, StartDate: day(0)}, want: false},
		{name: "missing start date", course: models.Course{Status: models.CourseStatusOngoing}, want: false},
		{name: "completed never upcoming", course: models.Course{Status: models.CourseStatusCompleted, StartDate: day(7)}, want: false},
		{
			name: "late evening start in another zone compares by day",
			course: models.Course{
				Status:    models.CourseStatusOngoing,
				StartDate: time.Date(2024, time.March, 15, 23, 0, 0, 0, time.FixedZone("WIB", 7*3600)),
			},
			want: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsUpcoming(&tc.course, today))
		})
	}
}

func TestParsePhase(t *testing.T) {
	phase, ok := ParsePhase(" Upcoming ")
	assert.True(t, ok)
	assert.Equal(t, StatusUpcoming, phase)

	_, ok = ParsePhase("draft")
	assert.False(t, ok)

	assert.Equal(t, []models.CourseStatus{models.CourseStatusDraft, models.CourseStatusOngoing}, StoredStatusesFor(StatusUpcoming))
	assert.Equal(t, []models.CourseStatus{models.CourseStatusCompleted}, StoredStatusesFor(StatusCompleted))
}
