// Package lifecycle holds the pure rules of the course lifecycle: display status, enrollment
// sections, draft-aware cost resolution and the allowed state transitions. Nothing here touches
// storage; callers pass records and, where dates matter, the current time.
package lifecycle

import (
	"strings"
	"time"

	"github.com/noah-isme/lnd-admin-api/internal/models"
)

// DisplayStatus is the label shown for a course. It is derived, never stored.
type DisplayStatus string

// Display statuses.
const (
	StatusPlanning  DisplayStatus = "planning"
	StatusUpcoming  DisplayStatus = "upcoming"
	StatusOngoing   DisplayStatus = "ongoing"
	StatusCompleted DisplayStatus = "completed"
)

// Clock returns the current time.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time {
	return time.Now()
}

// CourseStatus maps the stored status to its display label.
func CourseStatus(course *models.Course) DisplayStatus {
	switch course.Status {
	case models.CourseStatusCompleted:
		return StatusCompleted
	case models.CourseStatusDraft:
		return StatusPlanning
	case models.CourseStatusOngoing:
		return StatusOngoing
	default:
		return StatusPlanning
	}
}

// IsUpcoming reports whether a planning or ongoing course has not started yet. Dates are
// compared by calendar day; a missing start date counts as already started.
func IsUpcoming(course *models.Course, today time.Time) bool {
	switch CourseStatus(course) {
	case StatusPlanning, StatusOngoing:
	default:
		return false
	}
	if course.StartDate.IsZero() {
		return false
	}
	return dateOnly(course.StartDate).After(dateOnly(today))
}

// Phase is the status used by every list filter and dashboard counter. Upcoming wins over
// planning and ongoing.
func Phase(course *models.Course, today time.Time) DisplayStatus {
	if IsUpcoming(course, today) {
		return StatusUpcoming
	}
	return CourseStatus(course)
}

// ParsePhase validates a phase filter value.
func ParsePhase(raw string) (DisplayStatus, bool) {
	switch phase := DisplayStatus(strings.ToLower(strings.TrimSpace(raw))); phase {
	case StatusPlanning, StatusUpcoming, StatusOngoing, StatusCompleted:
		return phase, true
	default:
		return "", false
	}
}

// StoredStatusesFor lists the stored statuses that can produce the given phase, letting
// repositories prefilter before Phase is applied.
func StoredStatusesFor(phase DisplayStatus) []models.CourseStatus {
	switch phase {
	case StatusCompleted:
		return []models.CourseStatus{models.CourseStatusCompleted}
	case StatusOngoing:
		return []models.CourseStatus{models.CourseStatusOngoing}
	case StatusPlanning:
		return []models.CourseStatus{models.CourseStatusDraft}
	default:
		return []models.CourseStatus{models.CourseStatusDraft, models.CourseStatusOngoing}
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
