package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/lnd-admin-api/internal/lifecycle"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

type courseFinder interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type courseDraftReader interface {
	Get(ctx context.Context, courseID string) (*models.CourseDraft, error)
}

type mentorAssignmentLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.MentorAssignment, error)
}

// CourseReader loads a course together with the mentor and cost data that is authoritative
// for its status: the overlay for draft courses, the official assignments otherwise.
type CourseReader struct {
	courses     courseFinder
	drafts      courseDraftReader
	assignments mentorAssignmentLister
}

// NewCourseReader constructs a CourseReader.
func NewCourseReader(courses courseFinder, drafts courseDraftReader, assignments mentorAssignmentLister) *CourseReader {
	return &CourseReader{courses: courses, drafts: drafts, assignments: assignments}
}

// Load returns the hydrated course and the draft version (0 when no overlay is stored or the
// course is not a draft).
func (r *CourseReader) Load(ctx context.Context, id string) (*models.Course, int, error) {
	course, err := r.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	version, err := r.Hydrate(ctx, course)
	if err != nil {
		return nil, 0, err
	}
	return course, version, nil
}

// Hydrate attaches the overlay or the official mentors to an already loaded course.
func (r *CourseReader) Hydrate(ctx context.Context, course *models.Course) (int, error) {
	if course.IsDraft() {
		draft, err := r.drafts.Get(ctx, course.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				overlay := lifecycle.EmptyOverlay()
				course.Draft = &overlay
				return 0, nil
			}
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course draft")
		}
		overlay := draft.Payload
		course.Draft = &overlay
		return draft.Version, nil
	}
	mentors, err := r.assignments.ListByCourse(ctx, course.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course mentors")
	}
	course.Draft = nil
	course.Mentors = mentors
	return 0, nil
}
