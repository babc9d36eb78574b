package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/lifecycle"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

type courseCostWriter interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	UpdateCosts(ctx context.Context, id string, food, other *models.Amount) error
}

type mentorAssignmentStore interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.MentorAssignment, error)
	FindByID(ctx context.Context, courseID, id string) (*models.MentorAssignment, error)
	Upsert(ctx context.Context, assignment *models.MentorAssignment) error
	Update(ctx context.Context, courseID, id string, hours, amount *models.Amount) error
	Delete(ctx context.Context, courseID, id string) error
}

// CourseCostServiceParams groups constructor dependencies.
type CourseCostServiceParams struct {
	Courses     courseCostWriter
	Drafts      courseDraftStore
	Assignments mentorAssignmentStore
	Mentors     mentorFinder
	Reader      *CourseReader
	Audit       auditLogger
	Cache       *CacheService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// CourseCostService changes mentor assignments and costs. Draft courses are edited through
// their overlay; approved courses are edited in place.
type CourseCostService struct {
	courses     courseCostWriter
	drafts      courseDraftStore
	assignments mentorAssignmentStore
	mentors     mentorFinder
	reader      *CourseReader
	audit       auditLogger
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseCostService constructs a CourseCostService.
func NewCourseCostService(params CourseCostServiceParams) *CourseCostService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &CourseCostService{
		courses:     params.Courses,
		drafts:      params.Drafts,
		assignments: params.Assignments,
		mentors:     params.Mentors,
		reader:      params.Reader,
		audit:       params.Audit,
		cache:       params.Cache,
		validator:   params.Validator,
		logger:      params.Logger,
	}
}

// AssignMentor adds a mentor to the course or replaces the mentor's existing assignment.
func (s *CourseCostService) AssignMentor(ctx context.Context, courseID string, req dto.AssignMentorRequest, actor *models.JWTClaims) (*dto.MentorMutationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mentor payload")
	}
	if err := validateMentorFigures(&req.HoursTaught, &req.AmountPaid); err != nil {
		return nil, err
	}
	course, err := s.loadMutable(ctx, courseID)
	if err != nil {
		return nil, err
	}

	mentorID := strings.TrimSpace(req.MentorID)
	mentor, err := s.mentorRef(ctx, mentorID)
	if err != nil {
		return nil, err
	}
	assignment := models.MentorAssignment{
		CourseID:    courseID,
		MentorID:    mentorID,
		HoursTaught: req.HoursTaught,
		AmountPaid:  req.AmountPaid,
		Mentor:      mentor,
	}

	var result *models.MentorAssignment
	if course.IsDraft() {
		_, err = s.drafts.Mutate(ctx, courseID, actorName(actor), func(current models.DraftOverlay) (models.DraftOverlay, error) {
			next, _ := lifecycle.UpsertAssignment(current, assignment)
			return next, nil
		})
		if err != nil {
			return nil, translateDraftError(err, "failed to assign mentor")
		}
		draftView := assignment
		draftView.ID = lifecycle.SyntheticID(mentorID, 0, false)
		draftView.IsDraft = true
		result = &draftView
	} else {
		if err := s.assignments.Upsert(ctx, &assignment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign mentor")
		}
		result = &assignment
	}

	s.auditMentorChange(ctx, actor, courseID, "assign", result)
	return s.respond(ctx, courseID, result)
}

// UpdateMentor edits hours or amount of an assignment. ref is the official assignment id for
// approved courses and a mentor id or synthetic draft id for draft courses.
func (s *CourseCostService) UpdateMentor(ctx context.Context, courseID, ref string, req dto.UpdateMentorAssignmentRequest, actor *models.JWTClaims) (*dto.MentorMutationResponse, error) {
	if req.HoursTaught == nil && req.AmountPaid == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "hours_taught or amount_paid is required")
	}
	if err := validateMentorFigures(req.HoursTaught, req.AmountPaid); err != nil {
		return nil, err
	}
	course, err := s.loadMutable(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var result *models.MentorAssignment
	if course.IsDraft() {
		var updated models.MentorAssignment
		_, err = s.drafts.Mutate(ctx, courseID, actorName(actor), func(current models.DraftOverlay) (models.DraftOverlay, error) {
			mentorID, ok := lifecycle.ResolveDraftRef(current, ref)
			if !ok {
				return current, appErrors.Clone(appErrors.ErrNotFound, "mentor is not assigned to this course")
			}
			existing, _ := lifecycle.FindAssignment(current, mentorID)
			if req.HoursTaught != nil {
				existing.HoursTaught = *req.HoursTaught
			}
			if req.AmountPaid != nil {
				existing.AmountPaid = *req.AmountPaid
			}
			updated = existing
			next, _ := lifecycle.UpsertAssignment(current, existing)
			return next, nil
		})
		if err != nil {
			return nil, translateDraftError(err, "failed to update mentor")
		}
		updated.CourseID = courseID
		updated.ID = lifecycle.SyntheticID(updated.MentorID, 0, false)
		updated.IsDraft = true
		result = &updated
	} else {
		if err := s.assignments.Update(ctx, courseID, ref, req.HoursTaught, req.AmountPaid); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor assignment not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mentor")
		}
		result, err = s.assignments.FindByID(ctx, courseID, ref)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload mentor assignment")
		}
	}

	s.auditMentorChange(ctx, actor, courseID, "update", result)
	return s.respond(ctx, courseID, result)
}

// RemoveMentor removes an assignment. For draft courses ref may be the synthetic id shown in
// the mentor list.
func (s *CourseCostService) RemoveMentor(ctx context.Context, courseID, ref string, actor *models.JWTClaims) (*dto.MentorMutationResponse, error) {
	course, err := s.loadMutable(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if course.IsDraft() {
		var removedID string
		_, err = s.drafts.Mutate(ctx, courseID, actorName(actor), func(current models.DraftOverlay) (models.DraftOverlay, error) {
			mentorID, ok := lifecycle.ResolveDraftRef(current, ref)
			if !ok {
				return current, appErrors.Clone(appErrors.ErrNotFound, "mentor is not assigned to this course")
			}
			removedID = mentorID
			next, _ := lifecycle.RemoveAssignment(current, mentorID)
			return next, nil
		})
		if err != nil {
			return nil, translateDraftError(err, "failed to remove mentor")
		}
		s.auditMentorChange(ctx, actor, courseID, "remove", map[string]string{"mentor_id": removedID})
		return s.respond(ctx, courseID, nil)
	}

	if err := s.assignments.Delete(ctx, courseID, ref); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove mentor")
	}
	s.auditMentorChange(ctx, actor, courseID, "remove", map[string]string{"assignment_id": ref})
	return s.respond(ctx, courseID, nil)
}

// UpdateCosts sets food and other costs. Omitted fields keep their value.
func (s *CourseCostService) UpdateCosts(ctx context.Context, courseID string, req dto.UpdateCostsRequest, actor *models.JWTClaims) (*dto.MentorMutationResponse, error) {
	if req.FoodCost == nil && req.OtherCost == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "food_cost or other_cost is required")
	}
	if err := validateCostFigures(req.FoodCost, req.OtherCost); err != nil {
		return nil, err
	}
	course, err := s.loadMutable(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if course.IsDraft() {
		_, err = s.drafts.Mutate(ctx, courseID, actorName(actor), func(current models.DraftOverlay) (models.DraftOverlay, error) {
			return lifecycle.SetCosts(current, req.FoodCost, req.OtherCost), nil
		})
		if err != nil {
			return nil, translateDraftError(err, "failed to update costs")
		}
	} else if err := s.courses.UpdateCosts(ctx, courseID, req.FoodCost, req.OtherCost); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update costs")
	}

	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action: models.AuditActionCostChange, Resource: "course", ResourceID: courseID,
		Old: map[string]models.Amount{"food_cost": course.FoodCost, "other_cost": course.OtherCost},
		New: req,
	})
	return s.respond(ctx, courseID, nil)
}

// loadMutable returns the course unless it is completed.
func (s *CourseCostService) loadMutable(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Status == models.CourseStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "completed courses cannot be changed")
	}
	return course, nil
}

// mentorRef looks up the mentor's display data. A mentor that does not exist is rejected; other
// lookup failures fall back to the unknown name and do not block the assignment.
func (s *CourseCostService) mentorRef(ctx context.Context, mentorID string) (models.MentorRef, error) {
	ref := models.MentorRef{Name: models.UnknownMentorName}
	if s.mentors == nil {
		return ref, nil
	}
	mentor, err := s.mentors.FindByID(ctx, mentorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ref, appErrors.Clone(appErrors.ErrNotFound, "mentor not found")
		}
		s.logger.Warn("mentor lookup failed", zap.String("mentor_id", mentorID), zap.Error(err))
		return ref, nil
	}
	return models.MentorRef{Name: mentor.Name, IsInternal: mentor.IsInternal}, nil
}

func (s *CourseCostService) auditMentorChange(ctx context.Context, actor *models.JWTClaims, courseID, op string, value interface{}) {
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action: models.AuditActionMentorChange, Resource: "course", ResourceID: courseID,
		New: map[string]interface{}{"op": op, "value": value},
	})
}

func (s *CourseCostService) respond(ctx context.Context, courseID string, mentor *models.MentorAssignment) (*dto.MentorMutationResponse, error) {
	s.cache.ForgetCourse(ctx, courseID)
	course, _, err := s.reader.Load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	summary := lifecycle.Summarize(course)
	return &dto.MentorMutationResponse{
		CourseID: courseID,
		Status:   course.Status,
		Mentor:   mentor,
		Mentors:  summary.Mentors,
		Costs:    summary,
	}, nil
}
