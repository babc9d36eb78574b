package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/lifecycle"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	"github.com/noah-isme/lnd-admin-api/internal/repository"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

type courseDraftStore interface {
	Get(ctx context.Context, courseID string) (*models.CourseDraft, error)
	Save(ctx context.Context, courseID string, overlay models.DraftOverlay, expectedVersion *int, updatedBy string) (*models.CourseDraft, error)
	Mutate(ctx context.Context, courseID, updatedBy string, mutate repository.OverlayMutation) (*models.CourseDraft, error)
	Promote(ctx context.Context, params repository.PromoteParams) (*repository.PromoteResult, error)
}

type mentorFinder interface {
	FindByID(ctx context.Context, id string) (*models.Mentor, error)
}

// DraftServiceParams groups constructor dependencies.
type DraftServiceParams struct {
	Courses   courseFinder
	Drafts    courseDraftStore
	Mentors   mentorFinder
	Reader    *CourseReader
	Audit     auditLogger
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Clock     lifecycle.Clock
}

// DraftService edits the draft overlay of planning courses and approves them.
type DraftService struct {
	courses   courseFinder
	drafts    courseDraftStore
	mentors   mentorFinder
	reader    *CourseReader
	audit     auditLogger
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       lifecycle.Clock
}

// NewDraftService constructs a DraftService.
func NewDraftService(params DraftServiceParams) *DraftService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Clock == nil {
		params.Clock = lifecycle.SystemClock
	}
	return &DraftService{
		courses:   params.Courses,
		drafts:    params.Drafts,
		mentors:   params.Mentors,
		reader:    params.Reader,
		audit:     params.Audit,
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: params.Validator,
		logger:    params.Logger,
		now:       params.Clock,
	}
}

// Get returns the overlay of a draft course. A draft course without a stored overlay gets the
// empty overlay at version 0.
func (s *DraftService) Get(ctx context.Context, courseID string) (*dto.DraftResponse, error) {
	course, err := s.loadDraftCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	draft, err := s.drafts.Get(ctx, courseID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course draft")
		}
		draft = &models.CourseDraft{CourseID: courseID, Payload: lifecycle.EmptyOverlay()}
	}
	return draftResponse(course, draft), nil
}

// Save replaces the whole overlay. With expectedVersion set the write is a compare-and-swap and
// a stale version fails with 412; without it the last writer wins.
func (s *DraftService) Save(ctx context.Context, courseID string, overlay models.DraftOverlay, expectedVersion *int, actor *models.JWTClaims) (*dto.DraftResponse, error) {
	if err := validateOverlay(overlay); err != nil {
		return nil, err
	}
	course, err := s.loadDraftCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	overlay = lifecycle.Normalize(overlay)
	draft, err := s.drafts.Save(ctx, courseID, overlay, expectedVersion, actorName(actor))
	if err != nil {
		return nil, translateDraftError(err, "failed to save course draft")
	}
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action: models.AuditActionDraftSave, Resource: "course", ResourceID: courseID,
		New: map[string]interface{}{"version": draft.Version, "mentors": len(overlay.MentorAssignments)},
	})
	s.cache.ForgetCourse(ctx, courseID)
	return draftResponse(course, draft), nil
}

// Approve promotes the overlay to the official records and moves the course to ongoing in one
// transaction. Approving an ongoing course returns it unchanged.
func (s *DraftService) Approve(ctx context.Context, courseID string, req dto.ApproveCourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	approvedBy := strings.TrimSpace(req.ApprovedBy)
	if approvedBy == "" {
		approvedBy = actorName(actor)
	}

	result, err := s.drafts.Promote(ctx, repository.PromoteParams{
		CourseID:   courseID,
		ApprovedBy: approvedBy,
		ApprovedAt: s.now().UTC(),
		Prepare: func(overlay models.DraftOverlay) (models.DraftOverlay, error) {
			overlay = lifecycle.Normalize(overlay)
			if err := validateOverlay(overlay); err != nil {
				return overlay, err
			}
			return overlay, s.checkMentors(ctx, overlay)
		},
	})
	if err != nil {
		s.metrics.RecordCourseApproval("rejected")
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, passThrough(err, "failed to approve course")
	}

	if !result.Promoted {
		if result.PreviousStatus != models.CourseStatusOngoing {
			s.metrics.RecordCourseApproval("rejected")
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("course is %s and cannot be approved", result.PreviousStatus))
		}
		s.metrics.RecordCourseApproval("already_approved")
		course, _, err := s.reader.Load(ctx, courseID)
		return course, err
	}

	s.metrics.RecordCourseApproval("approved")
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action: models.AuditActionCourseApprove, Resource: "course", ResourceID: courseID,
		Old: map[string]string{"status": string(result.PreviousStatus)},
		New: map[string]interface{}{"status": models.CourseStatusOngoing, "approved_by": approvedBy, "mentors": len(result.Overlay.MentorAssignments)},
	})
	s.cache.ForgetCourse(ctx, courseID)
	s.logger.Info("course approved", zap.String("course_id", courseID), zap.String("approved_by", approvedBy))

	course, _, err := s.reader.Load(ctx, courseID)
	return course, err
}

func (s *DraftService) loadDraftCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.IsDraft() {
		return nil, appErrors.Clone(appErrors.ErrNotDraft, "course is not in draft status")
	}
	return course, nil
}

// checkMentors verifies every overlay mentor still exists before it becomes official.
func (s *DraftService) checkMentors(ctx context.Context, overlay models.DraftOverlay) error {
	if s.mentors == nil {
		return nil
	}
	for _, a := range overlay.MentorAssignments {
		if _, err := s.mentors.FindByID(ctx, a.MentorID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("mentor %s does not exist", a.MentorID))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify mentors")
		}
	}
	return nil
}

func draftResponse(course *models.Course, draft *models.CourseDraft) *dto.DraftResponse {
	overlay := draft.Payload
	if overlay.MentorAssignments == nil {
		overlay.MentorAssignments = []models.MentorAssignment{}
	}
	view := *course
	view.Draft = &overlay
	return &dto.DraftResponse{
		CourseID: course.ID,
		Draft:    overlay,
		Mentors:  lifecycle.DisplayMentors(&view),
		Costs:    lifecycle.Summarize(&view),
		Version:  draft.Version,
	}
}

func validateOverlay(overlay models.DraftOverlay) error {
	for i, a := range overlay.MentorAssignments {
		if strings.TrimSpace(a.MentorID) == "" {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("mentor_assignments[%d].mentor_id is required", i))
		}
		hours, paid := a.HoursTaught, a.AmountPaid
		if err := validateMentorFigures(&hours, &paid); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("mentor_assignments[%d]: %s", i, appErrors.FromError(err).Message))
		}
	}
	return validateCostFigures(overlay.FoodCost, overlay.OtherCost)
}

// validateMentorFigures bounds hours and fees to what the mentor_assignments columns hold.
func validateMentorFigures(hours, paid *models.Amount) error {
	if (hours != nil && hours.IsNegative()) || (paid != nil && paid.IsNegative()) {
		return appErrors.Clone(appErrors.ErrValidation, "hours_taught and amount_paid must not be negative")
	}
	if hours != nil && !hours.Fits(models.HoursDigits) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("hours_taught must have at most %d integer digits", models.HoursDigits))
	}
	if paid != nil && !paid.Fits(models.MoneyDigits) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("amount_paid must have at most %d integer digits", models.MoneyDigits))
	}
	return nil
}

func validateCostFigures(food, other *models.Amount) error {
	if (food != nil && food.IsNegative()) || (other != nil && other.IsNegative()) {
		return appErrors.Clone(appErrors.ErrValidation, "costs must not be negative")
	}
	if (food != nil && !food.Fits(models.MoneyDigits)) || (other != nil && !other.Fits(models.MoneyDigits)) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("costs must have at most %d integer digits", models.MoneyDigits))
	}
	return nil
}

// translateDraftError maps repository sentinels of the overlay store to API errors.
func translateDraftError(err error, message string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	case errors.Is(err, repository.ErrVersionConflict):
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "draft was modified by someone else, reload and retry")
	case errors.Is(err, repository.ErrCourseNotDraft):
		return appErrors.Clone(appErrors.ErrNotDraft, "course is not in draft status")
	default:
		return passThrough(err, message)
	}
}
