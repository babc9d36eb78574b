package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/lifecycle"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

const dateLayout = "2006-01-02"

var weekdays = map[string]string{
	"monday": "Monday", "tuesday": "Tuesday", "wednesday": "Wednesday", "thursday": "Thursday",
	"friday": "Friday", "saturday": "Saturday", "sunday": "Sunday",
}

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListAll(ctx context.Context, statuses []models.CourseStatus, search string) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	BatchCodeExists(ctx context.Context, batchCode, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
	TransitionStatus(ctx context.Context, id string, from, to models.CourseStatus) (bool, error)
}

type commentRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Comment, error)
	Create(ctx context.Context, comment *models.Comment) error
}

type approvedEnrollmentCounter interface {
	CountByCourse(ctx context.Context, courseID string, statuses []models.ApprovalStatus) (int, error)
}

// CourseServiceParams groups constructor dependencies.
type CourseServiceParams struct {
	Courses     courseRepository
	Reader      *CourseReader
	Comments    commentRepository
	Enrollments approvedEnrollmentCounter
	Audit       auditLogger
	Cache       *CacheService
	CostTTL     time.Duration
	Validator   *validator.Validate
	Logger      *zap.Logger
	Clock       lifecycle.Clock
}

// CourseService implements course listing, detail and the descriptive CRUD operations.
type CourseService struct {
	courses     courseRepository
	reader      *CourseReader
	comments    commentRepository
	enrollments approvedEnrollmentCounter
	audit       auditLogger
	cache       *CacheService
	costTTL     time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
	now         lifecycle.Clock
}

// NewCourseService constructs a CourseService.
func NewCourseService(params CourseServiceParams) *CourseService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Clock == nil {
		params.Clock = lifecycle.SystemClock
	}
	return &CourseService{
		courses:     params.Courses,
		reader:      params.Reader,
		comments:    params.Comments,
		enrollments: params.Enrollments,
		audit:       params.Audit,
		cache:       params.Cache,
		costTTL:     params.CostTTL,
		validator:   params.Validator,
		logger:      params.Logger,
		now:         params.Clock,
	}
}

// List returns courses with their display status, phase and total training cost. A phase
// filter is evaluated with lifecycle.Phase after a stored-status prefilter.
func (s *CourseService) List(ctx context.Context, query dto.CourseListQuery) ([]dto.CourseListItem, *models.Pagination, error) {
	page, size := paginate(query.Page, query.Limit)
	today := s.now()

	if strings.TrimSpace(query.Phase) != "" {
		phase, ok := lifecycle.ParsePhase(query.Phase)
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "phase must be one of planning, upcoming, ongoing, completed")
		}
		courses, err := s.courses.ListAll(ctx, lifecycle.StoredStatusesFor(phase), strings.TrimSpace(query.Search))
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
		}
		matched := make([]models.Course, 0, len(courses))
		for i := range courses {
			if lifecycle.Phase(&courses[i], today) == phase {
				matched = append(matched, courses[i])
			}
		}
		total := len(matched)
		start := (page - 1) * size
		if start > total {
			start = total
		}
		end := start + size
		if end > total {
			end = total
		}
		items, err := s.listItems(ctx, matched[start:end], today)
		if err != nil {
			return nil, nil, err
		}
		return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
	}

	statuses, err := parseCourseStatuses(query.Status)
	if err != nil {
		return nil, nil, err
	}
	courses, total, err := s.courses.List(ctx, models.CourseFilter{
		Statuses: statuses,
		Search:   strings.TrimSpace(query.Search),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	items, err := s.listItems(ctx, courses, today)
	if err != nil {
		return nil, nil, err
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *CourseService) listItems(ctx context.Context, courses []models.Course, today time.Time) ([]dto.CourseListItem, error) {
	items := make([]dto.CourseListItem, 0, len(courses))
	for i := range courses {
		course := courses[i]
		if _, err := s.reader.Hydrate(ctx, &course); err != nil {
			return nil, err
		}
		items = append(items, dto.CourseListItem{
			Course:            course,
			DisplayStatus:     lifecycle.CourseStatus(&course),
			Phase:             lifecycle.Phase(&course, today),
			TotalTrainingCost: lifecycle.TotalTrainingCost(&course),
		})
	}
	return items, nil
}

// Get returns the full course view.
func (s *CourseService) Get(ctx context.Context, id string) (*dto.CourseDetail, error) {
	course, version, err := s.reader.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comments")
	}
	detail := &dto.CourseDetail{
		Course:        course,
		DisplayStatus: lifecycle.CourseStatus(course),
		Phase:         lifecycle.Phase(course, s.now()),
		Mentors:       lifecycle.DisplayMentors(course),
		Costs:         lifecycle.Summarize(course),
		Comments:      comments,
	}
	if course.IsDraft() {
		detail.DraftVersion = &version
	}
	return detail, nil
}

// Costs returns the cost breakdown of a course, served from cache when possible.
func (s *CourseService) Costs(ctx context.Context, id string) (*lifecycle.CostSummary, bool, error) {
	if cached, hit := s.cache.CourseCosts(ctx, id); hit {
		return cached, true, nil
	}
	course, _, err := s.reader.Load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	summary := lifecycle.Summarize(course)
	s.cache.StoreCourseCosts(ctx, id, summary, s.costTTL)
	return &summary, false, nil
}

// Create registers a new course in draft status.
func (s *CourseService) Create(ctx context.Context, req dto.CourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	course := &models.Course{Status: models.CourseStatusDraft, CreatedBy: actorName(actor)}
	if err := s.applyRequest(ctx, course, req); err != nil {
		return nil, err
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action: models.AuditActionCourseCreate, Resource: "course", ResourceID: course.ID,
		New: map[string]string{"name": course.Name, "batch_code": course.BatchCode},
	})
	s.cache.ForgetCourse(ctx, "")
	return course, nil
}

// Update replaces the descriptive, scheduling and capacity fields of a course.
func (s *CourseService) Update(ctx context.Context, id string, req dto.CourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Status == models.CourseStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "completed courses cannot be changed")
	}
	before := map[string]interface{}{"name": course.Name, "batch_code": course.BatchCode, "seat_limit": course.SeatLimit}
	if err := s.applyRequest(ctx, course, req); err != nil {
		return nil, err
	}
	if err := s.courses.Update(ctx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action: models.AuditActionCourseUpdate, Resource: "course", ResourceID: course.ID,
		Old: before, New: map[string]interface{}{"name": course.Name, "batch_code": course.BatchCode, "seat_limit": course.SeatLimit},
	})
	s.cache.ForgetCourse(ctx, id)
	return course, nil
}

// Delete removes a course that has no approved enrollments.
func (s *CourseService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	approved, err := s.enrollments.CountByCourse(ctx, id, []models.ApprovalStatus{models.ApprovalApproved})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if approved > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "course has approved enrollments")
	}
	if err := s.courses.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action: models.AuditActionCourseDelete, Resource: "course", ResourceID: id,
		Old: map[string]string{"name": course.Name, "batch_code": course.BatchCode},
	})
	s.cache.ForgetCourse(ctx, id)
	return nil
}

// Complete moves an ongoing course to completed. Completing a completed course is a no-op.
func (s *CourseService) Complete(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Status == models.CourseStatusCompleted {
		return course, nil
	}
	if !lifecycle.CanTransitionCourse(course.Status, models.CourseStatusCompleted) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only ongoing courses can be completed")
	}
	ok, err := s.courses.TransitionStatus(ctx, id, course.Status, models.CourseStatusCompleted)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete course")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course status changed, reload and retry")
	}
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action: models.AuditActionCourseComplete, Resource: "course", ResourceID: id,
		Old: map[string]string{"status": string(course.Status)}, New: map[string]string{"status": string(models.CourseStatusCompleted)},
	})
	s.cache.ForgetCourse(ctx, id)
	course.Status = models.CourseStatusCompleted
	return course, nil
}

// ListComments returns the comments of a course, oldest first.
func (s *CourseService) ListComments(ctx context.Context, courseID string) ([]models.Comment, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	comments, err := s.comments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	return comments, nil
}

// AddComment appends a comment. The author defaults to the caller.
func (s *CourseService) AddComment(ctx context.Context, courseID string, req dto.CommentRequest, actor *models.JWTClaims) (*models.Comment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	text := strings.TrimSpace(req.Comment)
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment must not be blank")
	}
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	author := strings.TrimSpace(req.CreatedBy)
	if author == "" {
		author = actorName(actor)
	}
	comment := &models.Comment{CourseID: courseID, Comment: text, CreatedBy: author}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add comment")
	}
	return comment, nil
}

// applyRequest validates the payload and copies it onto the course.
func (s *CourseService) applyRequest(ctx context.Context, course *models.Course, req dto.CourseRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}
	schedule, err := parseSchedule(req.ClassSchedule)
	if err != nil {
		return err
	}

	batchCode := strings.TrimSpace(req.BatchCode)
	exists, err := s.courses.BatchCodeExists(ctx, batchCode, course.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check batch code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "batch code already in use")
	}

	prerequisite := normalizeOptional(req.PrerequisiteCourseID)
	if prerequisite != nil {
		if course.ID != "" && *prerequisite == course.ID {
			return appErrors.Clone(appErrors.ErrValidation, "a course cannot be its own prerequisite")
		}
		if _, err := s.courses.FindByID(ctx, *prerequisite); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "prerequisite course not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite course")
		}
	}

	course.Name = strings.TrimSpace(req.Name)
	course.BatchCode = batchCode
	course.Description = strings.TrimSpace(req.Description)
	course.StartDate = start
	course.EndDate = end
	course.ClassSchedule = schedule
	course.SeatLimit = req.SeatLimit
	course.PrerequisiteCourseID = prerequisite
	return nil
}

func parseSchedule(sessions []dto.ClassSessionRequest) (models.ClassSchedule, error) {
	schedule := make(models.ClassSchedule, 0, len(sessions))
	for _, session := range sessions {
		day, ok := weekdays[strings.ToLower(strings.TrimSpace(session.Day))]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class_schedule day must be a weekday name")
		}
		start, err := time.Parse("15:04", strings.TrimSpace(session.StartTime))
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class_schedule start_time must be HH:MM")
		}
		end, err := time.Parse("15:04", strings.TrimSpace(session.EndTime))
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class_schedule end_time must be HH:MM")
		}
		if !end.After(start) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class_schedule end_time must be after start_time")
		}
		schedule = append(schedule, models.ClassSession{
			Day:       day,
			StartTime: start.Format("15:04"),
			EndTime:   end.Format("15:04"),
		})
	}
	return schedule, nil
}

func parseCourseStatuses(raw string) ([]models.CourseStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var statuses []models.CourseStatus
	for _, part := range strings.Split(raw, ",") {
		status := models.CourseStatus(strings.ToLower(strings.TrimSpace(part)))
		switch status {
		case models.CourseStatusDraft, models.CourseStatusOngoing, models.CourseStatusCompleted:
			statuses = append(statuses, status)
		case "":
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be draft, ongoing or completed")
		}
	}
	return statuses, nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
