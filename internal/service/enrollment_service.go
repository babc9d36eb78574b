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

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Enrollment, error)
	FindByCourseAndParticipant(ctx context.Context, courseID, employeeID, email string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, change models.EnrollmentStatusChange) (bool, error)
	UpdateResult(ctx context.Context, id string, result models.EnrollmentResult) error
	EligibilityFacts(ctx context.Context, studentID string, course *models.Course) (*repository.EligibilityFacts, error)
}

type studentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByEmployeeID(ctx context.Context, employeeID string) (*models.Student, error)
}

// EnrollmentServiceParams groups constructor dependencies.
type EnrollmentServiceParams struct {
	Enrollments enrollmentRepository
	Courses     courseFinder
	Students    studentLookup
	Audit       auditLogger
	Cache       *CacheService
	Metrics     *MetricsService
	AnnualLimit int
	Validator   *validator.Validate
	Logger      *zap.Logger
	Clock       lifecycle.Clock
}

// EnrollmentService manages enrollment requests, approval decisions and results.
type EnrollmentService struct {
	enrollments enrollmentRepository
	courses     courseFinder
	students    studentLookup
	audit       auditLogger
	cache       *CacheService
	metrics     *MetricsService
	annualLimit int
	validator   *validator.Validate
	logger      *zap.Logger
	now         lifecycle.Clock
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(params EnrollmentServiceParams) *EnrollmentService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Clock == nil {
		params.Clock = lifecycle.SystemClock
	}
	return &EnrollmentService{
		enrollments: params.Enrollments,
		courses:     params.Courses,
		students:    params.Students,
		audit:       params.Audit,
		cache:       params.Cache,
		metrics:     params.Metrics,
		annualLimit: params.AnnualLimit,
		validator:   params.Validator,
		logger:      params.Logger,
		now:         params.Clock,
	}
}

// List returns enrollments matching the query.
func (s *EnrollmentService) List(ctx context.Context, query dto.EnrollmentListQuery) ([]models.Enrollment, *models.Pagination, error) {
	page, size := paginate(query.Page, query.Limit)
	var statuses []models.ApprovalStatus
	for _, part := range strings.Split(query.ApprovalStatus, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		status, ok := parseApprovalStatus(part)
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "approval_status must be Pending, Approved, Rejected or Withdrawn")
		}
		statuses = append(statuses, status)
	}
	enrollments, total, err := s.enrollments.List(ctx, models.EnrollmentFilter{
		CourseID:         strings.TrimSpace(query.CourseID),
		ApprovalStatuses: statuses,
		Search:           strings.TrimSpace(query.Search),
		Page:             page,
		PageSize:         size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Sections splits the enrollments of a course into the buckets shown on the course page.
func (s *EnrollmentService) Sections(ctx context.Context, courseID string) (*lifecycle.Sections, error) {
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	sections := lifecycle.Partition(enrollments)
	if n := len(sections.Unknown); n > 0 {
		s.logger.Warn("enrollments with unrecognised status", zap.String("course_id", courseID), zap.Int("count", n))
	}
	return &sections, nil
}

// Create registers a pending enrollment request with its eligibility evaluated now.
func (s *EnrollmentService) Create(ctx context.Context, req dto.CreateEnrollmentRequest, actor *models.JWTClaims) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if req.StudentID == "" && strings.TrimSpace(req.EmployeeID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id or employee_id is required")
	}
	course, err := s.loadCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if course.Status == models.CourseStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "course is already completed")
	}
	student, err := s.resolveStudent(ctx, req)
	if err != nil {
		return nil, err
	}
	enrollment, created, err := s.EnrollStudent(ctx, course, student, models.ApprovalPending, actor)
	if err != nil {
		return nil, err
	}
	if !created {
		switch enrollment.ApprovalStatus {
		case models.ApprovalRejected, models.ApprovalWithdrawn:
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf(
				"student has a %s enrollment in this course, reapprove enrollment %s instead",
				strings.ToLower(string(enrollment.ApprovalStatus)), enrollment.ID))
		default:
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course")
		}
	}
	return enrollment, nil
}

// EnrollStudent creates the enrollment in the given approval status unless one already exists,
// in which case the existing enrollment is returned with created=false.
func (s *EnrollmentService) EnrollStudent(ctx context.Context, course *models.Course, student *models.Student, status models.ApprovalStatus, actor *models.JWTClaims) (*models.Enrollment, bool, error) {
	existing, err := s.enrollments.FindByCourseAndStudent(ctx, course.ID, student.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	eligibility, err := s.eligibility(ctx, student.ID, course)
	if err != nil {
		return nil, false, err
	}
	now := s.now().UTC()
	changedBy := actorName(actor)
	enrollment := &models.Enrollment{
		CourseID:          course.ID,
		StudentID:         student.ID,
		StudentName:       student.Name,
		StudentEmail:      student.Email,
		StudentEmployeeID: student.EmployeeID,
		StudentSBU:        student.SBU,
		StudentDepartment: student.Department,
		ApprovalStatus:    status,
		EligibilityStatus: eligibility,
		StatusChangedBy:   &changedBy,
		StatusChangedAt:   &now,
		EnrolledAt:        now,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.cache.ForgetCourse(ctx, course.ID)
	return enrollment, true, nil
}

// Approve accepts a pending request.
func (s *EnrollmentService) Approve(ctx context.Context, id string, req dto.EnrollmentStatusRequest, actor *models.JWTClaims) (*models.Enrollment, error) {
	return s.transition(ctx, id, lifecycle.ActionApprove, req, actor)
}

// Reject declines a pending request.
func (s *EnrollmentService) Reject(ctx context.Context, id string, req dto.EnrollmentStatusRequest, actor *models.JWTClaims) (*models.Enrollment, error) {
	return s.transition(ctx, id, lifecycle.ActionReject, req, actor)
}

// Withdraw removes a pending or approved participant. A reason is required.
func (s *EnrollmentService) Withdraw(ctx context.Context, id string, req dto.EnrollmentStatusRequest, actor *models.JWTClaims) (*models.Enrollment, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason is required to withdraw an enrollment")
	}
	return s.transition(ctx, id, lifecycle.ActionWithdraw, req, actor)
}

// Reapprove restores a rejected or withdrawn enrollment.
func (s *EnrollmentService) Reapprove(ctx context.Context, id string, req dto.EnrollmentStatusRequest, actor *models.JWTClaims) (*models.Enrollment, error) {
	return s.transition(ctx, id, lifecycle.ActionReapprove, req, actor)
}

func (s *EnrollmentService) transition(ctx context.Context, id string, action lifecycle.EnrollmentAction, req dto.EnrollmentStatusRequest, actor *models.JWTClaims) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	enrollment, err := s.loadEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	target, _ := lifecycle.ActionTarget(action)
	if !lifecycle.ActionAllowed(action, enrollment.ApprovalStatus) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot "+string(action)+" an enrollment that is "+string(enrollment.ApprovalStatus))
	}

	change := models.EnrollmentStatusChange{
		ID:        enrollment.ID,
		From:      enrollment.ApprovalStatus,
		To:        target,
		Reason:    normalizeOptional(&req.Reason),
		ChangedBy: actorName(actor),
		ChangedAt: s.now().UTC(),
	}
	ok, err := s.enrollments.UpdateStatus(ctx, change)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment status changed, reload and retry")
	}

	s.metrics.RecordEnrollmentTransition(string(action))
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action: models.AuditActionEnrollmentStatus, Resource: "enrollment", ResourceID: enrollment.ID,
		Old: map[string]string{"approval_status": string(change.From)},
		New: map[string]interface{}{"approval_status": change.To, "reason": change.Reason},
	})
	s.cache.ForgetCourse(ctx, enrollment.CourseID)

	enrollment.ApprovalStatus = change.To
	enrollment.StatusReason = change.Reason
	enrollment.StatusChangedBy = &change.ChangedBy
	enrollment.StatusChangedAt = &change.ChangedAt
	return enrollment, nil
}

// RecordResult stores score, attendance and completion status of an enrollment.
func (s *EnrollmentService) RecordResult(ctx context.Context, id string, req dto.EnrollmentResultRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result payload")
	}
	enrollment, err := s.loadEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ApplyResult(ctx, enrollment, models.EnrollmentResult{
		CompletionStatus: normalizeOptional(req.CompletionStatus),
		Score:            req.Score,
		Present:          req.Present,
		TotalAttendance:  req.TotalAttendance,
	})
}

// ApplyResult merges the result into the enrollment, recomputes the attendance percentage and
// persists it.
func (s *EnrollmentService) ApplyResult(ctx context.Context, enrollment *models.Enrollment, result models.EnrollmentResult) (*models.Enrollment, error) {
	if result.Score != nil && (*result.Score < 0 || *result.Score > 100) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score must be between 0 and 100")
	}
	present := enrollment.Present
	if result.Present != nil {
		present = result.Present
	}
	total := enrollment.TotalAttendance
	if result.TotalAttendance != nil {
		total = result.TotalAttendance
	}
	if (present != nil && *present < 0) || (total != nil && *total < 0) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance counts must not be negative")
	}
	if present != nil && total != nil && *present > *total {
		return nil, appErrors.Clone(appErrors.ErrValidation, "present must not exceed total_attendance")
	}
	result.AttendancePercentage = lifecycle.AttendancePercentage(present, total)

	if err := s.enrollments.UpdateResult(ctx, enrollment.ID, result); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record result")
	}

	if result.CompletionStatus != nil {
		enrollment.CompletionStatus = result.CompletionStatus
	}
	if result.Score != nil {
		enrollment.Score = result.Score
	}
	enrollment.Present = present
	enrollment.TotalAttendance = total
	enrollment.AttendancePercentage = result.AttendancePercentage
	return enrollment, nil
}

// FindParticipant matches an enrollment of the course by employee id or email.
func (s *EnrollmentService) FindParticipant(ctx context.Context, courseID, employeeID, email string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByCourseAndParticipant(ctx, courseID, strings.TrimSpace(employeeID), strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "participant is not enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) eligibility(ctx context.Context, studentID string, course *models.Course) (models.EligibilityStatus, error) {
	facts, err := s.enrollments.EligibilityFacts(ctx, studentID, course)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate eligibility")
	}
	return lifecycle.Eligibility(lifecycle.EligibilityInput{
		PrerequisiteRequired:  course.PrerequisiteCourseID != nil && *course.PrerequisiteCourseID != "",
		PrerequisiteCompleted: facts.PrerequisiteCompleted,
		AlreadyCompleted:      facts.AlreadyCompleted,
		ApprovedThisYear:      facts.ApprovedThisYear,
		AnnualLimit:           s.annualLimit,
	}), nil
}

func (s *EnrollmentService) resolveStudent(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.Student, error) {
	var (
		student *models.Student
		err     error
	)
	if req.StudentID != "" {
		student, err = s.students.FindByID(ctx, req.StudentID)
	} else {
		student, err = s.students.FindByEmployeeID(ctx, strings.TrimSpace(req.EmployeeID))
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *EnrollmentService) loadCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *EnrollmentService) loadEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func parseApprovalStatus(raw string) (models.ApprovalStatus, bool) {
	for _, status := range []models.ApprovalStatus{models.ApprovalPending, models.ApprovalApproved, models.ApprovalRejected, models.ApprovalWithdrawn} {
		if strings.EqualFold(raw, string(status)) {
			return status, true
		}
	}
	return "", false
}
