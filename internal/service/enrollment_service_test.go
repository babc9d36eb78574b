package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	"github.com/noah-isme/lnd-admin-api/internal/repository"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

type mockEnrollmentStore struct {
	enrollments map[string]*models.Enrollment
	facts       repository.EligibilityFacts
	staleUpdate bool
	seq         int
	changes     []models.EnrollmentStatusChange
}

func newMockEnrollmentStore(enrollments ...models.Enrollment) *mockEnrollmentStore {
	store := &mockEnrollmentStore{enrollments: map[string]*models.Enrollment{}}
	for i := range enrollments {
		e := enrollments[i]
		store.enrollments[e.ID] = &e
	}
	return store
}

func (m *mockEnrollmentStore) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		if len(filter.ApprovalStatuses) > 0 {
			match := false
			for _, s := range filter.ApprovalStatuses {
				match = match || s == e.ApprovalStatus
			}
			if !match {
				continue
			}
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(e.StudentName), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m *mockEnrollmentStore) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	out, _, err := m.List(ctx, models.EnrollmentFilter{CourseID: courseID})
	return out, err
}

func (m *mockEnrollmentStore) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *e
	return &clone, nil
}

func (m *mockEnrollmentStore) FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Enrollment, error) {
	for _, e := range m.enrollments {
		if e.CourseID == courseID && e.StudentID == studentID {
			clone := *e
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) FindByCourseAndParticipant(ctx context.Context, courseID, employeeID, email string) (*models.Enrollment, error) {
	for _, e := range m.enrollments {
		if e.CourseID != courseID {
			continue
		}
		if (employeeID != "" && e.StudentEmployeeID == employeeID) || (email != "" && strings.EqualFold(e.StudentEmail, email)) {
			clone := *e
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	m.seq++
	enrollment.ID = fmt.Sprintf("enrollment-%d", m.seq)
	clone := *enrollment
	m.enrollments[enrollment.ID] = &clone
	return nil
}

func (m *mockEnrollmentStore) UpdateStatus(ctx context.Context, change models.EnrollmentStatusChange) (bool, error) {
	e, ok := m.enrollments[change.ID]
	if !ok || m.staleUpdate || e.ApprovalStatus != change.From {
		return false, nil
	}
	e.ApprovalStatus = change.To
	e.StatusReason = change.Reason
	m.changes = append(m.changes, change)
	return true, nil
}

func (m *mockEnrollmentStore) UpdateResult(ctx context.Context, id string, result models.EnrollmentResult) error {
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	if result.CompletionStatus != nil {
		e.CompletionStatus = result.CompletionStatus
	}
	if result.Score != nil {
		e.Score = result.Score
	}
	if result.Present != nil {
		e.Present = result.Present
	}
	if result.TotalAttendance != nil {
		e.TotalAttendance = result.TotalAttendance
	}
	e.AttendancePercentage = result.AttendancePercentage
	return nil
}

func (m *mockEnrollmentStore) EligibilityFacts(ctx context.Context, studentID string, course *models.Course) (*repository.EligibilityFacts, error) {
	facts := m.facts
	return &facts, nil
}

type mockStudentDirectory struct {
	students map[string]models.Student
}

func (m *mockStudentDirectory) FindByID(ctx context.Context, id string) (*models.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *mockStudentDirectory) FindByEmployeeID(ctx context.Context, employeeID string) (*models.Student, error) {
	for _, s := range m.students {
		if s.EmployeeID == employeeID {
			s := s
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func studentDirectory(students ...models.Student) *mockStudentDirectory {
	dir := &mockStudentDirectory{students: map[string]models.Student{}}
	for _, s := range students {
		dir.students[s.ID] = s
	}
	return dir
}

func newEnrollmentServiceForTest(courses *mockCourseStore, enrollments *mockEnrollmentStore, students *mockStudentDirectory, audit *mockAuditSink) *EnrollmentService {
	return NewEnrollmentService(EnrollmentServiceParams{
		Enrollments: enrollments,
		Courses:     courses,
		Students:    students,
		Audit:       audit,
		AnnualLimit: 3,
		Clock:       fixedClock,
	})
}

func intPtr(v int) *int { return &v }

func TestEnrollmentServiceCreatePendingWithEligibility(t *testing.T) {
	courses := newMockCourseStore(ongoingCourse("c1"))
	enrollments := newMockEnrollmentStore()
	enrollments.facts = repository.EligibilityFacts{ApprovedThisYear: 3}
	students := studentDirectory(models.Student{ID: "s1", EmployeeID: "E-100", Name: "Ayu", Email: "ayu@corp.test", SBU: "Retail"})
	svc := newEnrollmentServiceForTest(courses, enrollments, students, nil)

	enrollment, err := svc.Create(context.Background(), dto.CreateEnrollmentRequest{CourseID: "c1", EmployeeID: "E-100"}, &models.JWTClaims{FullName: "Admin"})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, enrollment.ApprovalStatus)
	assert.Equal(t, models.EligibilityAnnualLimit, enrollment.EligibilityStatus)
	assert.Equal(t, "Ayu", enrollment.StudentName)
	assert.Equal(t, "Retail", enrollment.StudentSBU)
	assert.Equal(t, "Admin", *enrollment.StatusChangedBy)

	_, err = svc.Create(context.Background(), dto.CreateEnrollmentRequest{CourseID: "c1", StudentID: "s1"}, nil)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceCreateOverInactiveEnrollmentPointsToReapprove(t *testing.T) {
	enrollments := newMockEnrollmentStore(models.Enrollment{ID: "e9", CourseID: "c1", StudentID: "s1", ApprovalStatus: models.ApprovalWithdrawn})
	svc := newEnrollmentServiceForTest(newMockCourseStore(ongoingCourse("c1")), enrollments, studentDirectory(models.Student{ID: "s1"}), nil)

	_, err := svc.Create(context.Background(), dto.CreateEnrollmentRequest{CourseID: "c1", StudentID: "s1"}, nil)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "reapprove enrollment e9")
	assert.Len(t, enrollments.enrollments, 1)
}

func TestEnrollmentServiceCreateMissingPrerequisite(t *testing.T) {
	course := ongoingCourse("c1")
	prereq := "c0"
	course.PrerequisiteCourseID = &prereq
	courses := newMockCourseStore(course)
	svc := newEnrollmentServiceForTest(courses, newMockEnrollmentStore(), studentDirectory(models.Student{ID: "s1"}), nil)

	enrollment, err := svc.Create(context.Background(), dto.CreateEnrollmentRequest{CourseID: "c1", StudentID: "s1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EligibilityMissingPrerequisite, enrollment.EligibilityStatus)
}

func TestEnrollmentServiceCreateErrors(t *testing.T) {
	completed := ongoingCourse("done")
	completed.Status = models.CourseStatusCompleted
	courses := newMockCourseStore(completed, ongoingCourse("c1"))
	svc := newEnrollmentServiceForTest(courses, newMockEnrollmentStore(), studentDirectory(models.Student{ID: "s1"}), nil)

	_, err := svc.Create(context.Background(), dto.CreateEnrollmentRequest{CourseID: "done", StudentID: "s1"}, nil)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.CreateEnrollmentRequest{CourseID: "c1", StudentID: "nobody"}, nil)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.CreateEnrollmentRequest{CourseID: "c1"}, nil)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceTransitions(t *testing.T) {
	enrollments := newMockEnrollmentStore(models.Enrollment{ID: "e1", CourseID: "c1", ApprovalStatus: models.ApprovalPending})
	audit := &mockAuditSink{}
	metrics := NewMetricsService()
	svc := newEnrollmentServiceForTest(newMockCourseStore(ongoingCourse("c1")), enrollments, studentDirectory(), audit)
	svc.metrics = metrics

	enrollment, err := svc.Approve(context.Background(), "e1", dto.EnrollmentStatusRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, enrollment.ApprovalStatus)

	_, err = svc.Approve(context.Background(), "e1", dto.EnrollmentStatusRequest{}, nil)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)

	_, err = svc.Withdraw(context.Background(), "e1", dto.EnrollmentStatusRequest{}, nil)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	enrollment, err = svc.Withdraw(context.Background(), "e1", dto.EnrollmentStatusRequest{Reason: "left the company"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalWithdrawn, enrollment.ApprovalStatus)
	assert.Equal(t, "left the company", *enrollment.StatusReason)

	enrollment, err = svc.Reapprove(context.Background(), "e1", dto.EnrollmentStatusRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, enrollment.ApprovalStatus)

	assert.Len(t, enrollments.changes, 3)
	assert.Equal(t, []string{models.AuditActionEnrollmentStatus, models.AuditActionEnrollmentStatus, models.AuditActionEnrollmentStatus}, audit.actions())
}

func TestEnrollmentServiceTransitionLostRace(t *testing.T) {
	enrollments := newMockEnrollmentStore(models.Enrollment{ID: "e1", CourseID: "c1", ApprovalStatus: models.ApprovalPending})
	enrollments.staleUpdate = true
	svc := newEnrollmentServiceForTest(newMockCourseStore(), enrollments, studentDirectory(), nil)

	_, err := svc.Reject(context.Background(), "e1", dto.EnrollmentStatusRequest{Reason: "full"}, nil)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Reject(context.Background(), "missing", dto.EnrollmentStatusRequest{}, nil)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRecordResult(t *testing.T) {
	enrollments := newMockEnrollmentStore(models.Enrollment{ID: "e1", CourseID: "c1", ApprovalStatus: models.ApprovalApproved, TotalAttendance: intPtr(4)})
	svc := newEnrollmentServiceForTest(newMockCourseStore(), enrollments, studentDirectory(), nil)

	score := 87.5
	completed := models.CompletionCompleted
	enrollment, err := svc.RecordResult(context.Background(), "e1", dto.EnrollmentResultRequest{Present: intPtr(3), Score: &score, CompletionStatus: &completed})
	require.NoError(t, err)
	require.NotNil(t, enrollment.AttendancePercentage)
	assert.InDelta(t, 75.0, *enrollment.AttendancePercentage, 0.001)
	assert.Equal(t, models.CompletionCompleted, enrollment.DisplayStatus())
	assert.InDelta(t, 75.0, *enrollments.enrollments["e1"].AttendancePercentage, 0.001)

	_, err = svc.RecordResult(context.Background(), "e1", dto.EnrollmentResultRequest{Present: intPtr(5)})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceSections(t *testing.T) {
	enrollments := newMockEnrollmentStore(
		models.Enrollment{ID: "e1", CourseID: "c1", ApprovalStatus: models.ApprovalPending, EligibilityStatus: models.EligibilityAnnualLimit},
		models.Enrollment{ID: "e2", CourseID: "c1", ApprovalStatus: models.ApprovalPending, EligibilityStatus: models.EligibilityEligible},
		models.Enrollment{ID: "e3", CourseID: "c1", ApprovalStatus: models.ApprovalApproved, EligibilityStatus: models.EligibilityEligible},
	)
	svc := newEnrollmentServiceForTest(newMockCourseStore(ongoingCourse("c1")), enrollments, studentDirectory(), nil)

	sections, err := svc.Sections(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, sections.NotEligible, 1)
	assert.Equal(t, "e1", sections.NotEligible[0].ID)
	require.Len(t, sections.EligiblePending, 1)
	assert.Equal(t, "e2", sections.EligiblePending[0].ID)
	assert.Len(t, sections.Approved, 1)

	_, err = svc.Sections(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceListRejectsUnknownStatus(t *testing.T) {
	svc := newEnrollmentServiceForTest(newMockCourseStore(), newMockEnrollmentStore(), studentDirectory(), nil)
	_, _, err := svc.List(context.Background(), dto.EnrollmentListQuery{ApprovalStatus: "Pending,Maybe"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, page, err := svc.List(context.Background(), dto.EnrollmentListQuery{ApprovalStatus: "pending"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
}
