package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lnd-admin-api/internal/models"
)

var enrollmentRowColumns = []string{
	"id", "course_id", "student_id", "student_name", "student_email", "student_employee_id", "student_sbu",
	"student_department", "approval_status", "eligibility_status", "completion_status", "score", "present",
	"total_attendance", "attendance_percentage", "status_reason", "status_changed_by", "status_changed_at", "enrolled_at",
}

func TestEnrollmentRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(enrollmentRowColumns).
		AddRow("e1", "c1", "s1", "Ayu", "ayu@corp.id", "E001", "Retail", "Ops", "Approved", "Eligible",
			"Completed", 88.5, 4, 5, 80.0, nil, nil, nil, now).
		AddRow("e2", "c1", "s2", "Budi", "budi@corp.id", "E002", "Retail", "Ops", "Pending", "Eligible",
			nil, nil, nil, nil, nil, nil, nil, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments e JOIN students s ON s.id = e.student_id WHERE e.course_id = $1 ORDER BY e.enrolled_at ASC, e.id")).
		WithArgs("c1").
		WillReturnRows(rows)

	enrollments, err := repo.ListByCourse(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.Equal(t, models.ApprovalApproved, enrollments[0].ApprovalStatus)
	require.NotNil(t, enrollments[0].AttendancePercentage)
	assert.InDelta(t, 80.0, *enrollments[0].AttendancePercentage, 0.001)
	assert.Nil(t, enrollments[1].Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatusIsConditional(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	reason := "schedule clash"
	changedAt := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET approval_status = $2")).
		WithArgs("e1", "Withdrawn", "schedule clash", "admin", changedAt, "Approved").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatus(context.Background(), models.EnrollmentStatusChange{
		ID: "e1", From: models.ApprovalApproved, To: models.ApprovalWithdrawn, Reason: &reason, ChangedBy: "admin", ChangedAt: changedAt,
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateResultMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET")).
		WithArgs("missing", nil, nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateResult(context.Background(), "missing", models.EnrollmentResult{})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEligibilityFacts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	prerequisite := "c0"
	course := &models.Course{ID: "c1", Name: "Leadership 101", StartDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), PrerequisiteCourseID: &prerequisite}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2")).
		WithArgs("s1", "c0").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("LOWER(c.name) = LOWER($3)")).
		WithArgs("s1", "c1", "Leadership 101").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta("EXTRACT(YEAR FROM c.start_date) = $3")).
		WithArgs("s1", "c1", 2024).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	facts, err := repo.EligibilityFacts(context.Background(), "s1", course)
	require.NoError(t, err)
	assert.True(t, facts.PrerequisiteCompleted)
	assert.False(t, facts.AlreadyCompleted)
	assert.Equal(t, 2, facts.ApprovedThisYear)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountByCourse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND approval_status = ANY($2)")).
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountByCourse(context.Background(), "c1", []models.ApprovalStatus{models.ApprovalApproved})
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
