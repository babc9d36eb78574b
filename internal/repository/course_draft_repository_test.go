package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lnd-admin-api/internal/models"
)

const (
	lockCourseSQL = "SELECT status FROM courses WHERE id::text = $1 FOR UPDATE"
	lockDraftSQL  = "SELECT course_id, payload, version, updated_by, updated_at FROM course_drafts WHERE course_id::text = $1 FOR UPDATE"
)

var draftColumns = []string{"course_id", "payload", "version", "updated_by", "updated_at"}

func TestCourseDraftSaveRejectsStaleVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseDraftRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockCourseSQL)).WithArgs("c1").WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("draft"))
	mock.ExpectQuery(regexp.QuoteMeta(lockDraftSQL)).WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(draftColumns).AddRow("c1", `{"mentor_assignments":[]}`, 3, "admin", time.Now()))
	mock.ExpectRollback()

	expected := 2
	_, err := repo.Save(context.Background(), "c1", models.DraftOverlay{}, &expected, "admin")
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseDraftSaveWithoutPreconditionBumpsVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseDraftRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockCourseSQL)).WithArgs("c1").WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("draft"))
	mock.ExpectQuery(regexp.QuoteMeta(lockDraftSQL)).WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(draftColumns).AddRow("c1", `{"mentor_assignments":[]}`, 3, "admin", time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_drafts")).
		WithArgs("c1", sqlmock.AnyArg(), 4, "editor", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	draft, err := repo.Save(context.Background(), "c1", models.DraftOverlay{}, nil, "editor")
	require.NoError(t, err)
	assert.Equal(t, 4, draft.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseDraftMutateStartsFromEmptyOverlay(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseDraftRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockCourseSQL)).WithArgs("c1").WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("draft"))
	mock.ExpectQuery(regexp.QuoteMeta(lockDraftSQL)).WithArgs("c1").WillReturnRows(sqlmock.NewRows(draftColumns))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_drafts")).
		WithArgs("c1", sqlmock.AnyArg(), 1, "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen models.DraftOverlay
	draft, err := repo.Mutate(context.Background(), "c1", "admin", func(current models.DraftOverlay) (models.DraftOverlay, error) {
		seen = current
		current.MentorAssignments = append(current.MentorAssignments, models.MentorAssignment{
			MentorID: "m1", HoursTaught: models.AmountFromInt(2), AmountPaid: models.AmountFromInt(100),
		})
		return current, nil
	})
	require.NoError(t, err)
	assert.NotNil(t, seen.MentorAssignments)
	assert.Empty(t, seen.MentorAssignments)
	assert.Equal(t, 1, draft.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseDraftMutateRejectsApprovedCourse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseDraftRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockCourseSQL)).WithArgs("c1").WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("ongoing"))
	mock.ExpectRollback()

	_, err := repo.Mutate(context.Background(), "c1", "admin", func(current models.DraftOverlay) (models.DraftOverlay, error) {
		t.Fatal("mutation must not run")
		return current, nil
	})
	assert.ErrorIs(t, err, ErrCourseNotDraft)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseDraftMutateRollsBackOnMutationError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseDraftRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockCourseSQL)).WithArgs("c1").WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("draft"))
	mock.ExpectQuery(regexp.QuoteMeta(lockDraftSQL)).WithArgs("c1").WillReturnRows(sqlmock.NewRows(draftColumns))
	mock.ExpectRollback()

	boom := errors.New("mentor not in draft")
	_, err := repo.Mutate(context.Background(), "c1", "admin", func(models.DraftOverlay) (models.DraftOverlay, error) {
		return models.DraftOverlay{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseDraftPromoteCopiesOverlayAndDiscardsIt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseDraftRepository(db)
	approvedAt := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)

	payload := `{"mentor_assignments":[{"mentor_id":"m1","hours_taught":10,"amount_paid":100}],"food_cost":20,"other_cost":5}`
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockCourseSQL)).WithArgs("c1").WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("draft"))
	mock.ExpectQuery(regexp.QuoteMeta(lockDraftSQL)).WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(draftColumns).AddRow("c1", payload, 2, "admin", approvedAt))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM mentor_assignments WHERE course_id = $1")).WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO mentor_assignments")).
		WithArgs(sqlmock.AnyArg(), "c1", "m1", "10", "100", approvedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET food_cost = COALESCE($2, food_cost)")).
		WithArgs("c1", "20", "5", "ongoing", "Head of L&D", approvedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_drafts WHERE course_id = $1")).WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.Promote(context.Background(), PromoteParams{CourseID: "c1", ApprovedBy: "Head of L&D", ApprovedAt: approvedAt})
	require.NoError(t, err)
	assert.True(t, result.Promoted)
	assert.Equal(t, models.CourseStatusDraft, result.PreviousStatus)
	require.Len(t, result.Overlay.MentorAssignments, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseDraftPromoteIsNoopForOngoingCourse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseDraftRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockCourseSQL)).WithArgs("c1").WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("ongoing"))
	mock.ExpectRollback()

	result, err := repo.Promote(context.Background(), PromoteParams{CourseID: "c1", ApprovedBy: "x", ApprovedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, result.Promoted)
	assert.Equal(t, models.CourseStatusOngoing, result.PreviousStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseDraftPromotePrepareErrorRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseDraftRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockCourseSQL)).WithArgs("c1").WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("draft"))
	mock.ExpectQuery(regexp.QuoteMeta(lockDraftSQL)).WithArgs("c1").WillReturnRows(sqlmock.NewRows(draftColumns))
	mock.ExpectRollback()

	invalid := errors.New("unknown mentor")
	_, err := repo.Promote(context.Background(), PromoteParams{
		CourseID:   "c1",
		ApprovedAt: time.Now(),
		Prepare: func(models.DraftOverlay) (models.DraftOverlay, error) {
			return models.DraftOverlay{}, invalid
		},
	})
	assert.ErrorIs(t, err, invalid)
	assert.NoError(t, mock.ExpectationsWereMet())
}
