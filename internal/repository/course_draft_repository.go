package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lnd-admin-api/internal/models"
)

var (
	// ErrVersionConflict is returned when a conditional draft write sees a newer version.
	ErrVersionConflict = errors.New("draft version conflict")
	// ErrCourseNotDraft is returned when an overlay write targets a course that left draft.
	ErrCourseNotDraft = errors.New("course is not in draft status")
)

// OverlayMutation transforms the current overlay inside the draft transaction.
type OverlayMutation func(current models.DraftOverlay) (models.DraftOverlay, error)

// PromoteParams drives the approval transaction.
type PromoteParams struct {
	CourseID   string
	ApprovedBy string
	ApprovedAt time.Time
	// Prepare validates and normalises the overlay before it becomes official.
	Prepare OverlayMutation
}

// PromoteResult reports what the approval transaction found and did.
type PromoteResult struct {
	PreviousStatus models.CourseStatus
	Promoted       bool
	Overlay        models.DraftOverlay
}

// CourseDraftRepository persists draft overlays and promotes them on approval.
type CourseDraftRepository struct {
	db *sqlx.DB
}

// NewCourseDraftRepository creates a new instance of CourseDraftRepository.
func NewCourseDraftRepository(db *sqlx.DB) *CourseDraftRepository {
	return &CourseDraftRepository{db: db}
}

// Get returns the stored overlay. sql.ErrNoRows means the course has no overlay yet.
func (r *CourseDraftRepository) Get(ctx context.Context, courseID string) (*models.CourseDraft, error) {
	const query = `SELECT course_id, payload, version, updated_by, updated_at FROM course_drafts WHERE course_id::text = $1`
	var draft models.CourseDraft
	if err := r.db.GetContext(ctx, &draft, query, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get course draft: %w", err)
	}
	return &draft, nil
}

// Save replaces the whole overlay. With expectedVersion set the write only succeeds when the
// stored version still matches (0 meaning no overlay stored yet); without it the last writer
// wins.
func (r *CourseDraftRepository) Save(ctx context.Context, courseID string, overlay models.DraftOverlay, expectedVersion *int, updatedBy string) (draft *models.CourseDraft, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin draft transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockDraftCourse(ctx, tx, courseID); err != nil {
		return nil, err
	}
	current, err := lockOverlay(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	if expectedVersion != nil && *expectedVersion != current.Version {
		err = ErrVersionConflict
		return nil, err
	}
	if draft, err = writeOverlay(ctx, tx, courseID, overlay, current.Version, updatedBy); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit course draft: %w", err)
	}
	return draft, nil
}

// Mutate applies a read-modify-write to the overlay while holding row locks on the course and
// its draft, so concurrent edits serialise instead of overwriting each other.
func (r *CourseDraftRepository) Mutate(ctx context.Context, courseID, updatedBy string, mutate OverlayMutation) (draft *models.CourseDraft, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin draft transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockDraftCourse(ctx, tx, courseID); err != nil {
		return nil, err
	}
	current, err := lockOverlay(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	next, err := mutate(current.Payload)
	if err != nil {
		return nil, err
	}
	if draft, err = writeOverlay(ctx, tx, courseID, next, current.Version, updatedBy); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit course draft: %w", err)
	}
	return draft, nil
}

// Promote copies the overlay into the official mentor assignments and cost fields, marks the
// course ongoing and discards the overlay in one transaction. A course that is already ongoing
// is reported without changes so repeated approvals are harmless.
func (r *CourseDraftRepository) Promote(ctx context.Context, params PromoteParams) (result *PromoteResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approval transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status models.CourseStatus
	if err = tx.GetContext(ctx, &status, `SELECT status FROM courses WHERE id::text = $1 FOR UPDATE`, params.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock course: %w", err)
	}
	result = &PromoteResult{PreviousStatus: status}
	if status != models.CourseStatusDraft {
		if err = tx.Rollback(); err != nil {
			return nil, fmt.Errorf("release course lock: %w", err)
		}
		return result, nil
	}

	current, err := lockOverlay(ctx, tx, params.CourseID)
	if err != nil {
		return nil, err
	}
	overlay := current.Payload
	if params.Prepare != nil {
		if overlay, err = params.Prepare(overlay); err != nil {
			return nil, err
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM mentor_assignments WHERE course_id = $1`, params.CourseID); err != nil {
		return nil, fmt.Errorf("clear mentor assignments: %w", err)
	}
	const insertAssignment = `INSERT INTO mentor_assignments (id, course_id, mentor_id, hours_taught, amount_paid, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	for _, a := range overlay.MentorAssignments {
		if _, err = tx.ExecContext(ctx, insertAssignment, uuid.NewString(), params.CourseID, a.MentorID, a.HoursTaught, a.AmountPaid, params.ApprovedAt); err != nil {
			return nil, fmt.Errorf("insert mentor assignment: %w", err)
		}
	}

	const promoteCourse = `UPDATE courses SET food_cost = COALESCE($2, food_cost), other_cost = COALESCE($3, other_cost),
status = $4, approved_by = $5, approved_at = $6, updated_at = $6 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, promoteCourse, params.CourseID, amountArg(overlay.FoodCost), amountArg(overlay.OtherCost),
		models.CourseStatusOngoing, params.ApprovedBy, params.ApprovedAt); err != nil {
		return nil, fmt.Errorf("promote course: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM course_drafts WHERE course_id = $1`, params.CourseID); err != nil {
		return nil, fmt.Errorf("discard course draft: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval: %w", err)
	}
	result.Promoted = true
	result.Overlay = overlay
	return result, nil
}

func lockDraftCourse(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	var status models.CourseStatus
	if err := tx.GetContext(ctx, &status, `SELECT status FROM courses WHERE id::text = $1 FOR UPDATE`, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock course: %w", err)
	}
	if status != models.CourseStatusDraft {
		return ErrCourseNotDraft
	}
	return nil
}

// lockOverlay returns the current overlay, or an empty one with version 0 when none is stored.
func lockOverlay(ctx context.Context, tx *sqlx.Tx, courseID string) (*models.CourseDraft, error) {
	const query = `SELECT course_id, payload, version, updated_by, updated_at FROM course_drafts WHERE course_id::text = $1 FOR UPDATE`
	var draft models.CourseDraft
	if err := tx.GetContext(ctx, &draft, query, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.CourseDraft{
				CourseID: courseID,
				Payload:  models.DraftOverlay{MentorAssignments: []models.MentorAssignment{}},
			}, nil
		}
		return nil, fmt.Errorf("lock course draft: %w", err)
	}
	if draft.Payload.MentorAssignments == nil {
		draft.Payload.MentorAssignments = []models.MentorAssignment{}
	}
	return &draft, nil
}

func writeOverlay(ctx context.Context, tx *sqlx.Tx, courseID string, overlay models.DraftOverlay, currentVersion int, updatedBy string) (*models.CourseDraft, error) {
	const query = `INSERT INTO course_drafts (course_id, payload, version, updated_by, updated_at) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (course_id) DO UPDATE SET payload = EXCLUDED.payload, version = EXCLUDED.version,
updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	draft := &models.CourseDraft{
		CourseID:  courseID,
		Payload:   overlay,
		Version:   currentVersion + 1,
		UpdatedBy: updatedBy,
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, query, draft.CourseID, draft.Payload, draft.Version, draft.UpdatedBy, draft.UpdatedAt); err != nil {
		return nil, fmt.Errorf("write course draft: %w", err)
	}
	return draft, nil
}
