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

const mentorAssignmentColumns = `ma.id, ma.course_id, ma.mentor_id, ma.hours_taught, ma.amount_paid,
	COALESCE(m.name, '') AS "mentor.name", COALESCE(m.is_internal, FALSE) AS "mentor.is_internal"`

// MentorAssignmentRepository manages official mentor assignments of approved courses.
type MentorAssignmentRepository struct {
	db *sqlx.DB
}

// NewMentorAssignmentRepository creates a new instance of MentorAssignmentRepository.
func NewMentorAssignmentRepository(db *sqlx.DB) *MentorAssignmentRepository {
	return &MentorAssignmentRepository{db: db}
}

// ListByCourse returns the official assignments of a course.
func (r *MentorAssignmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.MentorAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM mentor_assignments ma LEFT JOIN mentors m ON m.id = ma.mentor_id
WHERE ma.course_id = $1 ORDER BY ma.created_at ASC, ma.id`, mentorAssignmentColumns)
	assignments := make([]models.MentorAssignment, 0)
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("list mentor assignments: %w", err)
	}
	return assignments, nil
}

// FindByID returns one assignment scoped to its course.
func (r *MentorAssignmentRepository) FindByID(ctx context.Context, courseID, id string) (*models.MentorAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM mentor_assignments ma LEFT JOIN mentors m ON m.id = ma.mentor_id
WHERE ma.course_id = $1 AND ma.id::text = $2`, mentorAssignmentColumns)
	var assignment models.MentorAssignment
	if err := r.db.GetContext(ctx, &assignment, query, courseID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find mentor assignment: %w", err)
	}
	return &assignment, nil
}

// Upsert inserts the assignment or replaces hours and amount of the existing row for the same
// mentor, keeping one row per mentor and course. The stored row id is written back.
func (r *MentorAssignmentRepository) Upsert(ctx context.Context, assignment *models.MentorAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	const query = `INSERT INTO mentor_assignments (id, course_id, mentor_id, hours_taught, amount_paid, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (course_id, mentor_id) DO UPDATE SET hours_taught = EXCLUDED.hours_taught, amount_paid = EXCLUDED.amount_paid
RETURNING id`
	var id string
	if err := r.db.GetContext(ctx, &id, query, assignment.ID, assignment.CourseID, assignment.MentorID,
		assignment.HoursTaught, assignment.AmountPaid, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert mentor assignment: %w", err)
	}
	assignment.ID = id
	return nil
}

// Update changes hours and amount of an assignment. Nil values keep the stored amount.
func (r *MentorAssignmentRepository) Update(ctx context.Context, courseID, id string, hours, amount *models.Amount) error {
	const query = `UPDATE mentor_assignments SET hours_taught = COALESCE($3, hours_taught), amount_paid = COALESCE($4, amount_paid)
WHERE course_id = $1 AND id::text = $2`
	res, err := r.db.ExecContext(ctx, query, courseID, id, amountArg(hours), amountArg(amount))
	if err != nil {
		return fmt.Errorf("update mentor assignment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an assignment from a course.
func (r *MentorAssignmentRepository) Delete(ctx context.Context, courseID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mentor_assignments WHERE course_id = $1 AND id::text = $2`, courseID, id)
	if err != nil {
		return fmt.Errorf("delete mentor assignment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
