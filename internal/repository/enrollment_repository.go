package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lnd-admin-api/internal/models"
)

const enrollmentColumns = `e.id, e.course_id, e.student_id,
	s.name AS student_name, s.email AS student_email, s.employee_id AS student_employee_id,
	s.sbu AS student_sbu, s.department AS student_department,
	e.approval_status, e.eligibility_status, e.completion_status, e.score, e.present, e.total_attendance,
	e.attendance_percentage, e.status_reason, e.status_changed_by, e.status_changed_at, e.enrolled_at`

const enrollmentFrom = ` FROM enrollments e JOIN students s ON s.id = e.student_id`

// EligibilityFacts are the enrollment history figures the eligibility rules need.
type EligibilityFacts struct {
	PrerequisiteCompleted bool
	AlreadyCompleted      bool
	ApprovedThisYear      int
}

// EnrollmentRepository provides database access for enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new instance of EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments with student details and total count.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var conditions []string
	var args []interface{}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("e.course_id::text = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("e.student_id::text = $%d", len(args)))
	}
	if len(filter.ApprovalStatuses) > 0 {
		values := make([]string, 0, len(filter.ApprovalStatuses))
		for _, s := range filter.ApprovalStatuses {
			values = append(values, string(s))
		}
		args = append(args, pq.Array(values))
		conditions = append(conditions, fmt.Sprintf("e.approval_status = ANY($%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.name) LIKE $%d OR LOWER(s.email) LIKE $%d OR LOWER(s.employee_id) LIKE $%d)", len(args), len(args), len(args)))
	}
	where := " WHERE 1=1"
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "s.name",
		"score":        "e.score",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "e.enrolled_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT %s%s%s ORDER BY %s %s, e.id LIMIT %d OFFSET %d", enrollmentColumns, enrollmentFrom, where, column, sortOrder, pageSize, (page-1)*pageSize)
	enrollments := make([]models.Enrollment, 0)
	if err := r.db.SelectContext(ctx, &enrollments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+enrollmentFrom+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListByCourse returns every enrollment of a course in enrollment order.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s%s WHERE e.course_id = $1 ORDER BY e.enrolled_at ASC, e.id", enrollmentColumns, enrollmentFrom)
	enrollments := make([]models.Enrollment, 0)
	if err := r.db.SelectContext(ctx, &enrollments, query, courseID); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return enrollments, nil
}

// FindByID returns an enrollment by identifier.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return r.findOne(ctx, "e.id::text = $1", id)
}

// FindByCourseAndStudent returns the enrollment of a student in a course.
func (r *EnrollmentRepository) FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Enrollment, error) {
	return r.findOne(ctx, "e.course_id = $1 AND e.student_id = $2", courseID, studentID)
}

// FindByCourseAndParticipant matches an enrollment by employee id or, failing that, email.
func (r *EnrollmentRepository) FindByCourseAndParticipant(ctx context.Context, courseID, employeeID, email string) (*models.Enrollment, error) {
	return r.findOne(ctx, "e.course_id = $1 AND (($2 <> '' AND s.employee_id = $2) OR ($2 = '' AND $3 <> '' AND LOWER(s.email) = LOWER($3)))", courseID, employeeID, email)
}

func (r *EnrollmentRepository) findOne(ctx context.Context, condition string, args ...interface{}) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s%s WHERE %s LIMIT 1", enrollmentColumns, enrollmentFrom, condition)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// Create inserts an enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, course_id, student_id, approval_status, eligibility_status, status_reason, status_changed_by, status_changed_at, enrolled_at)
VALUES (:id, :course_id, :student_id, :approval_status, :eligibility_status, :status_reason, :status_changed_by, :status_changed_at, :enrolled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus applies an approval change only if the enrollment is still in the expected
// status. It reports false when another change got there first.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, change models.EnrollmentStatusChange) (bool, error) {
	const query = `UPDATE enrollments SET approval_status = $2, status_reason = $3, status_changed_by = $4, status_changed_at = $5
WHERE id = $1 AND approval_status = $6`
	res, err := r.db.ExecContext(ctx, query, change.ID, change.To, change.Reason, change.ChangedBy, change.ChangedAt, change.From)
	if err != nil {
		return false, fmt.Errorf("update enrollment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update enrollment status: %w", err)
	}
	return affected > 0, nil
}

// UpdateResult stores score and attendance. Nil values keep what is stored, except the
// attendance percentage which always follows the stored counts.
func (r *EnrollmentRepository) UpdateResult(ctx context.Context, id string, result models.EnrollmentResult) error {
	const query = `UPDATE enrollments SET
	completion_status = COALESCE($2, completion_status),
	score = COALESCE($3, score),
	present = COALESCE($4, present),
	total_attendance = COALESCE($5, total_attendance),
	attendance_percentage = $6
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, result.CompletionStatus, result.Score, result.Present, result.TotalAttendance, result.AttendancePercentage)
	if err != nil {
		return fmt.Errorf("update enrollment result: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByCourse counts enrollments of a course, optionally limited to some statuses.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseID string, statuses []models.ApprovalStatus) (int, error) {
	query := `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`
	args := []interface{}{courseID}
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, s := range statuses {
			values = append(values, string(s))
		}
		args = append(args, pq.Array(values))
		query += " AND approval_status = ANY($2)"
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count course enrollments: %w", err)
	}
	return count, nil
}

// CountPendingActive counts pending requests in courses that have not completed.
func (r *EnrollmentRepository) CountPendingActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments e JOIN courses c ON c.id = e.course_id
WHERE e.approval_status = 'Pending' AND c.status <> 'completed'`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count pending enrollments: %w", err)
	}
	return count, nil
}

// EligibilityFacts gathers the student's history relevant to enrolling in the course.
func (r *EnrollmentRepository) EligibilityFacts(ctx context.Context, studentID string, course *models.Course) (*EligibilityFacts, error) {
	facts := &EligibilityFacts{}
	if course.PrerequisiteCourseID != nil && *course.PrerequisiteCourseID != "" {
		const prerequisiteQuery = `SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND completion_status = 'Completed')`
		if err := r.db.GetContext(ctx, &facts.PrerequisiteCompleted, prerequisiteQuery, studentID, *course.PrerequisiteCourseID); err != nil {
			return nil, fmt.Errorf("check prerequisite: %w", err)
		}
	}

	const takenQuery = `SELECT EXISTS(SELECT 1 FROM enrollments e JOIN courses c ON c.id = e.course_id
WHERE e.student_id = $1 AND c.id <> $2 AND LOWER(c.name) = LOWER($3) AND e.completion_status = 'Completed')`
	if err := r.db.GetContext(ctx, &facts.AlreadyCompleted, takenQuery, studentID, course.ID, course.Name); err != nil {
		return nil, fmt.Errorf("check completed courses: %w", err)
	}

	const yearQuery = `SELECT COUNT(*) FROM enrollments e JOIN courses c ON c.id = e.course_id
WHERE e.student_id = $1 AND c.id <> $2 AND e.approval_status = 'Approved' AND EXTRACT(YEAR FROM c.start_date) = $3`
	if err := r.db.GetContext(ctx, &facts.ApprovedThisYear, yearQuery, studentID, course.ID, course.StartDate.Year()); err != nil {
		return nil, fmt.Errorf("count approved enrollments: %w", err)
	}
	return facts, nil
}
