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

const courseColumns = `c.id, c.name, c.batch_code, c.description, c.start_date, c.end_date, c.class_schedule,
	c.seat_limit, c.status, c.food_cost, c.other_cost, c.prerequisite_course_id, c.approved_by, c.approved_at,
	c.created_by, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id AND e.approval_status = 'Approved') AS current_enrolled`

// CourseRepository provides database access for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new instance of CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func courseConditions(statuses []models.CourseStatus, search string) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, s := range statuses {
			values = append(values, string(s))
		}
		args = append(args, pq.Array(values))
		conditions = append(conditions, fmt.Sprintf("c.status = ANY($%d)", len(args)))
	}
	if search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.name) LIKE $%d OR LOWER(c.batch_code) LIKE $%d)", len(args), len(args)))
	}
	where := " WHERE 1=1"
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// List returns a page of courses and the total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	where, args := courseConditions(filter.Statuses, filter.Search)

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"start_date": "c.start_date",
		"name":       "c.name",
		"created_at": "c.created_at",
		"batch_code": "c.batch_code",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "c.start_date"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s FROM courses c%s ORDER BY %s %s, c.id LIMIT %d OFFSET %d", courseColumns, where, column, sortOrder, pageSize, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses c"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// ListAll returns every course matching the statuses and search, ordered by start date.
func (r *CourseRepository) ListAll(ctx context.Context, statuses []models.CourseStatus, search string) ([]models.Course, error) {
	where, args := courseConditions(statuses, search)
	query := fmt.Sprintf("SELECT %s FROM courses c%s ORDER BY c.start_date DESC, c.id", courseColumns, where)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list all courses: %w", err)
	}
	return courses, nil
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses c WHERE c.id::text = $1", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return &course, nil
}

// BatchCodeExists checks uniqueness of a batch code, ignoring the given course.
func (r *CourseRepository) BatchCodeExists(ctx context.Context, batchCode, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM courses WHERE LOWER(batch_code) = LOWER($1) AND ($2 = '' OR id::text <> $2))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, batchCode, excludeID); err != nil {
		return false, fmt.Errorf("check batch code: %w", err)
	}
	return exists, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	if course.Status == "" {
		course.Status = models.CourseStatusDraft
	}
	const query = `INSERT INTO courses (id, name, batch_code, description, start_date, end_date, class_schedule, seat_limit, status, food_cost, other_cost, prerequisite_course_id, created_by, created_at, updated_at)
VALUES (:id, :name, :batch_code, :description, :start_date, :end_date, :class_schedule, :seat_limit, :status, :food_cost, :other_cost, :prerequisite_course_id, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update replaces the descriptive, scheduling and capacity fields of a course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = :name, batch_code = :batch_code, description = :description, start_date = :start_date,
end_date = :end_date, class_schedule = :class_schedule, seat_limit = :seat_limit, prerequisite_course_id = :prerequisite_course_id,
updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a course. Drafts, assignments, comments and enrollments cascade.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TransitionStatus moves a course from one status to another. It reports false when the course
// was not in the expected status.
func (r *CourseRepository) TransitionStatus(ctx context.Context, id string, from, to models.CourseStatus) (bool, error) {
	const query = `UPDATE courses SET status = $3, updated_at = $4 WHERE id::text = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("transition course status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition course status: %w", err)
	}
	return affected > 0, nil
}

// UpdateCosts writes the official food and other costs. Nil values keep the stored amount.
func (r *CourseRepository) UpdateCosts(ctx context.Context, id string, food, other *models.Amount) error {
	const query = `UPDATE courses SET food_cost = COALESCE($2, food_cost), other_cost = COALESCE($3, other_cost), updated_at = $4 WHERE id::text = $1`
	res, err := r.db.ExecContext(ctx, query, id, amountArg(food), amountArg(other), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update course costs: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func amountArg(a *models.Amount) interface{} {
	if a == nil {
		return nil
	}
	return a.Decimal.String()
}
