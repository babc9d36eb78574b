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

	"github.com/noah-isme/lnd-admin-api/internal/models"
)

const studentColumns = `id, employee_id, name, email, sbu, department, created_at`

// StudentRepository provides database access for the employee directory.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new instance of StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the filter with total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	baseQuery := `FROM students WHERE 1=1`
	var args []interface{}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		baseQuery += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(employee_id) LIKE $%d)", len(args), len(args), len(args))
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", studentColumns, baseQuery, pageSize, (page-1)*pageSize)

	students := make([]models.Student, 0)
	if err := r.db.SelectContext(ctx, &students, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student by identifier.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return r.findOne(ctx, "id::text = $1", id)
}

// FindByEmployeeID returns a student by employee number.
func (r *StudentRepository) FindByEmployeeID(ctx context.Context, employeeID string) (*models.Student, error) {
	return r.findOne(ctx, "employee_id = $1", employeeID)
}

// FindByEmail returns a student by email, case-insensitively.
func (r *StudentRepository) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	return r.findOne(ctx, "LOWER(email) = LOWER($1)", email)
}

func (r *StudentRepository) findOne(ctx context.Context, condition string, arg interface{}) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE %s LIMIT 1", studentColumns, condition)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// Create inserts a student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO students (id, employee_id, name, email, sbu, department, created_at)
VALUES (:id, :employee_id, :name, :email, :sbu, :department, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// UpsertByEmployeeID inserts the student or refreshes the directory fields of the existing
// employee. It reports whether a new row was created and writes the stored id back.
func (r *StudentRepository) UpsertByEmployeeID(ctx context.Context, student *models.Student) (bool, error) {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	const query = `INSERT INTO students (id, employee_id, name, email, sbu, department, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (employee_id) DO UPDATE SET
	name = EXCLUDED.name,
	email = COALESCE(NULLIF(EXCLUDED.email, ''), students.email),
	sbu = COALESCE(NULLIF(EXCLUDED.sbu, ''), students.sbu),
	department = COALESCE(NULLIF(EXCLUDED.department, ''), students.department)
RETURNING id, (xmax = 0) AS inserted`
	var row struct {
		ID       string `db:"id"`
		Inserted bool   `db:"inserted"`
	}
	if err := r.db.GetContext(ctx, &row, query, student.ID, student.EmployeeID, student.Name, student.Email,
		student.SBU, student.Department, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("upsert student: %w", err)
	}
	student.ID = row.ID
	return row.Inserted, nil
}
