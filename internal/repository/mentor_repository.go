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

// MentorRepository provides database access for the mentor directory.
type MentorRepository struct {
	db *sqlx.DB
}

// NewMentorRepository creates a new instance of MentorRepository.
func NewMentorRepository(db *sqlx.DB) *MentorRepository {
	return &MentorRepository{db: db}
}

// List returns mentors matching the filter with total count.
func (r *MentorRepository) List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, int, error) {
	baseQuery := `FROM mentors WHERE 1=1`
	var args []interface{}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		baseQuery += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args), len(args))
	}
	if filter.IsInternal != nil {
		args = append(args, *filter.IsInternal)
		baseQuery += fmt.Sprintf(" AND is_internal = $%d", len(args))
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT id, name, email, is_internal, created_at %s ORDER BY name ASC LIMIT %d OFFSET %d", baseQuery, pageSize, (page-1)*pageSize)
	mentors := make([]models.Mentor, 0)
	if err := r.db.SelectContext(ctx, &mentors, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list mentors: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count mentors: %w", err)
	}
	return mentors, total, nil
}

// FindByID returns a mentor by identifier.
func (r *MentorRepository) FindByID(ctx context.Context, id string) (*models.Mentor, error) {
	var mentor models.Mentor
	if err := r.db.GetContext(ctx, &mentor, `SELECT id, name, email, is_internal, created_at FROM mentors WHERE id::text = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find mentor by id: %w", err)
	}
	return &mentor, nil
}

// Create inserts a mentor.
func (r *MentorRepository) Create(ctx context.Context, mentor *models.Mentor) error {
	if mentor.ID == "" {
		mentor.ID = uuid.NewString()
	}
	mentor.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO mentors (id, name, email, is_internal, created_at) VALUES (:id, :name, :email, :is_internal, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mentor); err != nil {
		return fmt.Errorf("create mentor: %w", err)
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
