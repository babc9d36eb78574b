package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lnd-admin-api/internal/models"
)

// CommentRepository stores the append-only course comment trail.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository creates a new instance of CommentRepository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// ListByCourse returns comments oldest first.
func (r *CommentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Comment, error) {
	const query = `SELECT id, course_id, comment, created_by, created_at FROM course_comments WHERE course_id::text = $1 ORDER BY created_at ASC, id`
	comments := make([]models.Comment, 0)
	if err := r.db.SelectContext(ctx, &comments, query, courseID); err != nil {
		return nil, fmt.Errorf("list course comments: %w", err)
	}
	return comments, nil
}

// Create appends a comment.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	comment.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO course_comments (id, course_id, comment, created_by, created_at) VALUES (:id, :course_id, :comment, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create course comment: %w", err)
	}
	return nil
}
