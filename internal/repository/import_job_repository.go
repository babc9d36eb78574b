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

const importJobColumns = `id, course_id, kind, file_path, original_name, status, result, error_message, created_by, created_at, finished_at`

// ImportJobRepository tracks bulk upload jobs.
type ImportJobRepository struct {
	db *sqlx.DB
}

// NewImportJobRepository creates a new instance of ImportJobRepository.
func NewImportJobRepository(db *sqlx.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

// Create inserts a queued job.
func (r *ImportJobRepository) Create(ctx context.Context, job *models.ImportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ImportStatusQueued
	}
	job.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO import_jobs (id, course_id, kind, file_path, original_name, status, created_by, created_at)
VALUES (:id, :course_id, :kind, :file_path, :original_name, :status, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

// FindByID returns a job by identifier.
func (r *ImportJobRepository) FindByID(ctx context.Context, id string) (*models.ImportJob, error) {
	var job models.ImportJob
	if err := r.db.GetContext(ctx, &job, fmt.Sprintf("SELECT %s FROM import_jobs WHERE id::text = $1", importJobColumns), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find import job: %w", err)
	}
	return &job, nil
}

// ListUnfinished returns queued or processing jobs, oldest first, for recovery after restart.
func (r *ImportJobRepository) ListUnfinished(ctx context.Context) ([]models.ImportJob, error) {
	query := fmt.Sprintf("SELECT %s FROM import_jobs WHERE status IN ('QUEUED', 'PROCESSING') ORDER BY created_at ASC", importJobColumns)
	jobs := make([]models.ImportJob, 0)
	if err := r.db.SelectContext(ctx, &jobs, query); err != nil {
		return nil, fmt.Errorf("list unfinished import jobs: %w", err)
	}
	return jobs, nil
}

// MarkProcessing flags a job as picked up by a worker.
func (r *ImportJobRepository) MarkProcessing(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE import_jobs SET status = $2 WHERE id = $1`, id, models.ImportStatusProcessing); err != nil {
		return fmt.Errorf("mark import processing: %w", err)
	}
	return nil
}

// MarkFinished stores the result summary.
func (r *ImportJobRepository) MarkFinished(ctx context.Context, id string, result models.ImportResult) error {
	const query = `UPDATE import_jobs SET status = $2, result = $3, error_message = NULL, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ImportStatusFinished, result, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark import finished: %w", err)
	}
	return nil
}

// MarkFailed stores the failure message.
func (r *ImportJobRepository) MarkFailed(ctx context.Context, id, message string) error {
	const query = `UPDATE import_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ImportStatusFailed, message, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark import failed: %w", err)
	}
	return nil
}
