package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
	"github.com/noah-isme/lnd-admin-api/pkg/importer"
	"github.com/noah-isme/lnd-admin-api/pkg/jobs"
	"github.com/noah-isme/lnd-admin-api/pkg/storage"
)

type importJobStore interface {
	Create(ctx context.Context, job *models.ImportJob) error
	FindByID(ctx context.Context, id string) (*models.ImportJob, error)
	ListUnfinished(ctx context.Context) ([]models.ImportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id string, result models.ImportResult) error
	MarkFailed(ctx context.Context, id, message string) error
}

type importFileStore interface {
	SaveStream(filename string, r io.Reader, maxBytes int64) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type importDispatcher interface {
	TryEnqueue(job jobs.Job) error
}

// ImportServiceConfig governs upload limits and file retention.
type ImportServiceConfig struct {
	MaxFileSize     int64
	CleanupInterval time.Duration
	FileRetention   time.Duration
}

// ImportService accepts roster and attendance uploads and queues them for processing.
type ImportService struct {
	repo    importJobStore
	files   importFileStore
	courses courseFinder
	queue   importDispatcher
	logger  *zap.Logger
	cfg     ImportServiceConfig
}

// NewImportService constructs the import service.
func NewImportService(repo importJobStore, files importFileStore, courses courseFinder, queue importDispatcher, logger *zap.Logger, cfg ImportServiceConfig) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	return &ImportService{repo: repo, files: files, courses: courses, queue: queue, logger: logger, cfg: cfg}
}

// ParseImportKind validates the kind segment of an upload route.
func ParseImportKind(raw string) (models.ImportKind, bool) {
	switch kind := models.ImportKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case models.ImportKindEnrollments, models.ImportKindAttendance:
		return kind, true
	default:
		return "", false
	}
}

// Upload stores the CSV file, records a queued job and hands it to the worker pool.
func (s *ImportService) Upload(ctx context.Context, courseID string, kind models.ImportKind, filename string, r io.Reader, actor *models.JWTClaims) (*dto.ImportJobResponse, error) {
	if _, ok := ParseImportKind(string(kind)); !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "import kind must be enrollments or attendance")
	}
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only .csv files are accepted")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if kind == models.ImportKindEnrollments && course.Status == models.CourseStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot enroll participants into a completed course")
	}

	jobID := uuid.NewString()
	stored, err := s.files.SaveStream(path.Join(courseID, jobID+".csv"), r, s.cfg.MaxFileSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxFileSize))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}

	job := &models.ImportJob{
		ID:           jobID,
		CourseID:     courseID,
		Kind:         kind,
		FilePath:     stored,
		OriginalName: filepath.Base(filename),
		Status:       models.ImportStatusQueued,
		CreatedBy:    actorName(actor),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		_ = s.files.Delete(stored)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create import job")
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: job.ID, Type: string(kind)}); err != nil {
		msg := "failed to enqueue job"
		if markErr := s.repo.MarkFailed(ctx, job.ID, msg); markErr != nil {
			s.logger.Sugar().Warnw("failed to mark import failed", "job_id", job.ID, "error", markErr)
		}
		_ = s.files.Delete(stored)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrQueueUnavailable, "import queue is full, retry later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue import job")
	}
	return &dto.ImportJobResponse{ID: job.ID, Kind: job.Kind, Status: job.Status}, nil
}

// Get returns an import job with its result summary.
func (s *ImportService) Get(ctx context.Context, id string) (*models.ImportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "import job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load import job")
	}
	return job, nil
}

// RecoverPendingJobs replays queued and interrupted jobs after a restart.
func (s *ImportService) RecoverPendingJobs(ctx context.Context) int {
	pending, err := s.repo.ListUnfinished(ctx)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover import jobs", "error", err)
		return 0
	}
	requeued := 0
	for _, job := range pending {
		if err := s.queue.TryEnqueue(jobs.Job{ID: job.ID, Type: string(job.Kind)}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue import job", "job_id", job.ID, "error", err)
			continue
		}
		requeued++
	}
	return requeued
}

// StartCleanup periodically removes stored uploads older than the retention period.
func (s *ImportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 || s.cfg.FileRetention <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.files.CleanupOlderThan(s.cfg.FileRetention)
				if err != nil {
					s.logger.Sugar().Warnw("import cleanup failed", "error", err)
					continue
				}
				if len(removed) > 0 {
					s.logger.Sugar().Infow("removed expired import files", "count", len(removed))
				}
			}
		}
	}()
}

// ImportWorker applies queued uploads to the directory and enrollments.
type ImportWorker struct {
	repo        importJobStore
	files       importFileStore
	courses     courseFinder
	students    studentUpserter
	enrollments *EnrollmentService
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
}

type studentUpserter interface {
	Upsert(ctx context.Context, student *models.Student) (bool, error)
}

// ImportWorkerParams groups worker dependencies.
type ImportWorkerParams struct {
	Jobs        importJobStore
	Files       importFileStore
	Courses     courseFinder
	Students    studentUpserter
	Enrollments *EnrollmentService
	Cache       *CacheService
	Metrics     *MetricsService
	Logger      *zap.Logger
}

// NewImportWorker constructs a worker.
func NewImportWorker(params ImportWorkerParams) *ImportWorker {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &ImportWorker{
		repo:        params.Jobs,
		files:       params.Files,
		courses:     params.Courses,
		students:    params.Students,
		enrollments: params.Enrollments,
		cache:       params.Cache,
		metrics:     params.Metrics,
		logger:      params.Logger,
	}
}

// Handle processes a queue job. Errors are returned only for transient failures so the queue
// retries them; bad files finish the job as failed.
func (w *ImportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.FindByID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			w.logger.Warn("import job vanished", zap.String("job_id", job.ID))
			return nil
		}
		return err
	}
	if record.Status == models.ImportStatusFinished || record.Status == models.ImportStatusFailed {
		return nil
	}
	if err := w.repo.MarkProcessing(ctx, record.ID); err != nil {
		return err
	}

	course, err := w.courses.FindByID(ctx, record.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return w.fail(ctx, record, "course no longer exists")
		}
		return err
	}

	file, err := w.files.Open(record.FilePath)
	if err != nil {
		return w.fail(ctx, record, "uploaded file is missing")
	}
	defer file.Close()

	var result *models.ImportResult
	switch record.Kind {
	case models.ImportKindEnrollments:
		result, err = w.applyEnrollments(ctx, course, record, file)
	case models.ImportKindAttendance:
		result, err = w.applyAttendance(ctx, course, file)
	default:
		return w.fail(ctx, record, fmt.Sprintf("unsupported import kind %q", record.Kind))
	}
	if err != nil {
		var parseErr *parseFailure
		if errors.As(err, &parseErr) {
			return w.fail(ctx, record, parseErr.Error())
		}
		return err
	}

	if err := w.repo.MarkFinished(ctx, record.ID, *result); err != nil {
		return err
	}
	w.metrics.RecordImport(record.Kind, models.ImportStatusFinished, result)
	w.cache.ForgetCourse(ctx, record.CourseID)
	if err := w.files.Delete(record.FilePath); err != nil {
		w.logger.Sugar().Warnw("failed to delete processed import", "job_id", record.ID, "error", err)
	}
	w.logger.Info("import finished",
		zap.String("job_id", record.ID),
		zap.String("kind", string(record.Kind)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	return nil
}

// HandleExhausted marks a job failed once the queue gives up retrying it.
func (w *ImportWorker) HandleExhausted(ctx context.Context, job jobs.Job, cause error) {
	msg := "import failed"
	if cause != nil {
		msg = cause.Error()
	}
	if err := w.repo.MarkFailed(context.WithoutCancel(ctx), job.ID, msg); err != nil {
		w.logger.Sugar().Warnw("failed to mark import failed", "job_id", job.ID, "error", err)
	}
	w.metrics.RecordImport(models.ImportKind(job.Type), models.ImportStatusFailed, nil)
}

type parseFailure struct{ err error }

func (p *parseFailure) Error() string { return "invalid file: " + p.err.Error() }

func (w *ImportWorker) fail(ctx context.Context, record *models.ImportJob, message string) error {
	if err := w.repo.MarkFailed(ctx, record.ID, message); err != nil {
		return err
	}
	w.metrics.RecordImport(record.Kind, models.ImportStatusFailed, nil)
	w.logger.Warn("import failed", zap.String("job_id", record.ID), zap.String("reason", message))
	return nil
}

func (w *ImportWorker) applyEnrollments(ctx context.Context, course *models.Course, record *models.ImportJob, r io.Reader) (*models.ImportResult, error) {
	rows, rowErrors, err := importer.ParseEnrollments(r)
	if err != nil {
		return nil, &parseFailure{err: err}
	}
	result := newImportResult(len(rows), rowErrors)
	actor := &models.JWTClaims{FullName: record.CreatedBy}
	for _, row := range rows {
		student := &models.Student{
			EmployeeID: row.EmployeeID,
			Name:       row.Name,
			Email:      row.Email,
			SBU:        row.SBU,
			Department: row.Department,
		}
		if _, err := w.students.Upsert(ctx, student); err != nil {
			if appErrors.FromError(err).Code == appErrors.ErrValidation.Code {
				result.Errors = append(result.Errors, models.ImportRowError{Line: row.Line, Message: appErrors.FromError(err).Message})
				continue
			}
			return nil, err
		}
		_, created, err := w.enrollments.EnrollStudent(ctx, course, student, models.ApprovalApproved, actor)
		if err != nil {
			return nil, err
		}
		if created {
			result.Created++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

func (w *ImportWorker) applyAttendance(ctx context.Context, course *models.Course, r io.Reader) (*models.ImportResult, error) {
	rows, rowErrors, err := importer.ParseAttendance(r)
	if err != nil {
		return nil, &parseFailure{err: err}
	}
	result := newImportResult(len(rows), rowErrors)
	for _, row := range rows {
		enrollment, err := w.enrollments.FindParticipant(ctx, course.ID, row.EmployeeID, row.Email)
		if err != nil {
			if appErrors.FromError(err).Code == appErrors.ErrNotFound.Code {
				result.Errors = append(result.Errors, models.ImportRowError{Line: row.Line, Message: "participant is not enrolled in this course"})
				continue
			}
			return nil, err
		}
		if _, err := w.enrollments.ApplyResult(ctx, enrollment, models.EnrollmentResult{
			CompletionStatus: normalizeOptional(&row.CompletionStatus),
			Score:            row.Score,
			Present:          row.Present,
			TotalAttendance:  row.Total,
		}); err != nil {
			if appErrors.FromError(err).Code == appErrors.ErrValidation.Code {
				result.Errors = append(result.Errors, models.ImportRowError{Line: row.Line, Message: appErrors.FromError(err).Message})
				continue
			}
			return nil, err
		}
		result.Updated++
	}
	return result, nil
}

func newImportResult(rows int, rowErrors []importer.RowError) *models.ImportResult {
	result := &models.ImportResult{TotalRows: rows + len(rowErrors), Errors: make([]models.ImportRowError, 0, len(rowErrors))}
	for _, re := range rowErrors {
		result.Errors = append(result.Errors, models.ImportRowError{Line: re.Line, Message: re.Message})
	}
	return result
}
