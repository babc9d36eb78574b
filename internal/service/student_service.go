package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByEmployeeID(ctx context.Context, employeeID string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	UpsertByEmployeeID(ctx context.Context, student *models.Student) (bool, error)
}

// StudentService handles the employee directory used for enrollments.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	filter.Page, filter.PageSize = paginate(filter.Page, filter.PageSize)
	filter.Search = strings.TrimSpace(filter.Search)
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a student by id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new employee. Employee ids are unique.
func (s *StudentService) Create(ctx context.Context, req dto.CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	employeeID := strings.TrimSpace(req.EmployeeID)
	if _, err := s.repo.FindByEmployeeID(ctx, employeeID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "employee_id already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate employee_id")
	}
	student := &models.Student{
		EmployeeID: employeeID,
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		SBU:        strings.TrimSpace(req.SBU),
		Department: strings.TrimSpace(req.Department),
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Upsert creates the employee or refreshes the directory fields of an existing one. It
// reports whether a new student was created.
func (s *StudentService) Upsert(ctx context.Context, student *models.Student) (bool, error) {
	student.EmployeeID = strings.TrimSpace(student.EmployeeID)
	if student.EmployeeID == "" || strings.TrimSpace(student.Name) == "" {
		return false, appErrors.Clone(appErrors.ErrValidation, "employee_id and name are required")
	}
	student.Email = strings.ToLower(strings.TrimSpace(student.Email))
	created, err := s.repo.UpsertByEmployeeID(ctx, student)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save student")
	}
	return created, nil
}
