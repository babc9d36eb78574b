package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

type mentorRepository interface {
	List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, int, error)
	Create(ctx context.Context, mentor *models.Mentor) error
}

// MentorService manages the mentor directory.
type MentorService struct {
	repo      mentorRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMentorService constructs the mentor service.
func NewMentorService(repo mentorRepository, validate *validator.Validate, logger *zap.Logger) *MentorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MentorService{repo: repo, validator: validate, logger: logger}
}

// List returns mentors and pagination metadata.
func (s *MentorService) List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, *models.Pagination, error) {
	filter.Page, filter.PageSize = paginate(filter.Page, filter.PageSize)
	filter.Search = strings.TrimSpace(filter.Search)
	mentors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mentors")
	}
	return mentors, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Create registers a mentor. Mentors are internal unless stated otherwise.
func (s *MentorService) Create(ctx context.Context, req dto.CreateMentorRequest) (*models.Mentor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mentor payload")
	}
	mentor := &models.Mentor{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		IsInternal: true,
	}
	if req.IsInternal != nil {
		mentor.IsInternal = *req.IsInternal
	}
	if err := s.repo.Create(ctx, mentor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create mentor")
	}
	return mentor, nil
}
