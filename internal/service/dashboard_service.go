package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/lifecycle"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

type dashboardCourseLister interface {
	ListAll(ctx context.Context, statuses []models.CourseStatus, search string) ([]models.Course, error)
}

type pendingApprovalCounter interface {
	CountPendingActive(ctx context.Context) (int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Courses     dashboardCourseLister
	Reader      *CourseReader
	Enrollments pendingApprovalCounter
	Cache       *CacheService
	Metrics     *MetricsService
	Logger      *zap.Logger
	Clock       lifecycle.Clock
	Config      DashboardServiceConfig
}

// DashboardService composes the admin landing page summary.
type DashboardService struct {
	courses     dashboardCourseLister
	reader      *CourseReader
	enrollments pendingApprovalCounter
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	now         lifecycle.Clock
	cfg         DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := params.Clock
	if clock == nil {
		clock = lifecycle.SystemClock
	}
	return &DashboardService{
		courses:     params.Courses,
		reader:      params.Reader,
		enrollments: params.Enrollments,
		cache:       params.Cache,
		metrics:     params.Metrics,
		logger:      logger,
		now:         clock,
		cfg:         cfg,
	}
}

// Summary returns today's dashboard and reports whether it was served from cache. Snapshots are
// keyed by date because phases move with the calendar.
func (s *DashboardService) Summary(ctx context.Context) (*dto.DashboardResponse, bool, error) {
	today := s.now()
	day := today.Format(dateLayout)
	if cached, hit := s.cache.Dashboard(ctx, day); hit {
		return cached, true, nil
	}

	summary, err := s.compose(ctx, today)
	if err != nil {
		return nil, false, err
	}
	s.cache.StoreDashboard(ctx, day, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

func (s *DashboardService) compose(ctx context.Context, today time.Time) (*dto.DashboardResponse, error) {
	start := time.Now()
	courses, err := s.courses.ListAll(ctx, nil, "")
	s.metrics.ObserveDBQuery("dashboard_courses", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}

	start = time.Now()
	pending, err := s.enrollments.CountPendingActive(ctx)
	s.metrics.ObserveDBQuery("dashboard_pending", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending enrollments")
	}

	summary := &dto.DashboardResponse{
		Date:              today.Format(dateLayout),
		PendingApprovals:  pending,
		TotalTrainingCost: models.ZeroAmount,
		GeneratedAt:       time.Now().UTC(),
	}
	for i := range courses {
		course := &courses[i]
		switch lifecycle.Phase(course, today) {
		case lifecycle.StatusPlanning:
			summary.Courses.Planning++
		case lifecycle.StatusUpcoming:
			summary.Courses.Upcoming++
		case lifecycle.StatusOngoing:
			summary.Courses.Ongoing++
		case lifecycle.StatusCompleted:
			summary.Courses.Completed++
		}
		if course.IsDraft() {
			continue
		}
		if _, err := s.reader.Hydrate(ctx, course); err != nil {
			return nil, err
		}
		summary.TotalTrainingCost = summary.TotalTrainingCost.Add(lifecycle.TotalTrainingCost(course))
		if course.Status != models.CourseStatusCompleted {
			summary.SeatsUsed += course.CurrentEnrolled
			summary.SeatCapacity += course.SeatLimit
		}
	}
	return summary, nil
}
