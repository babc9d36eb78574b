package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/lifecycle"
	"github.com/noah-isme/lnd-admin-api/pkg/cache"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

// SnapshotStore keeps JSON snapshots under string keys.
type SnapshotStore interface {
	Load(ctx context.Context, key string, dest interface{}) error
	Save(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// CacheService holds the read snapshots of course cost summaries and daily dashboards. Every
// method is a no-op on a nil or disabled service; store failures are logged and read as misses.
type CacheService struct {
	store      SnapshotStore
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(store SnapshotStore, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{store: store, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether snapshots are read and written.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.store != nil
}

// CourseCosts returns the cached cost summary of a course.
func (s *CacheService) CourseCosts(ctx context.Context, courseID string) (*lifecycle.CostSummary, bool) {
	var summary lifecycle.CostSummary
	if !s.load(ctx, cache.CourseKey(courseID), &summary) {
		return nil, false
	}
	return &summary, true
}

// StoreCourseCosts caches the cost summary of a course.
func (s *CacheService) StoreCourseCosts(ctx context.Context, courseID string, summary lifecycle.CostSummary, ttl time.Duration) {
	s.save(ctx, cache.CourseKey(courseID), summary, ttl)
}

// Dashboard returns the cached dashboard of the given day (YYYY-MM-DD).
func (s *CacheService) Dashboard(ctx context.Context, day string) (*dto.DashboardResponse, bool) {
	var summary dto.DashboardResponse
	if !s.load(ctx, cache.DashboardKey(day), &summary) {
		return nil, false
	}
	return &summary, true
}

// StoreDashboard caches the dashboard of the given day.
func (s *CacheService) StoreDashboard(ctx context.Context, day string, summary *dto.DashboardResponse, ttl time.Duration) {
	if summary == nil {
		return
	}
	s.save(ctx, cache.DashboardKey(day), summary, ttl)
}

// ForgetCourse drops the cost summary of the course and every dashboard snapshot, since
// dashboards aggregate all courses. An empty courseID only drops dashboards.
func (s *CacheService) ForgetCourse(ctx context.Context, courseID string) {
	if !s.Enabled() {
		return
	}
	if courseID != "" {
		if err := s.store.Delete(ctx, cache.CourseKey(courseID)); err != nil {
			s.logger.Warn("course cost snapshot eviction failed", zap.String("course_id", courseID), zap.Error(err))
		}
	}
	if err := s.store.DeletePrefix(ctx, cache.DashboardPrefix()); err != nil {
		s.logger.Warn("dashboard snapshot eviction failed", zap.Error(err))
	}
}

func (s *CacheService) load(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.store.Load(ctx, key, dest)
	hit := err == nil
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit, time.Since(start))
	}
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("snapshot read failed", zap.String("key", key), zap.Error(err))
	}
	return hit
}

func (s *CacheService) save(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.store.Save(ctx, key, value, ttl)
	if s.metrics != nil {
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
	if err != nil {
		s.logger.Warn("snapshot write failed", zap.String("key", key), zap.Error(err))
	}
}
