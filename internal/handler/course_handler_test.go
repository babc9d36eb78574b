package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/lifecycle"
	"github.com/noah-isme/lnd-admin-api/internal/middleware"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

type fakeCourseSrv struct {
	lastQuery   dto.CourseListQuery
	lastRequest dto.CourseRequest
	lastActor   *models.JWTClaims
	detail      *dto.CourseDetail
	costs       *lifecycle.CostSummary
	costHit     bool
	err         error
	deleted     string
}

func (f *fakeCourseSrv) List(_ context.Context, query dto.CourseListQuery) ([]dto.CourseListItem, *models.Pagination, error) {
	f.lastQuery = query
	return []dto.CourseListItem{}, &models.Pagination{Page: query.Page, PageSize: query.Limit}, f.err
}

func (f *fakeCourseSrv) Get(context.Context, string) (*dto.CourseDetail, error) {
	return f.detail, f.err
}

func (f *fakeCourseSrv) Costs(context.Context, string) (*lifecycle.CostSummary, bool, error) {
	return f.costs, f.costHit, f.err
}

func (f *fakeCourseSrv) Create(_ context.Context, req dto.CourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	f.lastRequest = req
	f.lastActor = actor
	if f.err != nil {
		return nil, f.err
	}
	return &models.Course{ID: "course-1", Name: req.Name, Status: models.CourseStatusDraft}, nil
}

func (f *fakeCourseSrv) Update(_ context.Context, id string, req dto.CourseRequest, _ *models.JWTClaims) (*models.Course, error) {
	f.lastRequest = req
	return &models.Course{ID: id, Name: req.Name}, f.err
}

func (f *fakeCourseSrv) Delete(_ context.Context, id string, _ *models.JWTClaims) error {
	f.deleted = id
	return f.err
}

func (f *fakeCourseSrv) Complete(_ context.Context, id string, _ *models.JWTClaims) (*models.Course, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Course{ID: id, Status: models.CourseStatusCompleted}, nil
}

func (f *fakeCourseSrv) ListComments(context.Context, string) ([]models.Comment, error) {
	return []models.Comment{}, f.err
}

func (f *fakeCourseSrv) AddComment(_ context.Context, courseID string, req dto.CommentRequest, _ *models.JWTClaims) (*models.Comment, error) {
	return &models.Comment{CourseID: courseID, Comment: req.Comment}, f.err
}

func newTestContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	return c, rec
}

func TestCourseHandlerListForwardsFilters(t *testing.T) {
	svc := &fakeCourseSrv{}
	handler := NewCourseHandler(svc)
	c, rec := newTestContext(http.MethodGet, "/courses?phase=upcoming&status=draft,ongoing&search=%20lead%20&page=2&limit=5", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.CourseListQuery{Phase: "upcoming", Status: "draft,ongoing", Search: "lead", Page: 2, Limit: 5}, svc.lastQuery)
	assert.Contains(t, rec.Body.String(), `"page_size":5`)
}

func TestCourseHandlerGetSetsDraftETag(t *testing.T) {
	version := 3
	handler := NewCourseHandler(&fakeCourseSrv{detail: &dto.CourseDetail{
		Course:       &models.Course{ID: "course-1"},
		Phase:        lifecycle.StatusPlanning,
		DraftVersion: &version,
	}})
	c, rec := newTestContext(http.MethodGet, "/courses/course-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"3"`, rec.Header().Get("ETag"))
}

func TestCourseHandlerGetApprovedHasNoETag(t *testing.T) {
	handler := NewCourseHandler(&fakeCourseSrv{detail: &dto.CourseDetail{Course: &models.Course{ID: "course-1"}}})
	c, rec := newTestContext(http.MethodGet, "/courses/course-1", nil)

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("ETag"))
}

func TestCourseHandlerCostsReportsCacheHit(t *testing.T) {
	handler := NewCourseHandler(&fakeCourseSrv{
		costs:   &lifecycle.CostSummary{TotalTrainingCost: models.AmountFromInt(150)},
		costHit: true,
	})
	c, rec := newTestContext(http.MethodGet, "/courses/course-1/costs", nil)

	handler.Costs(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, float64(150), envelope.Data["total_training_cost"])
}

func TestCourseHandlerCreate(t *testing.T) {
	svc := &fakeCourseSrv{}
	handler := NewCourseHandler(svc)
	body := []byte(`{"name":"Leadership 101","batch_code":"LD-01","start_date":"2024-05-01","end_date":"2024-05-03","seat_limit":20}`)
	c, rec := newTestContext(http.MethodPost, "/courses", body)
	actor := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	c.Set(middleware.ContextUserKey, actor)

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "LD-01", svc.lastRequest.BatchCode)
	assert.Equal(t, 20, svc.lastRequest.SeatLimit)
	assert.Same(t, actor, svc.lastActor)
}

func TestCourseHandlerCreateRejectsMalformedJSON(t *testing.T) {
	handler := NewCourseHandler(&fakeCourseSrv{})
	c, rec := newTestContext(http.MethodPost, "/courses", []byte(`{"name":`))

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, rec).Error.Code)
}

func TestCourseHandlerDelete(t *testing.T) {
	svc := &fakeCourseSrv{}
	handler := NewCourseHandler(svc)
	c, rec := newTestContext(http.MethodDelete, "/courses/course-9", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-9"}}

	handler.Delete(c)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "course-9", svc.deleted)
}

func TestCourseHandlerCompleteConflict(t *testing.T) {
	handler := NewCourseHandler(&fakeCourseSrv{err: appErrors.Clone(appErrors.ErrInvalidTransition, "course already completed")})
	c, rec := newTestContext(http.MethodPost, "/courses/course-1/complete", nil)

	handler.Complete(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, decodeEnvelope(t, rec).Error.Code)
}
