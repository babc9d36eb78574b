package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	"github.com/noah-isme/lnd-admin-api/internal/service"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type auditRecorder struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (a *auditRecorder) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, *log)
	return nil
}

type fakeAuthSrv struct{}

func (fakeAuthSrv) Login(context.Context, models.LoginRequest) (*models.LoginResponse, error) {
	return nil, appErrors.ErrInvalidCredentials
}

func (fakeAuthSrv) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return nil, appErrors.ErrUnauthorized
}

func (fakeAuthSrv) Logout(context.Context, string, string, models.LoginRequest) error { return nil }

func (fakeAuthSrv) Me(_ context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID}, nil
}

type fakeMentorSrv struct{}

func (fakeMentorSrv) List(context.Context, models.MentorFilter) ([]models.Mentor, *models.Pagination, error) {
	return []models.Mentor{}, &models.Pagination{}, nil
}

func (fakeMentorSrv) Create(_ context.Context, req dto.CreateMentorRequest) (*models.Mentor, error) {
	return &models.Mentor{ID: "m1", Name: req.Name}, nil
}

type fakeCostSrv struct{}

func (fakeCostSrv) AssignMentor(_ context.Context, courseID string, _ dto.AssignMentorRequest, _ *models.JWTClaims) (*dto.MentorMutationResponse, error) {
	return &dto.MentorMutationResponse{CourseID: courseID}, nil
}

func (fakeCostSrv) UpdateMentor(_ context.Context, courseID, _ string, _ dto.UpdateMentorAssignmentRequest, _ *models.JWTClaims) (*dto.MentorMutationResponse, error) {
	return &dto.MentorMutationResponse{CourseID: courseID}, nil
}

func (fakeCostSrv) RemoveMentor(_ context.Context, courseID, _ string, _ *models.JWTClaims) (*dto.MentorMutationResponse, error) {
	return &dto.MentorMutationResponse{CourseID: courseID}, nil
}

func (fakeCostSrv) UpdateCosts(_ context.Context, courseID string, _ dto.UpdateCostsRequest, _ *models.JWTClaims) (*dto.MentorMutationResponse, error) {
	return &dto.MentorMutationResponse{CourseID: courseID}, nil
}

type fakeStudentSrv struct{}

func (fakeStudentSrv) List(context.Context, models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	return []models.Student{}, &models.Pagination{}, nil
}

func (fakeStudentSrv) Get(_ context.Context, id string) (*models.Student, error) {
	return &models.Student{ID: id}, nil
}

func (fakeStudentSrv) Create(_ context.Context, req dto.CreateStudentRequest) (*models.Student, error) {
	return &models.Student{ID: "s1", EmployeeID: req.EmployeeID}, nil
}

func buildTestRouter(audit *auditRecorder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	Routes{
		Auth:        NewAuthHandler(fakeAuthSrv{}),
		Courses:     NewCourseHandler(&fakeCourseSrv{detail: &dto.CourseDetail{Course: &models.Course{ID: "c1"}}}),
		Drafts:      NewDraftHandler(&fakeDraftSrv{}),
		Mentors:     NewMentorHandler(fakeMentorSrv{}, fakeCostSrv{}),
		Enrollments: NewEnrollmentHandler(&fakeEnrollmentSrv{}),
		Students:    NewStudentHandler(fakeStudentSrv{}),
		Imports:     NewImportHandler(&fakeImportSrv{}),
		Reports:     NewReportHandler(&fakeReportSrv{}),
		Dashboard:   NewDashboardHandler(&fakeDashboardSrv{resp: &dto.DashboardResponse{}}),
		Metrics:     NewMetricsHandler(service.NewMetricsService(), nil),
		Tokens: tokenTable{
			"admin-token":  {UserID: "u-admin", Role: models.RoleAdmin},
			"viewer-token": {UserID: "u-viewer", Role: models.RoleViewer},
			"root-token":   {UserID: "u-root", Role: models.RoleSuperAdmin},
		},
		Audit:  audit,
		Logger: zap.NewNop(),
	}.Register(router.Group("/api/v1"))
	return router
}

func authorized(method, target, token, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRoutesAuthentication(t *testing.T) {
	router := buildTestRouter(&auditRecorder{})

	resp := performRequest(router, authorized(http.MethodGet, "/api/v1/courses", "", ""))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = performRequest(router, authorized(http.MethodGet, "/api/v1/courses", "forged", ""))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = performRequest(router, authorized(http.MethodPost, "/api/v1/auth/login", "", `{"email":"a@b.co","password":"secret"}`))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Contains(t, resp.Body.String(), appErrors.ErrInvalidCredentials.Code)
}

func TestRoutesViewerIsReadOnly(t *testing.T) {
	router := buildTestRouter(&auditRecorder{})

	reads := []string{"/api/v1/courses", "/api/v1/courses/c1", "/api/v1/courses/c1/draft", "/api/v1/enrollments", "/api/v1/mentors", "/api/v1/students", "/api/v1/dashboard", "/api/v1/auth/me"}
	for _, target := range reads {
		resp := performRequest(router, authorized(http.MethodGet, target, "viewer-token", ""))
		assert.Equal(t, http.StatusOK, resp.Code, target)
	}

	writes := []struct{ method, target string }{
		{http.MethodPost, "/api/v1/courses"},
		{http.MethodPut, "/api/v1/courses/c1/draft"},
		{http.MethodPost, "/api/v1/courses/c1/approve"},
		{http.MethodPost, "/api/v1/courses/c1/mentors"},
		{http.MethodDelete, "/api/v1/courses/c1/mentors/draft-0"},
		{http.MethodPost, "/api/v1/enrollments/e1/approve"},
		{http.MethodPost, "/api/v1/courses/c1/imports/enrollments"},
	}
	for _, w := range writes {
		resp := performRequest(router, authorized(w.method, w.target, "viewer-token", `{}`))
		assert.Equal(t, http.StatusForbidden, resp.Code, w.target)
	}

	resp := performRequest(router, authorized(http.MethodGet, "/api/v1/system/metrics", "admin-token", ""))
	assert.Equal(t, http.StatusForbidden, resp.Code)
	resp = performRequest(router, authorized(http.MethodGet, "/api/v1/system/metrics", "root-token", ""))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRoutesEditorMutations(t *testing.T) {
	router := buildTestRouter(&auditRecorder{})

	resp := performRequest(router, authorized(http.MethodPost, "/api/v1/courses/c1/approve", "admin-token", ""))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = performRequest(router, authorized(http.MethodDelete, "/api/v1/courses/c1/mentors/draft-0", "admin-token", ""))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = performRequest(router, authorized(http.MethodPut, "/api/v1/courses/c1/costs", "admin-token", `{"food_cost":50}`))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRoutesAuditUploadsAndReports(t *testing.T) {
	audit := &auditRecorder{}
	router := buildTestRouter(audit)

	upload := multipartRequest(t, "/api/v1/courses/c1/imports/enrollments", "roster.csv", "employee_id,name\n")
	upload.Header.Set("Authorization", "Bearer admin-token")
	resp := performRequest(router, upload)
	require.Equal(t, http.StatusAccepted, resp.Code)

	resp = performRequest(router, authorized(http.MethodGet, "/api/v1/courses/c1/report?format=xlsx", "viewer-token", ""))
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = performRequest(router, authorized(http.MethodGet, "/api/v1/courses/c1/report", "viewer-token", ""))
	require.Equal(t, http.StatusOK, resp.Code)

	require.Len(t, audit.logs, 2)
	assert.Equal(t, models.AuditActionImportUpload, audit.logs[0].Action)
	require.NotNil(t, audit.logs[0].ResourceID)
	assert.Equal(t, "c1", *audit.logs[0].ResourceID)
	assert.Equal(t, models.AuditActionReportDownload, audit.logs[1].Action)
	require.NotNil(t, audit.logs[1].UserID)
	assert.Equal(t, "u-viewer", *audit.logs[1].UserID)
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
