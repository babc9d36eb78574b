package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

type fakeImportSrv struct {
	courseID string
	kind     models.ImportKind
	filename string
	content  string
	err      error
}

func (f *fakeImportSrv) Upload(_ context.Context, courseID string, kind models.ImportKind, filename string, r io.Reader, _ *models.JWTClaims) (*dto.ImportJobResponse, error) {
	f.courseID = courseID
	f.kind = kind
	f.filename = filename
	data, _ := io.ReadAll(r)
	f.content = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ImportJobResponse{ID: "job-1", Kind: kind, Status: models.ImportStatusQueued}, nil
}

func (f *fakeImportSrv) Get(_ context.Context, id string) (*models.ImportJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.ImportJob{ID: id, Status: models.ImportStatusFinished}, nil
}

func multipartRequest(t *testing.T, target, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestImportHandlerUploadEnrollments(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeImportSrv{}
	handler := NewImportHandler(svc)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = multipartRequest(t, "/courses/c1/imports/enrollments", "roster.csv", "employee_id,name\nE1,Ana\n")
	c.Params = gin.Params{{Key: "id", Value: "c1"}}

	handler.UploadEnrollments(c)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "c1", svc.courseID)
	assert.Equal(t, models.ImportKindEnrollments, svc.kind)
	assert.Equal(t, "roster.csv", svc.filename)
	assert.Contains(t, svc.content, "E1,Ana")
	assert.Equal(t, "QUEUED", decodeEnvelope(t, rec).Data["status"])
}

func TestImportHandlerUploadAttendanceKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeImportSrv{}
	handler := NewImportHandler(svc)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = multipartRequest(t, "/courses/c1/imports/attendance", "attendance.csv", "employee_id,score\n")

	handler.UploadAttendance(c)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, models.ImportKindAttendance, svc.kind)
}

func TestImportHandlerUploadRequiresFile(t *testing.T) {
	svc := &fakeImportSrv{}
	handler := NewImportHandler(svc)
	c, rec := newTestContext(http.MethodPost, "/courses/c1/imports/enrollments", []byte(`{}`))

	handler.UploadEnrollments(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.courseID)
}

func TestImportHandlerUploadMapsServiceErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"too large":   {appErrors.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		"queue full":  {appErrors.ErrQueueUnavailable, http.StatusServiceUnavailable},
		"not csv":     {appErrors.Clone(appErrors.ErrValidation, "only .csv files are accepted"), http.StatusBadRequest},
		"no course":   {appErrors.Clone(appErrors.ErrNotFound, "course not found"), http.StatusNotFound},
		"is complete": {appErrors.Clone(appErrors.ErrConflict, "course is completed"), http.StatusConflict},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			handler := NewImportHandler(&fakeImportSrv{err: tc.err})
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = multipartRequest(t, "/courses/c1/imports/enrollments", "roster.csv", "x")

			handler.UploadEnrollments(c)

			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestImportHandlerGet(t *testing.T) {
	handler := NewImportHandler(&fakeImportSrv{})
	c, rec := newTestContext(http.MethodGet, "/imports/job-7", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-7"}}

	handler.Get(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "job-7", envelope.Data["id"])
	assert.Equal(t, "FINISHED", envelope.Data["status"])
}
