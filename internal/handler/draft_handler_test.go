package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

type fakeDraftSrv struct {
	saveCalls   int
	lastVersion *int
	lastOverlay models.DraftOverlay
	lastApprove dto.ApproveCourseRequest
	version     int
	err         error
}

func (f *fakeDraftSrv) Get(_ context.Context, courseID string) (*dto.DraftResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.DraftResponse{CourseID: courseID, Version: f.version}, nil
}

func (f *fakeDraftSrv) Save(_ context.Context, courseID string, overlay models.DraftOverlay, expected *int, _ *models.JWTClaims) (*dto.DraftResponse, error) {
	f.saveCalls++
	f.lastVersion = expected
	f.lastOverlay = overlay
	if f.err != nil {
		return nil, f.err
	}
	f.version++
	return &dto.DraftResponse{CourseID: courseID, Draft: overlay, Version: f.version}, nil
}

func (f *fakeDraftSrv) Approve(_ context.Context, courseID string, req dto.ApproveCourseRequest, _ *models.JWTClaims) (*models.Course, error) {
	f.lastApprove = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Course{ID: courseID, Status: models.CourseStatusOngoing}, nil
}

func TestDraftHandlerGetSetsETag(t *testing.T) {
	handler := NewDraftHandler(&fakeDraftSrv{version: 5})
	c, rec := newTestContext(http.MethodGet, "/courses/c1/draft", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"5"`, rec.Header().Get("ETag"))
}

func TestDraftHandlerSaveWithIfMatch(t *testing.T) {
	svc := &fakeDraftSrv{version: 2}
	handler := NewDraftHandler(svc)
	body := []byte(`{"mentor_assignments":[{"mentor_id":"m1","hours_taught":4,"amount_paid":"250.50"}],"food_cost":100}`)
	c, rec := newTestContext(http.MethodPut, "/courses/c1/draft", body)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	c.Request.Header.Set("If-Match", `W/"2"`)

	handler.Save(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastVersion)
	assert.Equal(t, 2, *svc.lastVersion)
	assert.Equal(t, `"3"`, rec.Header().Get("ETag"))
	require.Len(t, svc.lastOverlay.MentorAssignments, 1)
	assert.Equal(t, "250.5", svc.lastOverlay.MentorAssignments[0].AmountPaid.String())
	require.NotNil(t, svc.lastOverlay.FoodCost)
	assert.Nil(t, svc.lastOverlay.OtherCost)
}

func TestDraftHandlerSaveWithoutIfMatchIsLastWriteWins(t *testing.T) {
	svc := &fakeDraftSrv{}
	handler := NewDraftHandler(svc)
	c, rec := newTestContext(http.MethodPut, "/courses/c1/draft", []byte(`{"mentor_assignments":[]}`))
	c.Request.Header.Set("If-Match", "*")

	handler.Save(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.lastVersion)
}

func TestDraftHandlerSaveRejectsBadIfMatch(t *testing.T) {
	svc := &fakeDraftSrv{}
	handler := NewDraftHandler(svc)
	c, rec := newTestContext(http.MethodPut, "/courses/c1/draft", []byte(`{}`))
	c.Request.Header.Set("If-Match", `"abc"`)

	handler.Save(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.saveCalls)
}

func TestDraftHandlerSaveRejectsOversizedAmounts(t *testing.T) {
	for _, body := range []string{
		`{"mentor_assignments":[{"mentor_id":"m1","amount_paid":1e5000000}]}`,
		`{"mentor_assignments":[{"mentor_id":"m1","amount_paid":1e13}]}`,
		`{"food_cost":"10000000000000"}`,
	} {
		svc := &fakeDraftSrv{}
		handler := NewDraftHandler(svc)
		c, rec := newTestContext(http.MethodPut, "/courses/c1/draft", []byte(body))

		handler.Save(c)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Zero(t, svc.saveCalls, body)
	}
}

func TestDraftHandlerSaveVersionMismatch(t *testing.T) {
	handler := NewDraftHandler(&fakeDraftSrv{err: appErrors.Clone(appErrors.ErrPreconditionFailed, "draft was modified")})
	c, rec := newTestContext(http.MethodPut, "/courses/c1/draft", []byte(`{}`))
	c.Request.Header.Set("If-Match", `"1"`)

	handler.Save(c)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Empty(t, rec.Header().Get("ETag"))
}

func TestDraftHandlerApproveAcceptsEmptyBody(t *testing.T) {
	svc := &fakeDraftSrv{}
	handler := NewDraftHandler(svc)
	c, rec := newTestContext(http.MethodPost, "/courses/c1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}

	handler.Approve(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ongoing"`)
}

func TestDraftHandlerApproveForwardsApprover(t *testing.T) {
	svc := &fakeDraftSrv{}
	handler := NewDraftHandler(svc)
	c, rec := newTestContext(http.MethodPost, "/courses/c1/approve", []byte(`{"approved_by":"Head of L&D"}`))

	handler.Approve(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Head of L&D", svc.lastApprove.ApprovedBy)
}

func TestDraftHandlerApproveNotDraft(t *testing.T) {
	handler := NewDraftHandler(&fakeDraftSrv{err: appErrors.ErrNotDraft})
	c, rec := newTestContext(http.MethodPost, "/courses/c1/approve", nil)

	handler.Approve(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, appErrors.ErrNotDraft.Code, decodeEnvelope(t, rec).Error.Code)
}
