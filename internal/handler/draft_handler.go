package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	"github.com/noah-isme/lnd-admin-api/pkg/response"
)

type draftService interface {
	Get(ctx context.Context, courseID string) (*dto.DraftResponse, error)
	Save(ctx context.Context, courseID string, overlay models.DraftOverlay, expectedVersion *int, actor *models.JWTClaims) (*dto.DraftResponse, error)
	Approve(ctx context.Context, courseID string, req dto.ApproveCourseRequest, actor *models.JWTClaims) (*models.Course, error)
}

// DraftHandler exposes the draft overlay and approval endpoints.
type DraftHandler struct {
	drafts draftService
}

// NewDraftHandler constructs DraftHandler.
func NewDraftHandler(drafts draftService) *DraftHandler {
	return &DraftHandler{drafts: drafts}
}

// Get godoc
// @Summary Get course draft
// @Description Returns the overlay of a draft course. Courses without a stored overlay return the empty shape with version 0. The version is echoed in the ETag header.
// @Tags Drafts
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/draft [get]
func (h *DraftHandler) Get(c *gin.Context) {
	draft, err := h.drafts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	setETag(c, draft.Version)
	response.JSON(c, http.StatusOK, draft, nil)
}

// Save godoc
// @Summary Replace course draft
// @Description Whole-document replace. Send If-Match with the version from ETag to reject concurrent edits; without it the last write wins.
// @Tags Drafts
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param If-Match header string false "Expected draft version"
// @Param payload body models.DraftOverlay true "Overlay"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /courses/{id}/draft [put]
func (h *DraftHandler) Save(c *gin.Context) {
	expected, err := ifMatchVersion(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var overlay models.DraftOverlay
	if err := c.ShouldBindJSON(&overlay); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	draft, err := h.drafts.Save(c.Request.Context(), c.Param("id"), overlay, expected, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	setETag(c, draft.Version)
	response.JSON(c, http.StatusOK, draft, nil)
}

// Approve godoc
// @Summary Approve course
// @Description Promotes the draft overlay to the official mentors and costs and moves the course to ongoing. Approving an ongoing course returns it unchanged.
// @Tags Drafts
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.ApproveCourseRequest false "Approver"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/approve [post]
func (h *DraftHandler) Approve(c *gin.Context) {
	var req dto.ApproveCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, invalidPayload(err))
		return
	}
	course, err := h.drafts.Approve(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}
