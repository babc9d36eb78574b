package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	"github.com/noah-isme/lnd-admin-api/pkg/response"
)

type mentorDirectory interface {
	List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, *models.Pagination, error)
	Create(ctx context.Context, req dto.CreateMentorRequest) (*models.Mentor, error)
}

type courseCostService interface {
	AssignMentor(ctx context.Context, courseID string, req dto.AssignMentorRequest, actor *models.JWTClaims) (*dto.MentorMutationResponse, error)
	UpdateMentor(ctx context.Context, courseID, ref string, req dto.UpdateMentorAssignmentRequest, actor *models.JWTClaims) (*dto.MentorMutationResponse, error)
	RemoveMentor(ctx context.Context, courseID, ref string, actor *models.JWTClaims) (*dto.MentorMutationResponse, error)
	UpdateCosts(ctx context.Context, courseID string, req dto.UpdateCostsRequest, actor *models.JWTClaims) (*dto.MentorMutationResponse, error)
}

// MentorHandler exposes the mentor directory and course mentor cost endpoints.
type MentorHandler struct {
	mentors mentorDirectory
	costs   courseCostService
}

// NewMentorHandler constructs MentorHandler.
func NewMentorHandler(mentors mentorDirectory, costs courseCostService) *MentorHandler {
	return &MentorHandler{mentors: mentors, costs: costs}
}

// List godoc
// @Summary List mentors
// @Tags Mentors
// @Produce json
// @Param search query string false "Search by name or email"
// @Param internal query bool false "Filter internal or external mentors"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /mentors [get]
func (h *MentorHandler) List(c *gin.Context) {
	page, limit := pageParams(c)
	filter := models.MentorFilter{Search: strings.TrimSpace(c.Query("search")), Page: page, PageSize: limit}
	switch c.Query("internal") {
	case "true":
		v := true
		filter.IsInternal = &v
	case "false":
		v := false
		filter.IsInternal = &v
	}
	mentors, pagination, err := h.mentors.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentors, pagination)
}

// Create godoc
// @Summary Register mentor
// @Tags Mentors
// @Accept json
// @Produce json
// @Param payload body dto.CreateMentorRequest true "Mentor"
// @Success 201 {object} response.Envelope
// @Router /mentors [post]
func (h *MentorHandler) Create(c *gin.Context) {
	var req dto.CreateMentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	mentor, err := h.mentors.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, mentor)
}

// Assign godoc
// @Summary Assign mentor to course
// @Description Draft courses change their overlay; approved courses change the official assignment.
// @Tags Mentors
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.AssignMentorRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/mentors [post]
func (h *MentorHandler) Assign(c *gin.Context) {
	var req dto.AssignMentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	res, err := h.costs.AssignMentor(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Update godoc
// @Summary Edit course mentor
// @Tags Mentors
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param ref path string true "Assignment ID, mentor ID or draft reference"
// @Param payload body dto.UpdateMentorAssignmentRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/mentors/{ref} [put]
func (h *MentorHandler) Update(c *gin.Context) {
	var req dto.UpdateMentorAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	res, err := h.costs.UpdateMentor(c.Request.Context(), c.Param("id"), c.Param("ref"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Remove godoc
// @Summary Remove course mentor
// @Description Draft courses accept the draft-prefixed references returned by the course detail.
// @Tags Mentors
// @Produce json
// @Param id path string true "Course ID"
// @Param ref path string true "Assignment ID, mentor ID or draft reference"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/mentors/{ref} [delete]
func (h *MentorHandler) Remove(c *gin.Context) {
	res, err := h.costs.RemoveMentor(c.Request.Context(), c.Param("id"), c.Param("ref"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// UpdateCosts godoc
// @Summary Set food and other costs
// @Tags Mentors
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.UpdateCostsRequest true "Costs"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/costs [put]
func (h *MentorHandler) UpdateCosts(c *gin.Context) {
	var req dto.UpdateCostsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	res, err := h.costs.UpdateCosts(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
