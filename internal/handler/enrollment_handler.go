package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/lifecycle"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	"github.com/noah-isme/lnd-admin-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, query dto.EnrollmentListQuery) ([]models.Enrollment, *models.Pagination, error)
	Sections(ctx context.Context, courseID string) (*lifecycle.Sections, error)
	Create(ctx context.Context, req dto.CreateEnrollmentRequest, actor *models.JWTClaims) (*models.Enrollment, error)
	Approve(ctx context.Context, id string, req dto.EnrollmentStatusRequest, actor *models.JWTClaims) (*models.Enrollment, error)
	Reject(ctx context.Context, id string, req dto.EnrollmentStatusRequest, actor *models.JWTClaims) (*models.Enrollment, error)
	Withdraw(ctx context.Context, id string, req dto.EnrollmentStatusRequest, actor *models.JWTClaims) (*models.Enrollment, error)
	Reapprove(ctx context.Context, id string, req dto.EnrollmentStatusRequest, actor *models.JWTClaims) (*models.Enrollment, error)
	RecordResult(ctx context.Context, id string, req dto.EnrollmentResultRequest) (*models.Enrollment, error)
}

type statusAction func(ctx context.Context, id string, req dto.EnrollmentStatusRequest, actor *models.JWTClaims) (*models.Enrollment, error)

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param course_id query string false "Course ID"
// @Param approval_status query string false "Comma separated approval statuses"
// @Param search query string false "Search by student name, email or employee id"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	page, limit := pageParams(c)
	items, pagination, err := h.enrollments.List(c.Request.Context(), dto.EnrollmentListQuery{
		CourseID:       c.Query("course_id"),
		ApprovalStatus: c.Query("approval_status"),
		Search:         strings.TrimSpace(c.Query("search")),
		Page:           page,
		Limit:          limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Sections godoc
// @Summary Enrollment sections of a course
// @Description Approved, eligible pending, not eligible, rejected and withdrawn buckets. Enrollments matching none are returned under unknown.
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollments/sections [get]
func (h *EnrollmentHandler) Sections(c *gin.Context) {
	sections, err := h.enrollments.Sections(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}

// Create godoc
// @Summary Enroll a student
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.CreateEnrollmentRequest true "Enrollment"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req dto.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	enrollment, err := h.enrollments.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Approve godoc
// @Summary Approve enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.EnrollmentStatusRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/approve [post]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	h.changeStatus(c, h.enrollments.Approve)
}

// Reject godoc
// @Summary Reject enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.EnrollmentStatusRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/reject [post]
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	h.changeStatus(c, h.enrollments.Reject)
}

// Withdraw godoc
// @Summary Withdraw enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.EnrollmentStatusRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollments/{id}/withdraw [post]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	h.changeStatus(c, h.enrollments.Withdraw)
}

// Reapprove godoc
// @Summary Reapprove a rejected or withdrawn enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.EnrollmentStatusRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/reapprove [post]
func (h *EnrollmentHandler) Reapprove(c *gin.Context) {
	h.changeStatus(c, h.enrollments.Reapprove)
}

func (h *EnrollmentHandler) changeStatus(c *gin.Context, action statusAction) {
	var req dto.EnrollmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, invalidPayload(err))
		return
	}
	enrollment, err := action(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// RecordResult godoc
// @Summary Record score and attendance
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.EnrollmentResultRequest true "Result"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollments/{id}/result [put]
func (h *EnrollmentHandler) RecordResult(c *gin.Context) {
	var req dto.EnrollmentResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	enrollment, err := h.enrollments.RecordResult(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
