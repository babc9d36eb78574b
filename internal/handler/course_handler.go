package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/lifecycle"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	"github.com/noah-isme/lnd-admin-api/pkg/response"
)

type courseService interface {
	List(ctx context.Context, query dto.CourseListQuery) ([]dto.CourseListItem, *models.Pagination, error)
	Get(ctx context.Context, id string) (*dto.CourseDetail, error)
	Costs(ctx context.Context, id string) (*lifecycle.CostSummary, bool, error)
	Create(ctx context.Context, req dto.CourseRequest, actor *models.JWTClaims) (*models.Course, error)
	Update(ctx context.Context, id string, req dto.CourseRequest, actor *models.JWTClaims) (*models.Course, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	Complete(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error)
	ListComments(ctx context.Context, courseID string) ([]models.Comment, error)
	AddComment(ctx context.Context, courseID string, req dto.CommentRequest, actor *models.JWTClaims) (*models.Comment, error)
}

// CourseHandler exposes course endpoints.
type CourseHandler struct {
	courses courseService
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses courseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// List godoc
// @Summary List courses
// @Description Phase filters use the derived status, so upcoming matches planning and ongoing courses that have not started.
// @Tags Courses
// @Produce json
// @Param phase query string false "planning, upcoming, ongoing or completed"
// @Param status query string false "Comma separated stored statuses (draft, ongoing, completed)"
// @Param search query string false "Search by name or batch code"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	page, limit := pageParams(c)
	items, pagination, err := h.courses.List(c.Request.Context(), dto.CourseListQuery{
		Phase:  c.Query("phase"),
		Status: c.Query("status"),
		Search: strings.TrimSpace(c.Query("search")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get course detail
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	detail, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if detail.DraftVersion != nil {
		setETag(c, *detail.DraftVersion)
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Costs godoc
// @Summary Course cost breakdown
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/costs [get]
func (h *CourseHandler) Costs(c *gin.Context) {
	summary, hit, err := h.courses.Costs(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, cacheMeta(c, hit))
}

// Create godoc
// @Summary Create course
// @Description New courses start in draft status.
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.CourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req dto.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	course, err := h.courses.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	var req dto.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	course, err := h.courses.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete course
// @Tags Courses
// @Param id path string true "Course ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.courses.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Complete godoc
// @Summary Mark course completed
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/complete [post]
func (h *CourseHandler) Complete(c *gin.Context) {
	course, err := h.courses.Complete(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// ListComments godoc
// @Summary List course comments
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/comments [get]
func (h *CourseHandler) ListComments(c *gin.Context) {
	comments, err := h.courses.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comments, nil)
}

// AddComment godoc
// @Summary Add course comment
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/comments [post]
func (h *CourseHandler) AddComment(c *gin.Context) {
	var req dto.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	comment, err := h.courses.AddComment(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}
