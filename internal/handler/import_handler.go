package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
	"github.com/noah-isme/lnd-admin-api/pkg/response"
)

type importService interface {
	Upload(ctx context.Context, courseID string, kind models.ImportKind, filename string, r io.Reader, actor *models.JWTClaims) (*dto.ImportJobResponse, error)
	Get(ctx context.Context, id string) (*models.ImportJob, error)
}

// ImportHandler accepts roster and attendance uploads.
type ImportHandler struct {
	imports importService
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(imports importService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// UploadEnrollments godoc
// @Summary Upload enrollment roster
// @Description CSV with employee_id, name, email, sbu and department columns. Rows are processed in the background.
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Course ID"
// @Param file formData file true "CSV file"
// @Success 202 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /courses/{id}/imports/enrollments [post]
func (h *ImportHandler) UploadEnrollments(c *gin.Context) {
	h.upload(c, models.ImportKindEnrollments)
}

// UploadAttendance godoc
// @Summary Upload attendance sheet
// @Description CSV with employee_id or email plus score and attendance_percentage columns.
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Course ID"
// @Param file formData file true "CSV file"
// @Success 202 {object} response.Envelope
// @Router /courses/{id}/imports/attendance [post]
func (h *ImportHandler) UploadAttendance(c *gin.Context) {
	h.upload(c, models.ImportKindAttendance)
}

func (h *ImportHandler) upload(c *gin.Context, kind models.ImportKind) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read file"))
		return
	}
	defer file.Close()

	job, err := h.imports.Upload(c.Request.Context(), c.Param("id"), kind, header.Filename, file, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Get godoc
// @Summary Get import job
// @Tags Imports
// @Produce json
// @Param id path string true "Import job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /imports/{id} [get]
func (h *ImportHandler) Get(c *gin.Context) {
	job, err := h.imports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}
