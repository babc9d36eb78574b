package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/service"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
	"github.com/noah-isme/lnd-admin-api/pkg/response"
)

type reportGenerator interface {
	Generate(ctx context.Context, courseID string, format dto.ReportFormat) (*dto.ReportFile, error)
}

// ReportHandler serves course reports.
type ReportHandler struct {
	reports reportGenerator
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports reportGenerator) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Download godoc
// @Summary Download course report
// @Description Course summary and participant table. Draft courses report their overlay costs.
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Course ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/report [get]
func (h *ReportHandler) Download(c *gin.Context) {
	format, ok := service.ParseReportFormat(c.Query("format"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	file, err := h.reports.Generate(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
