package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lnd-admin-api/internal/dto"
	"github.com/noah-isme/lnd-admin-api/internal/lifecycle"
	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
	"github.com/noah-isme/lnd-admin-api/pkg/export"
)

var reportHeaders = []string{
	"Name", "Employee ID", "Email", "Department", "Approval", "Eligibility", "Completion", "Score", "Attendance %",
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type courseEnrollmentLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// ReportServiceParams groups constructor dependencies.
type ReportServiceParams struct {
	Reader      *CourseReader
	Enrollments courseEnrollmentLister
	CSV         datasetRenderer
	PDF         datasetRenderer
	Metrics     *MetricsService
	Logger      *zap.Logger
	Clock       lifecycle.Clock
}

// ReportService renders the downloadable course report.
type ReportService struct {
	reader      *CourseReader
	enrollments courseEnrollmentLister
	renderers   map[dto.ReportFormat]datasetRenderer
	metrics     *MetricsService
	logger      *zap.Logger
	now         lifecycle.Clock
}

// NewReportService constructs a ReportService with the CSV and PDF exporters as defaults.
func NewReportService(params ReportServiceParams) *ReportService {
	if params.CSV == nil {
		params.CSV = export.NewCSVExporter()
	}
	if params.PDF == nil {
		params.PDF = export.NewPDFExporter()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Clock == nil {
		params.Clock = lifecycle.SystemClock
	}
	return &ReportService{
		reader:      params.Reader,
		enrollments: params.Enrollments,
		renderers: map[dto.ReportFormat]datasetRenderer{
			dto.ReportFormatCSV: params.CSV,
			dto.ReportFormatPDF: params.PDF,
		},
		metrics: params.Metrics,
		logger:  params.Logger,
		now:     params.Clock,
	}
}

// ParseReportFormat defaults to CSV when the query parameter is empty.
func ParseReportFormat(raw string) (dto.ReportFormat, bool) {
	switch format := dto.ReportFormat(strings.ToLower(strings.TrimSpace(raw))); format {
	case "":
		return dto.ReportFormatCSV, true
	case dto.ReportFormatCSV, dto.ReportFormatPDF:
		return format, true
	default:
		return "", false
	}
}

// Generate renders the course summary followed by one row per enrollment.
func (s *ReportService) Generate(ctx context.Context, courseID string, format dto.ReportFormat) (*dto.ReportFile, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	course, _, err := s.reader.Load(ctx, courseID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	enrollments, err := s.enrollments.ListByCourse(ctx, courseID)
	s.metrics.ObserveDBQuery("report_enrollments", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	data, err := renderer.Render(s.buildDataset(course, enrollments))
	if err != nil {
		s.logger.Error("failed to render course report", zap.String("course_id", courseID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return &dto.ReportFile{
		Filename:    reportFilename(course, format),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func (s *ReportService) buildDataset(course *models.Course, enrollments []models.Enrollment) export.Dataset {
	costs := lifecycle.Summarize(course)
	approved := 0
	for i := range enrollments {
		if enrollments[i].ApprovalStatus == models.ApprovalApproved {
			approved++
		}
	}
	seats := strconv.Itoa(approved)
	if course.SeatLimit > 0 {
		seats = fmt.Sprintf("%d / %d", approved, course.SeatLimit)
	}

	dataset := export.Dataset{
		Title: fmt.Sprintf("%s (%s)", course.Name, course.BatchCode),
		Summary: []export.SummaryLine{
			{Label: "Status", Value: string(lifecycle.Phase(course, s.now()))},
			{Label: "Start date", Value: formatDate(course.StartDate)},
			{Label: "End date", Value: formatDate(course.EndDate)},
			{Label: "Seats", Value: seats},
			{Label: "Mentor cost", Value: costs.TotalMentorCost.StringFixed(2)},
			{Label: "Food cost", Value: costs.FoodCost.StringFixed(2)},
			{Label: "Other cost", Value: costs.OtherCost.StringFixed(2)},
			{Label: "Total training cost", Value: costs.TotalTrainingCost.StringFixed(2)},
		},
		Headers: reportHeaders,
		Rows:    make([]map[string]string, 0, len(enrollments)),
	}
	for i := range enrollments {
		e := &enrollments[i]
		completion := ""
		if e.CompletionStatus != nil {
			completion = *e.CompletionStatus
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Name":         e.StudentName,
			"Employee ID":  e.StudentEmployeeID,
			"Email":        e.StudentEmail,
			"Department":   e.StudentDepartment,
			"Approval":     string(e.ApprovalStatus),
			"Eligibility":  string(e.EligibilityStatus),
			"Completion":   completion,
			"Score":        formatOptionalFloat(e.Score),
			"Attendance %": formatOptionalFloat(e.AttendancePercentage),
		})
	}
	return dataset
}

func reportFilename(course *models.Course, format dto.ReportFormat) string {
	base := unsafeFilename.ReplaceAllString(course.BatchCode, "_")
	if base == "" {
		base = course.ID
	}
	return fmt.Sprintf("%s-report.%s", base, format)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
