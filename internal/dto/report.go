package dto

// ReportFormat selects the course report renderer.
type ReportFormat string

// Supported report formats.
const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportFile is a rendered course report.
type ReportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
