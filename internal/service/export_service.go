package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
	"github.com/noah-isme/academy-api/pkg/export"
	"github.com/noah-isme/academy-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type reportRenderer interface {
	Render(report export.Report) ([]byte, error)
}

type receiptRenderer interface {
	RenderReceipt(receipt export.Receipt) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult describes a rendered file kept on disk.
type ExportResult struct {
	Filename     string        `json:"filename"`
	ContentType  string        `json:"content_type"`
	RelativePath string        `json:"-"`
	Token        string        `json:"token"`
	URL          string        `json:"url"`
	Format       export.Format `json:"format"`
	ExpiresAt    time.Time     `json:"expires_at"`
	Data         []byte        `json:"-"`
}

// ExportService renders reports and receipts, keeps them in local storage
// and issues signed download links for them.
type ExportService struct {
	storage fileStorage
	signer  *storage.LinkSigner
	csv     reportRenderer
	pdf     reportRenderer
	receipt receiptRenderer
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService. academyName is printed in
// PDF headers.
func NewExportService(files fileStorage, signer *storage.LinkSigner, academyName string, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	pdf := export.NewPDFExporter(academyName)
	return &ExportService{
		storage: files,
		signer:  signer,
		csv:     export.NewCSVExporter(),
		pdf:     pdf,
		receipt: pdf,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// RenderReport renders report in format and stores it for ownerID.
func (s *ExportService) RenderReport(ownerID, name string, format export.Format, report export.Report) (*ExportResult, error) {
	var (
		payload []byte
		err     error
	)
	switch format {
	case export.FormatCSV:
		payload, err = s.csv.Render(report)
	case export.FormatPDF:
		payload, err = s.pdf.Render(report)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, internalError(err, "failed to render report")
	}
	return s.store(ownerID, name, format, payload)
}

// RenderReceipt renders a payment receipt PDF and stores it for ownerID.
func (s *ExportService) RenderReceipt(ownerID string, receipt export.Receipt) (*ExportResult, error) {
	payload, err := s.receipt.RenderReceipt(receipt)
	if err != nil {
		return nil, internalError(err, "failed to render receipt")
	}
	return s.store(ownerID, "receipt_"+receipt.Number, export.FormatPDF, payload)
}

func (s *ExportService) store(ownerID, name string, format export.Format, payload []byte) (*ExportResult, error) {
	filename := fmt.Sprintf("%s_%s.%s", sanitizeFilename(name), s.now().UTC().Format("20060102_150405"), format)
	result := &ExportResult{
		Filename:    filename,
		ContentType: format.ContentType(),
		Format:      format,
		Data:        payload,
	}
	if s.storage == nil || s.signer == nil {
		return result, nil
	}

	relPath, err := s.storage.Save(ownerID+"/"+filename, payload)
	if err != nil {
		return nil, internalError(err, "failed to store export")
	}
	link, err := s.signer.Sign(ownerID, relPath)
	if err != nil {
		return nil, internalError(err, "failed to sign export link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	result.RelativePath = relPath
	result.Token = link.Token
	result.URL = fmt.Sprintf("%s/exports/%s", prefix, link.Token)
	result.ExpiresAt = link.ExpiresAt
	return result, nil
}

// OpenLink verifies token and returns the stored file content.
func (s *ExportService) OpenLink(token string) (*ExportResult, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled")
	}
	link, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrLinkExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	file, err := s.storage.Open(link.Path)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, internalError(err, "failed to read export")
	}

	name := link.Path[strings.LastIndex(link.Path, "/")+1:]
	format := export.FormatPDF
	if strings.HasSuffix(name, "."+string(export.FormatCSV)) {
		format = export.FormatCSV
	}
	return &ExportResult{
		Filename:     name,
		ContentType:  format.ContentType(),
		RelativePath: link.Path,
		Token:        token,
		Format:       format,
		ExpiresAt:    link.ExpiresAt,
		Data:         data,
	}, nil
}

// Cleanup removes files older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "export"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := strings.ToLower(replacer.Replace(raw))
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func attendanceReport(title, subtitle string, report models.AttendanceReport) export.Report {
	rows := make([][]string, 0, len(report.Records))
	for _, r := range report.Records {
		dni := ""
		if r.StudentDNI != nil {
			dni = *r.StudentDNI
		}
		status := "Absent"
		if r.Present {
			status = "Present"
		}
		notes := ""
		if r.Notes != nil {
			notes = *r.Notes
		}
		rows = append(rows, []string{r.ClassDate.Format(dateLayout), r.CourseName, r.StudentName, dni, status, notes})
	}
	return export.Report{
		Title:    title,
		Subtitle: subtitle,
		Summary: []export.Field{
			{Label: "Total classes", Value: fmt.Sprintf("%d", report.Stats.Total)},
			{Label: "Attended", Value: fmt.Sprintf("%d", report.Stats.Attended)},
			{Label: "Absences", Value: fmt.Sprintf("%d", report.Stats.Absences)},
			{Label: "Attendance", Value: fmt.Sprintf("%.2f%%", report.Stats.Percentage)},
		},
		Headers: []string{"Date", "Course", "Student", "DNI", "Status", "Notes"},
		Rows:    rows,
	}
}
