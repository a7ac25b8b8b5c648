package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders reports and receipts with gofpdf.
type PDFExporter struct {
	academyName string
}

// NewPDFExporter constructs a PDF exporter stamping academyName in headers.
func NewPDFExporter(academyName string) *PDFExporter {
	return &PDFExporter{academyName: academyName}
}

// Render creates an A4 document with title, summary block and table body.
func (e *PDFExporter) Render(report Report) ([]byte, error) {
	if len(report.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	e.header(pdf, tr, report.Title, report.Subtitle)

	if len(report.Summary) > 0 {
		pdf.SetFont("Arial", "", 10)
		for _, field := range report.Summary {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(50, 6, tr(field.Label), "", 0, "", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(0, 6, tr(field.Value), "", 1, "", false, 0, "")
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	colWidth := 190.0 / float64(len(report.Headers))
	for _, header := range report.Headers {
		pdf.CellFormat(colWidth, 8, tr(header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range report.Rows {
		for i := range report.Headers {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			pdf.CellFormat(colWidth, 7, tr(value), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return output(pdf)
}

// Receipt is the printable proof of a PAID payment.
type Receipt struct {
	Number       string
	IssuedAt     time.Time
	StudentName  string
	StudentEmail string
	StudentDNI   string
	Concept      string
	Amount       float64
	Method       string
	PaymentDate  time.Time
	Notes        string
}

// RenderReceipt draws a single-page payment receipt.
func (e *PDFExporter) RenderReceipt(r Receipt) ([]byte, error) {
	if r.Number == "" {
		return nil, fmt.Errorf("receipt number required")
	}
	pdf := gofpdf.New("P", "mm", "A5", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(12, 15, 12)
	pdf.AddPage()

	e.header(pdf, tr, "Receipt "+r.Number, "Issued "+r.IssuedAt.Format("2006-01-02"))

	rows := []Field{
		{Label: "Student", Value: r.StudentName},
		{Label: "Email", Value: r.StudentEmail},
	}
	if r.StudentDNI != "" {
		rows = append(rows, Field{Label: "DNI", Value: r.StudentDNI})
	}
	rows = append(rows,
		Field{Label: "Concept", Value: r.Concept},
		Field{Label: "Payment date", Value: r.PaymentDate.Format("2006-01-02")},
		Field{Label: "Method", Value: r.Method},
	)
	for _, field := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 7, tr(field.Label), "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, tr(field.Value), "", 1, "", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, fmt.Sprintf("TOTAL  S/ %.2f", r.Amount), "T", 1, "R", false, 0, "")

	if r.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, tr(r.Notes), "", "", false)
	}

	return output(pdf)
}

func (e *PDFExporter) header(pdf *gofpdf.Fpdf, tr func(string) string, title, subtitle string) {
	if e.academyName != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 5, tr(e.academyName), "", 1, "L", false, 0, "")
	}
	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")
	}
	if subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
