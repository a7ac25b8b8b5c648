// Package export renders tabular reports and payment receipts as CSV or PDF.
package export

// Format identifies a rendered output type.
type Format string

// Supported formats.
const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat normalises raw, defaulting to PDF.
func ParseFormat(raw string) (Format, bool) {
	switch Format(raw) {
	case "", FormatPDF:
		return FormatPDF, true
	case FormatCSV:
		return FormatCSV, true
	}
	return "", false
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/pdf"
}

// Field is a labelled summary value printed above the table.
type Field struct {
	Label string
	Value string
}

// Report is a titled table with an optional summary block.
type Report struct {
	Title    string
	Subtitle string
	Summary  []Field
	Headers  []string
	Rows     [][]string
}
