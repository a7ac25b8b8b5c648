package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() Report {
	return Report{
		Title:   "Attendance report",
		Summary: []Field{{Label: "Attendance", Value: "66.67%"}},
		Headers: []string{"Date", "Student", "Present"},
		Rows: [][]string{
			{"2024-05-06", "Ana Pérez", "yes"},
			{"2024-05-07", "Luis, Jr", "no"},
		},
	}
}

func TestCSVRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleReport())
	require.NoError(t, err)
	expected := "Attendance,66.67%\n\nDate,Student,Present\n2024-05-06,Ana Pérez,yes\n2024-05-07,\"Luis, Jr\",no\n"
	assert.Equal(t, expected, string(out))
}

func TestCSVRenderRejectsRaggedRows(t *testing.T) {
	report := sampleReport()
	report.Rows = append(report.Rows, []string{"only-one"})
	_, err := NewCSVExporter().Render(report)
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	out, err := NewPDFExporter("Academy").Render(sampleReport())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter("").Render(Report{})
	assert.Error(t, err)
}

func TestRenderReceipt(t *testing.T) {
	out, err := NewPDFExporter("Academy").RenderReceipt(Receipt{
		Number:      "REC-2024-000001",
		IssuedAt:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		StudentName: "Ana Pérez",
		Concept:     "Mensualidad mayo",
		Amount:      250,
		Method:      "CASH",
		PaymentDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter("").RenderReceipt(Receipt{})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat("")
	assert.True(t, ok)
	assert.Equal(t, FormatPDF, f)
	f, ok = ParseFormat("csv")
	assert.True(t, ok)
	assert.Equal(t, "text/csv", f.ContentType())
	_, ok = ParseFormat("xlsx")
	assert.False(t, ok)
}
