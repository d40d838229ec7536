package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidthLandscape = 277.0
	rowHeight          = 7.0
)

// PDFExporter renders datasets as a landscape A4 table.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates the document. Header cells are repeated on every page.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}
	widths := columnWidths(data.Columns)
	labels := data.labels()

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.SetHeaderFunc(func() {
		if data.Title != "" {
			pdf.SetFont("Arial", "B", 14)
			pdf.CellFormat(0, 9, data.Title, "", 1, "L", false, 0, "")
		}
		if data.Subtitle != "" {
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(0, 6, data.Subtitle, "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, label := range labels {
			pdf.CellFormat(widths[i], 8, label, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for i, value := range data.record(row) {
			pdf.CellFormat(widths[i], rowHeight, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(columns []Column) []float64 {
	var total float64
	for _, col := range columns {
		total += weight(col)
	}
	widths := make([]float64, len(columns))
	for i, col := range columns {
		widths[i] = pageWidthLandscape * weight(col) / total
	}
	return widths
}

func weight(col Column) float64 {
	if col.Width <= 0 {
		return 1
	}
	return col.Width
}
