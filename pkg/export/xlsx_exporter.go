package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxSheet     = "Timetable"
	xlsxBaseWidth = 12.0
)

// XLSXExporter renders a Dataset as a single sheet workbook. The title and subtitle occupy the
// first two rows, then the header row, then one row per record.
type XLSXExporter struct{}

// NewXLSXExporter builds a spreadsheet exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render produces the workbook bytes.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(xlsxSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(data.Columns))
	row := 1
	if data.Title != "" {
		_ = f.SetCellValue(xlsxSheet, cellName(1, row), data.Title)
		_ = f.MergeCell(xlsxSheet, cellName(1, row), fmt.Sprintf("%s%d", lastCol, row))
		row++
	}
	if data.Subtitle != "" {
		_ = f.SetCellValue(xlsxSheet, cellName(1, row), data.Subtitle)
		row++
	}

	for i, label := range data.labels() {
		_ = f.SetCellValue(xlsxSheet, cellName(i+1, row), label)
	}
	_ = f.SetCellStyle(xlsxSheet, cellName(1, row), cellName(len(data.Columns), row), headerStyle)
	row++

	for _, record := range data.Rows {
		for i, value := range data.record(record) {
			_ = f.SetCellValue(xlsxSheet, cellName(i+1, row), value)
		}
		row++
	}

	for i, col := range data.Columns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		weight := col.Width
		if weight <= 0 {
			weight = 1
		}
		_ = f.SetColWidth(xlsxSheet, name, name, xlsxBaseWidth*weight)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
