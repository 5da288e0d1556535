package corpus

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// WorkbookReader yields, per sheet, an ordered column list and ordered rows
// of cell values.
type WorkbookReader interface {
	Read(path string) ([]Sheet, error)
}

// ExcelReader reads .xlsx workbooks.
type ExcelReader struct{}

// NewExcelReader creates a new Excel workbook reader.
func NewExcelReader() *ExcelReader {
	return &ExcelReader{}
}

// Read loads every sheet of the workbook at path. The first row of each
// sheet is treated as the column header; remaining rows are data. Sheets
// with no data rows are returned with empty Rows and contribute no snippets
// downstream.
func (r *ExcelReader) Read(path string) ([]Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}

		sheet := Sheet{Name: name}
		if len(rows) > 0 {
			sheet.Columns = rows[0]
			sheet.Rows = rows[1:]
		}
		sheets = append(sheets, sheet)
	}

	return sheets, nil
}

// Verify interface implementation
var _ WorkbookReader = (*ExcelReader)(nil)
