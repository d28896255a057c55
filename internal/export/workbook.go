package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// cellValue keeps numbers numeric in the workbook and renders everything else
// the same way the CSV output does.
func cellValue(v interface{}) interface{} {
	switch x := v.(type) {
	case float64, int, bool:
		return x
	case *float64:
		if x != nil {
			return *x
		}
	case *int:
		if x != nil {
			return *x
		}
	}
	return FormatValue(v)
}

// NewWorkbook builds a single-sheet workbook: a header row from the first
// row's keys followed by one row per Row.
func NewWorkbook(sheet string, rows []Row) (*excelize.File, error) {
	f := excelize.NewFile()
	if sheet == "" {
		sheet = defaultSheet
	}
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to name sheet %q: %w", sheet, err)
		}
	}
	if len(rows) == 0 {
		return f, nil
	}

	for i, key := range rows[0].Keys() {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, key); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header %s: %w", cell, err)
		}
		if col, err := excelize.ColumnNumberToName(i + 1); err == nil {
			f.SetColWidth(sheet, col, col, 18)
		}
	}

	for r, row := range rows {
		for c, field := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				f.Close()
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, cellValue(field.Value)); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}
	return f, nil
}

// WriteWorkbook streams rows as an XLSX file to w
func WriteWorkbook(w io.Writer, sheet string, rows []Row) error {
	f, err := NewWorkbook(sheet, rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
