package export

import (
	"fmt"
	"time"

	"opas-admin-workers/internal/models"

	"github.com/xuri/excelize/v2"
)

// ExcelSheet is the name of the single worksheet in Excel exports.
const ExcelSheet = "Export"

// Excel renders ds as an .xlsx workbook with a bold, frozen header row.
// Numbers and booleans are written as native cell values.
func (f *Formatter) Excel(ds Dataset) (*models.ExportResult, error) {
	if err := requireRecords(models.FormatExcel, ds); err != nil {
		return nil, err
	}

	cols := columns(ds)
	now := f.now()

	x := excelize.NewFile()
	defer x.Close()

	if err := x.SetSheetName("Sheet1", ExcelSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := x.SetSheetRow(ExcelSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	style, err := x.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return nil, err
	}
	if err := x.SetCellStyle(ExcelSheet, "A1", lastHeader, style); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, rec := range ds.Records {
		row := make([]interface{}, len(cols))
		for j, c := range cols {
			row[j] = excelValue(rec[c])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := x.SetSheetRow(ExcelSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(cols))
	if err != nil {
		return nil, err
	}
	if err := x.SetColWidth(ExcelSheet, "A", lastCol, 20); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	if err := x.SetPanes(ExcelSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}

	return f.result(models.FormatExcel, "xlsx", ds, buf.Bytes(), now), nil
}

func excelValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return ""
	case bool, int, int64, float64:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return formatValue(val)
	}
}
