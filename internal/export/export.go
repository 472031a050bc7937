// Package export writes derived tables as CSV or XLSX downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"sales-explorer/internal/models"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

func (f Format) Extension() string {
	return "." + string(f)
}

// Write encodes t in format f.
func Write(w io.Writer, f Format, sheet string, t models.Tabular) error {
	if f == FormatXLSX {
		return WriteXLSX(w, sheet, t)
	}
	return WriteCSV(w, t)
}

// WriteCSV writes a header row followed by every row of t as UTF-8 CSV.
func WriteCSV(w io.Writer, t models.Tabular) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rows := t.Rows()
	record := make([]string, 0, len(t.Header()))
	for _, row := range rows {
		record = record[:0]
		for _, v := range row {
			record = append(record, FormatCell(v))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// FormatCell renders one table value as text.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case decimal.Decimal:
		return x.String()
	case decimal.NullDecimal:
		if !x.Valid {
			return ""
		}
		return x.Decimal.String()
	case time.Time:
		return x.Format(time.DateOnly)
	default:
		return fmt.Sprint(x)
	}
}

// WriteXLSX writes t to a single-sheet workbook with a bold, frozen header.
func WriteXLSX(w io.Writer, sheet string, t models.Tabular) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Data"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F4E79"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return fmt.Errorf("create date style: %w", err)
	}

	// The stream writer only accepts panes before the first row.
	if err := sw.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	header := make([]any, 0, len(t.Header()))
	for _, h := range t.Header() {
		header = append(header, excelize.Cell{StyleID: headerStyle, Value: h})
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{Height: 18}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range t.Rows() {
		cells := make([]any, 0, len(row))
		for _, v := range row {
			cells = append(cells, xlsxValue(v, dateStyle))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func xlsxValue(v any, dateStyle int) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.InexactFloat64()
	case decimal.NullDecimal:
		if !x.Valid {
			return nil
		}
		return x.Decimal.InexactFloat64()
	case time.Time:
		return excelize.Cell{StyleID: dateStyle, Value: x}
	default:
		return v
	}
}
