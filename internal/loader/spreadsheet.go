package loader

import (
	"bytes"
	"io"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// readXLSX reads the first sheet of an Office Open XML workbook. Cells are
// read raw so dates arrive as serial numbers regardless of display format;
// parseRecord turns them back into dates.
func readXLSX(r io.Reader) (*rawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, malformed(err, "could not open the spreadsheet")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, malformed(nil, "the spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, malformed(err, "could not read sheet %q", sheets[0])
	}
	return tableFromGrid(rows), nil
}

// readXLS reads the first sheet of a legacy BIFF workbook.
func readXLS(r io.Reader) (*rawTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, malformed(err, "could not read the file")
	}

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, malformed(err, "could not open the spreadsheet")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, malformed(nil, "the spreadsheet has no sheets")
	}

	grid := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		// LastCol is inclusive in some writers and exclusive in others; the
		// extra cell is blank and trimmed by tableFromGrid.
		cells := make([]string, row.LastCol()+1)
		for j := row.FirstCol(); j <= row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		grid = append(grid, cells)
	}
	return tableFromGrid(grid), nil
}

// tableFromGrid treats the first non-empty row as the header. Spreadsheet
// readers trim trailing empty cells, so short rows are padded; rows that are
// entirely blank are dropped.
func tableFromGrid(grid [][]string) *rawTable {
	table := &rawTable{}
	for _, row := range grid {
		if isBlank(row) {
			continue
		}
		if table.header == nil {
			header := make([]string, len(row))
			for i, h := range row {
				header[i] = strings.TrimSpace(h)
			}
			table.header = header
			continue
		}
		if len(row) > len(table.header) {
			if !isBlank(row[len(table.header):]) {
				table.skipped++
				continue
			}
			row = row[:len(table.header)]
		}
		padded := make([]string, len(table.header))
		copy(padded, row)
		table.rows = append(table.rows, padded)
	}
	return table
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
