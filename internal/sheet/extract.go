// Package sheet locates and slices the data rows out of an uploaded
// spreadsheet. Only the first sheet of a workbook is read.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrNoSheets = errors.New("sheet: workbook has no sheets")

// headerKeywords mark a row as the column-header row when the first cell
// contains any of them. Spanish forms included because that is what the
// tenants' files use.
var headerKeywords = []string{
	"reference", "referencia", "ref.",
	"product", "producto",
	"code", "codigo", "código", "sku",
	"stock", "existencia",
	"cost", "costo",
	"price", "precio",
}

// FallbackDataStart is the data start index used when no header row is
// recognized. It matches the layout of the sheets this importer was built
// for and is a heuristic, not a guarantee.
const FallbackDataStart = 16

// Row is one non-blank data row plus its 1-based source line for error
// reporting.
type Row struct {
	Cells []string
	Line  int
}

// Parse reads the first sheet of the workbook into a rectangular grid.
// Short rows are padded with empty strings so every row has the same width.
func Parse(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("sheet: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("sheet: read rows: %w", err)
	}

	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for i, r := range rows {
		for len(r) < width {
			r = append(r, "")
		}
		rows[i] = r
	}

	return rows, nil
}

// LocateHeader scans top to bottom for the first row whose first cell
// contains a header keyword, case-insensitively. Returns -1 when no row
// qualifies.
func LocateHeader(grid [][]string) int {
	for i, row := range grid {
		if len(row) == 0 {
			continue
		}
		first := strings.ToLower(strings.TrimSpace(row[0]))
		if first == "" {
			continue
		}
		for _, kw := range headerKeywords {
			if strings.Contains(first, kw) {
				return i
			}
		}
	}
	return -1
}

// ExtractDataRows slices the grid from headerIndex+1 (or the fixed fallback
// offset when no header is found), discarding rows that are blank after
// trimming. Returns (nil, -1) when nothing usable remains.
func ExtractDataRows(grid [][]string) ([]Row, int) {
	start := LocateHeader(grid) + 1
	if start == 0 {
		start = FallbackDataStart
	}
	if start >= len(grid) {
		return nil, -1
	}

	var rows []Row
	for i := start; i < len(grid); i++ {
		if blank(grid[i]) {
			continue
		}
		rows = append(rows, Row{Cells: grid[i], Line: i + 1})
	}
	if len(rows) == 0 {
		return nil, -1
	}
	return rows, start
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
