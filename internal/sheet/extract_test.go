package sheet

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// workbook builds an xlsx payload whose first sheet holds the given rows.
func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, val))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseFirstSheetPadsShortRows(t *testing.T) {
	data := workbook(t, [][]any{
		{"Referencia", "Producto", "Costo"},
		{"A-1"},
		{"A-2", "Cafe", 12.5},
	})

	grid, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, grid, 3)
	for _, row := range grid {
		assert.Len(t, row, 3)
	}
	assert.Equal(t, "", grid[1][1])
	assert.Equal(t, "12.5", grid[2][2])
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("this is not a workbook"))
	assert.Error(t, err)
}

func TestLocateHeader(t *testing.T) {
	tests := []struct {
		name string
		grid [][]string
		want int
	}{
		{"first row", [][]string{{"Referencia", "Nombre"}}, 0},
		{"keyword inside text", [][]string{{"informe"}, {"Listado de productos"}}, 1},
		{"case insensitive", [][]string{{""}, {"CODIGO"}}, 1},
		{"price family", [][]string{{"x"}, {"Precio venta"}}, 1},
		{"no header", [][]string{{"hoja"}, {"empresa"}}, -1},
		{"empty grid", nil, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LocateHeader(tt.grid))
		})
	}
}

func TestExtractDataRowsAfterHeader(t *testing.T) {
	grid := [][]string{
		{"Inventario general", ""},
		{"Referencia", "Producto"},
		{"A-1", "Cafe"},
		{"", "  "}, // blank, discarded
		{"A-2", "Te"},
	}

	rows, start := ExtractDataRows(grid)
	assert.Equal(t, 2, start)
	require.Len(t, rows, 2)
	assert.Equal(t, "A-1", rows[0].Cells[0])
	assert.Equal(t, 3, rows[0].Line)
	assert.Equal(t, 5, rows[1].Line)
}

func TestExtractDataRowsFallbackOffset(t *testing.T) {
	var grid [][]string
	for i := 0; i < FallbackDataStart; i++ {
		grid = append(grid, []string{fmt.Sprintf("preamble %d", i)})
	}
	grid = append(grid, []string{"A-1", "Cafe"})

	rows, start := ExtractDataRows(grid)
	assert.Equal(t, FallbackDataStart, start)
	require.Len(t, rows, 1)
	assert.Equal(t, FallbackDataStart+1, rows[0].Line)
}

func TestExtractDataRowsNothingUsable(t *testing.T) {
	rows, start := ExtractDataRows([][]string{
		{"Referencia", "Producto"},
		{"", ""},
	})
	assert.Nil(t, rows)
	assert.Equal(t, -1, start)

	// header present but no rows after it at all
	rows, start = ExtractDataRows([][]string{{"Referencia"}})
	assert.Nil(t, rows)
	assert.Equal(t, -1, start)
}
