package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/comerzia/catalog-import-service/internal/model"
)

// SheetValidator validates rows against the fixed import-sheet layout.
type SheetValidator struct{}

func NewSheetValidator() *SheetValidator {
	return &SheetValidator{}
}

func (v *SheetValidator) Normalize(cells []string, line int) RawRow {
	out := make([]string, columnCount)
	for i := 0; i < columnCount && i < len(cells); i++ {
		out[i] = strings.TrimSpace(cells[i])
	}
	return RawRow{Cells: out, Line: line}
}

func (v *SheetValidator) ValidateAll(raws []RawRow) ([]ValidatedRow, []model.RowError) {
	valid := make([]ValidatedRow, 0, len(raws))
	var errs []model.RowError

	for _, raw := range raws {
		row, err := v.validate(raw)
		if err != nil {
			errs = append(errs, model.RowError{
				Line:   raw.Line,
				Code:   raw.Cells[colCode],
				Name:   raw.Cells[colName],
				Reason: err.Error(),
			})
			continue
		}
		valid = append(valid, row)
	}

	return valid, errs
}

func (v *SheetValidator) validate(raw RawRow) (ValidatedRow, error) {
	var row ValidatedRow

	row.Code = raw.Cells[colCode]
	if row.Code == "" {
		return row, fmt.Errorf("missing product code")
	}
	row.Name = raw.Cells[colName]
	if row.Name == "" {
		return row, fmt.Errorf("missing product name")
	}

	var err error
	if row.Cost, err = parseAmount(raw.Cells[colCost]); err != nil {
		return row, fmt.Errorf("invalid cost %q", raw.Cells[colCost])
	}
	if row.SellPrice, err = parseAmount(raw.Cells[colSellPrice]); err != nil {
		return row, fmt.Errorf("invalid sell price %q", raw.Cells[colSellPrice])
	}
	if row.OfferPrice, err = parseAmount(raw.Cells[colOfferPrice]); err != nil {
		return row, fmt.Errorf("invalid offer price %q", raw.Cells[colOfferPrice])
	}
	if row.WholesalePrice, err = parseAmount(raw.Cells[colWholesalePrice]); err != nil {
		return row, fmt.Errorf("invalid wholesale price %q", raw.Cells[colWholesalePrice])
	}
	if row.Quantity, err = parseAmount(raw.Cells[colQuantity]); err != nil {
		return row, fmt.Errorf("invalid quantity %q", raw.Cells[colQuantity])
	}
	if row.Kind, err = parseKind(raw.Cells[colKind]); err != nil {
		return row, err
	}

	row.Unassisted = truthy(raw.Cells[colUnassisted])
	row.Line = raw.Line
	return row, nil
}

// parseAmount accepts plain decimals plus the currency formats seen in
// tenant sheets: "$1,234.56", "1.234,56", "12,5". Empty means zero.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, nil
	}

	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		// 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		// 1,234.56
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		// 12,5
		s = strings.Replace(s, ",", ".", 1)
	}

	return strconv.ParseFloat(s, 64)
}

func parseKind(s string) (MovementKind, error) {
	switch strings.ToLower(s) {
	case "", "ajuste", "adjustment":
		return KindAdjustment, nil
	case "entrada", "inbound", "in":
		return KindInbound, nil
	case "salida", "outbound", "out":
		return KindOutbound, nil
	}
	return "", fmt.Errorf("unknown movement kind %q", s)
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "x", "si", "sí", "yes", "y":
		return true
	}
	return false
}
