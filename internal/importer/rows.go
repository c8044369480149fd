package importer

import "github.com/comerzia/catalog-import-service/internal/model"

// MovementKind classifies how a row's declared quantity affects stock.
type MovementKind string

const (
	// KindInbound adds the declared quantity to current stock.
	KindInbound MovementKind = "inbound"
	// KindOutbound records the movement without changing stock. Unassisted
	// sale rows come through this path.
	KindOutbound MovementKind = "outbound"
	// KindAdjustment sets stock to the declared quantity as an absolute value.
	KindAdjustment MovementKind = "adjustment"
)

// Fixed column layout of the import sheet.
const (
	colCode = iota
	colName
	colCost
	colSellPrice
	colOfferPrice
	colWholesalePrice
	colQuantity
	colKind
	colUnassisted

	columnCount
)

// RawRow is a normalized but not yet validated sheet row.
type RawRow struct {
	Cells []string
	Line  int
}

// ValidatedRow is a row that passed validation and may reach the batch
// engine. Line is the originating 1-based source line.
type ValidatedRow struct {
	Code           string
	Name           string
	Cost           float64
	SellPrice      float64
	OfferPrice     float64
	WholesalePrice float64
	Quantity       float64
	Kind           MovementKind
	Unassisted     bool
	Line           int
}

// RowValidator is the normalization/validation boundary. Rows that fail it
// never reach the batch engine.
type RowValidator interface {
	Normalize(cells []string, line int) RawRow
	// ValidateAll partitions rows deterministically into valid rows and
	// structured row errors.
	ValidateAll(raws []RawRow) ([]ValidatedRow, []model.RowError)
}
