package catalog

import (
	"context"

	"github.com/comerzia/catalog-import-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	// FindByCode matches code against barcode or SKU within the tenant.
	// Barcode takes precedence when both could match different entries.
	FindByCode(ctx context.Context, merchantID, code string) (*model.CatalogEntry, error)
	Create(ctx context.Context, e *model.CatalogEntry) error
	// UpdateDetails writes the mutable price/cost/name fields only; stock is
	// changed exclusively through UpdateStock.
	UpdateDetails(ctx context.Context, e *model.CatalogEntry) error
	// GetStockForUpdate reads current stock with a row lock so sequential
	// rows of one batch observe each other's writes.
	GetStockForUpdate(ctx context.Context, merchantID, id string) (float64, error)
	UpdateStock(ctx context.Context, merchantID, id string, stock float64) error

	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *sqlx.Tx) Repository
}
