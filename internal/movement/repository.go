package movement

import (
	"context"

	"github.com/comerzia/catalog-import-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Log(ctx context.Context, m *model.InventoryMovement) error

	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *sqlx.Tx) Repository
}
