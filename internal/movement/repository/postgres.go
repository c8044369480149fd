package repository

import (
	"context"

	"github.com/comerzia/catalog-import-service/internal/model"
	"github.com/comerzia/catalog-import-service/internal/movement"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	db sqlx.ExtContext
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{db: db}
}

func (r *PGRepository) WithTx(tx *sqlx.Tx) movement.Repository {
	return &PGRepository{db: tx}
}

func (r *PGRepository) Log(ctx context.Context, m *model.InventoryMovement) error {
	query := `
        INSERT INTO inventory_movements (
            id, merchant_id, entry_id, movement_type, quantity,
            quantity_before, quantity_after, reference, notes, created_by, created_at
        )
        VALUES (
            :id, :merchant_id, :entry_id, :movement_type, :quantity,
            :quantity_before, :quantity_after, :reference, :notes, :created_by, :created_at
        )
    `
	_, err := sqlx.NamedExecContext(ctx, r.db, query, m)
	return err
}
