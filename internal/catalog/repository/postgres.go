package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/comerzia/catalog-import-service/internal/catalog"
	"github.com/comerzia/catalog-import-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	db sqlx.ExtContext
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{db: db}
}

func (r *PGRepository) WithTx(tx *sqlx.Tx) catalog.Repository {
	return &PGRepository{db: tx}
}

func (r *PGRepository) FindByCode(ctx context.Context, merchantID, code string) (*model.CatalogEntry, error) {
	var entry model.CatalogEntry
	// barcode before SKU when both could match different entries
	query := `
        SELECT * FROM catalog_entries
        WHERE merchant_id = $1 AND (barcode = $2 OR sku = $2)
        ORDER BY (barcode = $2) DESC
        LIMIT 1
    `
	err := sqlx.GetContext(ctx, r.db, &entry, query, merchantID, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *PGRepository) Create(ctx context.Context, e *model.CatalogEntry) error {
	query := `
        INSERT INTO catalog_entries (
            id, merchant_id, sku, barcode, name, cost_price, sell_price,
            offer_price, wholesale_price, stock, created_at, updated_at
        )
        VALUES (
            :id, :merchant_id, :sku, :barcode, :name, :cost_price, :sell_price,
            :offer_price, :wholesale_price, :stock, :created_at, :updated_at
        )
    `
	_, err := sqlx.NamedExecContext(ctx, r.db, query, e)
	return err
}

func (r *PGRepository) UpdateDetails(ctx context.Context, e *model.CatalogEntry) error {
	query := `
        UPDATE catalog_entries
        SET name = :name,
            cost_price = :cost_price,
            sell_price = :sell_price,
            offer_price = :offer_price,
            wholesale_price = :wholesale_price,
            updated_at = :updated_at
        WHERE id = :id AND merchant_id = :merchant_id
    `
	_, err := sqlx.NamedExecContext(ctx, r.db, query, e)
	return err
}

func (r *PGRepository) GetStockForUpdate(ctx context.Context, merchantID, id string) (float64, error) {
	var stock float64
	query := `SELECT stock FROM catalog_entries WHERE id = $1 AND merchant_id = $2 FOR UPDATE`
	err := sqlx.GetContext(ctx, r.db, &stock, query, id, merchantID)
	return stock, err
}

func (r *PGRepository) UpdateStock(ctx context.Context, merchantID, id string, stock float64) error {
	query := `UPDATE catalog_entries SET stock = $1, updated_at = now() WHERE id = $2 AND merchant_id = $3`
	_, err := r.db.ExecContext(ctx, query, stock, id, merchantID)
	return err
}
