package importer

import (
	"context"
	"fmt"

	"github.com/comerzia/catalog-import-service/internal/catalog"
	"github.com/comerzia/catalog-import-service/internal/model"
	"github.com/comerzia/catalog-import-service/internal/movement"
	"github.com/jmoiron/sqlx"
)

// Batch is one open transaction spanning a whole import. Every operation
// runs inside it; Commit or Rollback finalizes the entire batch atomically.
type Batch interface {
	FindEntryByCode(ctx context.Context, merchantID, code string) (*model.CatalogEntry, error)
	CreateEntry(ctx context.Context, e *model.CatalogEntry) error
	UpdateEntryDetails(ctx context.Context, e *model.CatalogEntry) error
	StockForUpdate(ctx context.Context, merchantID, id string) (float64, error)
	UpdateEntryStock(ctx context.Context, merchantID, id string, stock float64) error
	LogMovement(ctx context.Context, m *model.InventoryMovement) error

	// Per-row savepoints: a failed row is rolled back to its savepoint so it
	// cannot poison the statements of later rows in the same transaction.
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error

	Commit() error
	Rollback() error
}

// Store opens batches.
type Store interface {
	Begin(ctx context.Context) (Batch, error)
}

// PGStore binds the catalog and movement repositories to one postgres
// transaction per batch.
type PGStore struct {
	db        *sqlx.DB
	entries   catalog.Repository
	movements movement.Repository
}

func NewPGStore(db *sqlx.DB, entries catalog.Repository, movements movement.Repository) *PGStore {
	return &PGStore{db: db, entries: entries, movements: movements}
}

func (s *PGStore) Begin(ctx context.Context) (Batch, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("importer: begin batch: %w", err)
	}
	return &pgBatch{
		tx:        tx,
		entries:   s.entries.WithTx(tx),
		movements: s.movements.WithTx(tx),
	}, nil
}

type pgBatch struct {
	tx        *sqlx.Tx
	entries   catalog.Repository
	movements movement.Repository
}

func (b *pgBatch) FindEntryByCode(ctx context.Context, merchantID, code string) (*model.CatalogEntry, error) {
	return b.entries.FindByCode(ctx, merchantID, code)
}

func (b *pgBatch) CreateEntry(ctx context.Context, e *model.CatalogEntry) error {
	return b.entries.Create(ctx, e)
}

func (b *pgBatch) UpdateEntryDetails(ctx context.Context, e *model.CatalogEntry) error {
	return b.entries.UpdateDetails(ctx, e)
}

func (b *pgBatch) StockForUpdate(ctx context.Context, merchantID, id string) (float64, error) {
	return b.entries.GetStockForUpdate(ctx, merchantID, id)
}

func (b *pgBatch) UpdateEntryStock(ctx context.Context, merchantID, id string, stock float64) error {
	return b.entries.UpdateStock(ctx, merchantID, id, stock)
}

func (b *pgBatch) LogMovement(ctx context.Context, m *model.InventoryMovement) error {
	return b.movements.Log(ctx, m)
}

func (b *pgBatch) Savepoint(ctx context.Context, name string) error {
	_, err := b.tx.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

func (b *pgBatch) RollbackTo(ctx context.Context, name string) error {
	_, err := b.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}

func (b *pgBatch) ReleaseSavepoint(ctx context.Context, name string) error {
	_, err := b.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (b *pgBatch) Commit() error   { return b.tx.Commit() }
func (b *pgBatch) Rollback() error { return b.tx.Rollback() }
