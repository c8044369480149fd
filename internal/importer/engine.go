package importer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/comerzia/catalog-import-service/internal/model"
	"github.com/comerzia/catalog-import-service/internal/sheet"
	"github.com/comerzia/catalog-import-service/pkg/search"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// abortThreshold is the error-ratio gate: above it the whole batch is
	// rolled back instead of left half-applied.
	abortThreshold = 0.5
	// progressEvery controls how often the progress callback fires.
	progressEvery = 10
	// minSellPrice floors the stored sell price of unassisted sale rows so
	// storage constraints hold while the row's intent is preserved.
	minSellPrice = 0.01

	movementReference = "bulk-import"
	searchIndex       = "catalog_entries"
)

// ProgressFunc receives checkpoints while a batch runs. Failures inside the
// callback never abort the batch.
type ProgressFunc func(processed, totalValid int, stats model.ImportStats)

// Result is the outcome of one batch run. RowErrors holds both validation
// and processing errors, ordered by source line.
type Result struct {
	Success   bool
	Message   string
	Stats     model.ImportStats
	RowErrors []model.RowError
}

// Engine applies a whole spreadsheet of catalog changes under the
// optimistic-apply, threshold-gated commit policy: rows are applied
// independently inside one transaction, then the aggregate error ratio
// decides commit or rollback.
type Engine struct {
	store     Store
	validator RowValidator
	es        *search.Client // optional, nil tolerated
	logger    *zap.Logger
}

func NewEngine(store Store, validator RowValidator, es *search.Client, logger *zap.Logger) *Engine {
	return &Engine{store: store, validator: validator, es: es, logger: logger}
}

// Run processes one uploaded workbook for the given tenant. Only systemic
// failures (parse, begin, commit) come back as errors; row-level failures
// are folded into the Result.
func (e *Engine) Run(ctx context.Context, data []byte, merchantID, userID string, onProgress ProgressFunc) (*Result, error) {
	grid, err := sheet.Parse(data)
	if err != nil {
		return nil, err
	}

	rows, start := sheet.ExtractDataRows(grid)
	if start < 0 {
		return &Result{Success: false, Message: "no data rows found in file"}, nil
	}

	raws := make([]RawRow, 0, len(rows))
	for _, r := range rows {
		raws = append(raws, e.validator.Normalize(r.Cells, r.Line))
	}
	valid, rowErrs := e.validator.ValidateAll(raws)

	stats := model.ImportStats{Total: len(rows), Errors: len(rowErrs)}
	if len(valid) == 0 {
		return &Result{
			Success:   false,
			Message:   "no valid rows to import",
			Stats:     stats,
			RowErrors: rowErrs,
		}, nil
	}

	batch, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	var touched []model.CatalogEntry
	for i, row := range valid {
		sp := fmt.Sprintf("row_%d", i)
		if err := batch.Savepoint(ctx, sp); err != nil {
			_ = batch.Rollback()
			return nil, fmt.Errorf("importer: savepoint: %w", err)
		}

		entry, created, err := e.applyRow(ctx, batch, merchantID, userID, row)
		if err != nil {
			if rbErr := batch.RollbackTo(ctx, sp); rbErr != nil {
				_ = batch.Rollback()
				return nil, fmt.Errorf("importer: rollback to savepoint: %w", rbErr)
			}
			rowErrs = append(rowErrs, model.RowError{
				Line:   row.Line,
				Code:   row.Code,
				Name:   row.Name,
				Reason: err.Error(),
			})
			stats.Errors++
		} else {
			_ = batch.ReleaseSavepoint(ctx, sp)
			stats.Processed++
			if created {
				stats.Created++
			} else {
				stats.Updated++
			}
			touched = append(touched, *entry)
		}

		if (i+1)%progressEvery == 0 {
			e.notify(onProgress, i+1, len(valid), stats)
		}
	}
	if len(valid)%progressEvery != 0 {
		e.notify(onProgress, len(valid), len(valid), stats)
	}

	sort.SliceStable(rowErrs, func(i, j int) bool { return rowErrs[i].Line < rowErrs[j].Line })

	ratio := float64(stats.Errors) / float64(stats.Total)
	if ratio > abortThreshold {
		if err := batch.Rollback(); err != nil {
			e.logger.Error("batch rollback failed", zap.Error(err))
		}
		e.logger.Warn("import aborted: error ratio over threshold",
			zap.String("merchant_id", merchantID),
			zap.Float64("ratio", ratio),
			zap.Int("errors", stats.Errors),
			zap.Int("total", stats.Total),
		)
		return &Result{
			Success:   false,
			Message:   fmt.Sprintf("import aborted: %d of %d rows failed, no changes applied", stats.Errors, stats.Total),
			Stats:     stats,
			RowErrors: rowErrs,
		}, nil
	}

	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("importer: commit batch: %w", err)
	}

	go e.syncToSearch(merchantID, touched)

	return &Result{
		Success: true,
		Message: fmt.Sprintf("import completed: %d created, %d updated, %d errors",
			stats.Created, stats.Updated, stats.Errors),
		Stats:     stats,
		RowErrors: rowErrs,
	}, nil
}

// applyRow upserts the catalog entry for one row and records its inventory
// movement. Stock reads go through the batch so later rows for the same
// code observe earlier writes within the same file.
func (e *Engine) applyRow(ctx context.Context, batch Batch, merchantID, userID string, row ValidatedRow) (*model.CatalogEntry, bool, error) {
	now := time.Now()

	sellPrice := row.SellPrice
	if row.Unassisted && sellPrice <= 0 {
		sellPrice = minSellPrice
	}

	entry, err := batch.FindEntryByCode(ctx, merchantID, row.Code)
	if err != nil {
		return nil, false, err
	}

	created := entry == nil
	if created {
		entry = &model.CatalogEntry{
			BaseModel:      model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
			MerchantID:     merchantID,
			SKU:            row.Code,
			Name:           row.Name,
			CostPrice:      row.Cost,
			SellPrice:      sellPrice,
			OfferPrice:     row.OfferPrice,
			WholesalePrice: row.WholesalePrice,
			Stock:          0,
		}
		if err := batch.CreateEntry(ctx, entry); err != nil {
			return nil, false, err
		}
	} else {
		entry.Name = row.Name
		entry.CostPrice = row.Cost
		entry.SellPrice = sellPrice
		entry.OfferPrice = row.OfferPrice
		entry.WholesalePrice = row.WholesalePrice
		entry.UpdatedAt = now
		if err := batch.UpdateEntryDetails(ctx, entry); err != nil {
			return nil, false, err
		}
	}

	if row.Quantity != 0 {
		before, err := batch.StockForUpdate(ctx, merchantID, entry.ID)
		if err != nil {
			return nil, false, err
		}

		after := before
		if !row.Unassisted {
			switch row.Kind {
			case KindInbound:
				after = before + row.Quantity
			case KindAdjustment:
				after = row.Quantity
			case KindOutbound:
				// record only, stock untouched
			}
		}
		if after != before {
			if err := batch.UpdateEntryStock(ctx, merchantID, entry.ID, after); err != nil {
				return nil, false, err
			}
		}

		notes := "bulk import"
		if row.Unassisted {
			notes = "bulk import (unassisted sale)"
		}
		ref := movementReference
		var createdBy *string
		if userID != "" {
			createdBy = &userID
		}
		m := &model.InventoryMovement{
			ID:             uuid.New().String(),
			MerchantID:     merchantID,
			EntryID:        entry.ID,
			MovementType:   string(row.Kind),
			Quantity:       row.Quantity,
			QuantityBefore: before,
			QuantityAfter:  after,
			Reference:      &ref,
			Notes:          notes,
			CreatedBy:      createdBy,
			CreatedAt:      now,
		}
		if err := batch.LogMovement(ctx, m); err != nil {
			return nil, false, err
		}
		entry.Stock = after
	}

	return entry, created, nil
}

func (e *Engine) notify(fn ProgressFunc, processed, total int, stats model.ImportStats) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("progress callback panicked", zap.Any("panic", r))
		}
	}()
	fn(processed, total, stats)
}

var searchMapping = `{
	"mappings": {
		"properties": {
			"merchant_id": { "type": "keyword" },
			"sku": { "type": "keyword" },
			"barcode": { "type": "keyword" },
			"name": { "type": "text" },
			"sell_price": { "type": "double" }
		}
	}
}`

// syncToSearch indexes the committed entries best-effort after a successful
// run. Search staleness is acceptable; import results are not.
func (e *Engine) syncToSearch(merchantID string, entries []model.CatalogEntry) {
	if e.es == nil || len(entries) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = e.es.CreateIndex(ctx, searchIndex, searchMapping)
	for _, entry := range entries {
		if err := e.es.Index(ctx, searchIndex, entry.ID, entry); err != nil {
			e.logger.Error("failed to index catalog entry",
				zap.String("merchant_id", merchantID),
				zap.String("entry_id", entry.ID),
				zap.Error(err),
			)
		}
	}
}
