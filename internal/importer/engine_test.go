package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/comerzia/catalog-import-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// importWorkbook builds an xlsx payload with the fixed column layout:
// a header row followed by the given data rows.
func importWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheetName := f.GetSheetName(0)
	header := []any{"Referencia", "Producto", "Costo", "Precio", "Precio oferta", "Precio mayoreo", "Cantidad", "Tipo", "Venta libre"}
	all := append([][]any{header}, rows...)
	for i, row := range all {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheetName, cell, val))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type fakeState struct {
	entries   map[string]*model.CatalogEntry // by id
	movements []model.InventoryMovement
}

func newFakeState() *fakeState {
	return &fakeState{entries: make(map[string]*model.CatalogEntry)}
}

func (s *fakeState) clone() *fakeState {
	c := newFakeState()
	for id, e := range s.entries {
		cp := *e
		c.entries[id] = &cp
	}
	c.movements = append([]model.InventoryMovement(nil), s.movements...)
	return c
}

func (s *fakeState) findByCode(merchantID, code string) *model.CatalogEntry {
	for _, e := range s.entries {
		if e.MerchantID == merchantID && e.Barcode != nil && *e.Barcode == code {
			return e
		}
	}
	for _, e := range s.entries {
		if e.MerchantID == merchantID && e.SKU == code {
			return e
		}
	}
	return nil
}

type fakeStore struct {
	state     *fakeState
	beginErr  error
	failCodes map[string]error
	last      *fakeBatch
}

func (s *fakeStore) Begin(ctx context.Context) (Batch, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	s.last = &fakeBatch{
		store:      s,
		atBegin:    s.state.clone(),
		savepoints: make(map[string]*fakeState),
	}
	return s.last, nil
}

type fakeBatch struct {
	store      *fakeStore
	atBegin    *fakeState
	savepoints map[string]*fakeState
	committed  bool
	rolledBack bool
}

func (b *fakeBatch) FindEntryByCode(ctx context.Context, merchantID, code string) (*model.CatalogEntry, error) {
	e := b.store.state.findByCode(merchantID, code)
	if e == nil {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (b *fakeBatch) CreateEntry(ctx context.Context, e *model.CatalogEntry) error {
	if err := b.store.failCodes[e.SKU]; err != nil {
		return err
	}
	cp := *e
	b.store.state.entries[e.ID] = &cp
	return nil
}

func (b *fakeBatch) UpdateEntryDetails(ctx context.Context, e *model.CatalogEntry) error {
	if err := b.store.failCodes[e.SKU]; err != nil {
		return err
	}
	cur, ok := b.store.state.entries[e.ID]
	if !ok {
		return errors.New("entry not found")
	}
	cur.Name = e.Name
	cur.CostPrice = e.CostPrice
	cur.SellPrice = e.SellPrice
	cur.OfferPrice = e.OfferPrice
	cur.WholesalePrice = e.WholesalePrice
	cur.UpdatedAt = e.UpdatedAt
	return nil
}

func (b *fakeBatch) StockForUpdate(ctx context.Context, merchantID, id string) (float64, error) {
	cur, ok := b.store.state.entries[id]
	if !ok {
		return 0, errors.New("entry not found")
	}
	return cur.Stock, nil
}

func (b *fakeBatch) UpdateEntryStock(ctx context.Context, merchantID, id string, stock float64) error {
	cur, ok := b.store.state.entries[id]
	if !ok {
		return errors.New("entry not found")
	}
	cur.Stock = stock
	return nil
}

func (b *fakeBatch) LogMovement(ctx context.Context, m *model.InventoryMovement) error {
	b.store.state.movements = append(b.store.state.movements, *m)
	return nil
}

func (b *fakeBatch) Savepoint(ctx context.Context, name string) error {
	b.savepoints[name] = b.store.state.clone()
	return nil
}

func (b *fakeBatch) RollbackTo(ctx context.Context, name string) error {
	snap, ok := b.savepoints[name]
	if !ok {
		return errors.New("unknown savepoint")
	}
	b.store.state.entries = snap.entries
	b.store.state.movements = snap.movements
	return nil
}

func (b *fakeBatch) ReleaseSavepoint(ctx context.Context, name string) error {
	delete(b.savepoints, name)
	return nil
}

func (b *fakeBatch) Commit() error {
	b.committed = true
	return nil
}

func (b *fakeBatch) Rollback() error {
	b.rolledBack = true
	b.store.state.entries = b.atBegin.entries
	b.store.state.movements = b.atBegin.movements
	return nil
}

func newTestEngine(store *fakeStore) *Engine {
	return NewEngine(store, NewSheetValidator(), nil, zap.NewNop())
}

func TestRunInboundRoundTrip(t *testing.T) {
	store := &fakeStore{state: newFakeState()}
	barcode := "750100"
	store.state.entries["e1"] = &model.CatalogEntry{
		BaseModel:  model.BaseModel{ID: "e1"},
		MerchantID: "m1",
		SKU:        "A-1",
		Barcode:    &barcode,
		Name:       "Cafe viejo",
		Stock:      10,
	}

	data := importWorkbook(t, [][]any{
		{"A-1", "Cafe", 10, 15, 14, 12, 5, "entrada", ""},
	})

	res, err := newTestEngine(store).Run(context.Background(), data, "m1", "u1", nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, model.ImportStats{Total: 1, Processed: 1, Created: 0, Updated: 1}, res.Stats)
	assert.True(t, store.last.committed)

	entry := store.state.entries["e1"]
	assert.Equal(t, 15.0, entry.Stock)
	assert.Equal(t, "Cafe", entry.Name)
	assert.Equal(t, 15.0, entry.SellPrice)
	assert.Equal(t, 12.0, entry.WholesalePrice)

	require.Len(t, store.state.movements, 1)
	m := store.state.movements[0]
	assert.Equal(t, "inbound", m.MovementType)
	assert.Equal(t, 10.0, m.QuantityBefore)
	assert.Equal(t, 15.0, m.QuantityAfter)
	assert.Equal(t, 5.0, m.Quantity)
	require.NotNil(t, m.CreatedBy)
	assert.Equal(t, "u1", *m.CreatedBy)
}

func TestRunAdjustmentIsIdempotentAcrossRuns(t *testing.T) {
	store := &fakeStore{state: newFakeState()}
	data := importWorkbook(t, [][]any{
		{"A-1", "Cafe", 10, 15, "", "", 40, "ajuste", ""},
	})
	engine := newTestEngine(store)

	res, err := engine.Run(context.Background(), data, "m1", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Created)

	entry := store.state.findByCode("m1", "A-1")
	require.NotNil(t, entry)
	assert.Equal(t, 40.0, entry.Stock)

	// second run of the same file: everything resolves to update, stock
	// stays at the absolute value instead of doubling
	res, err = engine.Run(context.Background(), data, "m1", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Stats.Created)
	assert.Equal(t, 1, res.Stats.Updated)
	assert.Equal(t, 40.0, store.state.findByCode("m1", "A-1").Stock)
}

func TestRunUnassistedSaleNeverTouchesStock(t *testing.T) {
	store := &fakeStore{state: newFakeState()}
	store.state.entries["e1"] = &model.CatalogEntry{
		BaseModel:  model.BaseModel{ID: "e1"},
		MerchantID: "m1",
		SKU:        "A-1",
		Name:       "Cafe",
		Stock:      10,
	}

	data := importWorkbook(t, [][]any{
		{"A-1", "Cafe", 10, 0, "", "", 7, "salida", "si"},
	})

	res, err := newTestEngine(store).Run(context.Background(), data, "m1", "u1", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)

	entry := store.state.entries["e1"]
	assert.Equal(t, 10.0, entry.Stock)
	// declared price <= 0 is floored to the minimal positive sentinel
	assert.Equal(t, 0.01, entry.SellPrice)

	require.Len(t, store.state.movements, 1)
	m := store.state.movements[0]
	assert.Equal(t, 10.0, m.QuantityBefore)
	assert.Equal(t, 10.0, m.QuantityAfter)
	assert.Equal(t, 7.0, m.Quantity)
}

func TestRunCumulativeStockForRepeatedCode(t *testing.T) {
	store := &fakeStore{state: newFakeState()}
	data := importWorkbook(t, [][]any{
		{"A-1", "Cafe", 10, 15, "", "", 5, "entrada", ""},
		{"A-1", "Cafe", 10, 15, "", "", 7, "entrada", ""},
	})

	res, err := newTestEngine(store).Run(context.Background(), data, "m1", "u1", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stats.Created)
	assert.Equal(t, 1, res.Stats.Updated)
	assert.Equal(t, 12.0, store.state.findByCode("m1", "A-1").Stock)

	require.Len(t, store.state.movements, 2)
	assert.Equal(t, 0.0, store.state.movements[0].QuantityBefore)
	assert.Equal(t, 5.0, store.state.movements[0].QuantityAfter)
	assert.Equal(t, 5.0, store.state.movements[1].QuantityBefore)
	assert.Equal(t, 12.0, store.state.movements[1].QuantityAfter)
}

func TestRunNoDataRows(t *testing.T) {
	store := &fakeStore{state: newFakeState()}
	data := importWorkbook(t, nil)

	res, err := newTestEngine(store).Run(context.Background(), data, "m1", "u1", nil)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "no data rows")
	assert.Nil(t, store.last, "no transaction may be opened")
}

func TestRunNoValidRows(t *testing.T) {
	store := &fakeStore{state: newFakeState()}
	data := importWorkbook(t, [][]any{
		{"", "Sin codigo"},
		{"A-2", ""},
	})

	res, err := newTestEngine(store).Run(context.Background(), data, "m1", "u1", nil)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "no valid rows")
	assert.Equal(t, 2, res.Stats.Total)
	assert.Equal(t, 2, res.Stats.Errors)
	assert.Len(t, res.RowErrors, 2)
	assert.Nil(t, store.last, "no transaction may be opened")
}

func TestRunGarbagePayload(t *testing.T) {
	store := &fakeStore{state: newFakeState()}

	_, err := newTestEngine(store).Run(context.Background(), []byte("not a workbook"), "m1", "u1", nil)
	assert.Error(t, err)
}

func TestRunBeginFailure(t *testing.T) {
	store := &fakeStore{state: newFakeState(), beginErr: errors.New("db down")}
	data := importWorkbook(t, [][]any{
		{"A-1", "Cafe", 10, 15, "", "", 5, "entrada", ""},
	})

	_, err := newTestEngine(store).Run(context.Background(), data, "m1", "u1", nil)
	assert.ErrorContains(t, err, "db down")
}

// thresholdFixture builds 100 data rows: invalidCount rows that fail
// validation plus failingCount valid rows whose codes are wired to fail
// during processing.
func thresholdFixture(t *testing.T, store *fakeStore, invalidCount, failingCount int) []byte {
	t.Helper()
	store.failCodes = make(map[string]error)

	var rows [][]any
	for i := 0; i < 100-invalidCount; i++ {
		code := fmt.Sprintf("A-%d", i)
		rows = append(rows, []any{code, "Producto " + code, 10, 15, "", "", 1, "entrada", ""})
		if i < failingCount {
			store.failCodes[code] = errors.New("constraint violation")
		}
	}
	for i := 0; i < invalidCount; i++ {
		rows = append(rows, []any{fmt.Sprintf("B-%d", i), ""}) // missing name
	}
	return importWorkbook(t, rows)
}

func TestRunCommitsAtThresholdBoundary(t *testing.T) {
	store := &fakeStore{state: newFakeState()}
	data := thresholdFixture(t, store, 40, 10) // 50 errors of 100, ratio 0.50

	res, err := newTestEngine(store).Run(context.Background(), data, "m1", "u1", nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, store.last.committed)
	assert.Equal(t, 100, res.Stats.Total)
	assert.Equal(t, 50, res.Stats.Errors)
	assert.Equal(t, 50, res.Stats.Processed)
	assert.Equal(t, 50, res.Stats.Created+res.Stats.Updated)
	assert.Len(t, store.state.entries, 50)
	assert.Len(t, res.RowErrors, 50)
}

func TestRunAbortsAboveThreshold(t *testing.T) {
	store := &fakeStore{state: newFakeState()}
	data := thresholdFixture(t, store, 40, 30) // 70 errors of 100, ratio 0.70

	res, err := newTestEngine(store).Run(context.Background(), data, "m1", "u1", nil)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "no changes applied")
	assert.True(t, store.last.rolledBack)
	assert.False(t, store.last.committed)
	// full rollback: nothing persisted, successful rows included
	assert.Empty(t, store.state.entries)
	assert.Empty(t, store.state.movements)
}

func TestRunRowErrorsAreOrderedByLine(t *testing.T) {
	store := &fakeStore{state: newFakeState(), failCodes: map[string]error{
		"A-1": errors.New("constraint violation"),
	}}
	data := importWorkbook(t, [][]any{
		{"A-1", "Cafe", 10, 15, "", "", 1, "entrada", ""}, // line 2, processing error
		{"", "Sin codigo"},                                // line 3, validation error
		{"A-3", "Te", 10, 15, "", "", 1, "entrada", ""},   // line 4, fine
	})

	res, err := newTestEngine(store).Run(context.Background(), data, "m1", "u1", nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	require.Len(t, res.RowErrors, 2)
	assert.Equal(t, 2, res.RowErrors[0].Line)
	assert.Equal(t, "A-1", res.RowErrors[0].Code)
	assert.Equal(t, 3, res.RowErrors[1].Line)
	// the failed row did not stop its successors
	assert.NotNil(t, store.state.findByCode("m1", "A-3"))
}

func TestRunProgressCadence(t *testing.T) {
	store := &fakeStore{state: newFakeState()}
	var rows [][]any
	for i := 0; i < 25; i++ {
		code := fmt.Sprintf("A-%d", i)
		rows = append(rows, []any{code, "Producto " + code, 10, 15, "", "", 1, "entrada", ""})
	}
	data := importWorkbook(t, rows)

	var checkpoints []int
	var lastStats model.ImportStats
	onProgress := func(processed, total int, stats model.ImportStats) {
		assert.Equal(t, 25, total)
		checkpoints = append(checkpoints, processed)
		lastStats = stats
	}

	res, err := newTestEngine(store).Run(context.Background(), data, "m1", "u1", onProgress)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []int{10, 20, 25}, checkpoints)
	assert.Equal(t, 25, lastStats.Processed)
}

func TestRunPanickyProgressCallbackDoesNotAbort(t *testing.T) {
	store := &fakeStore{state: newFakeState()}
	var rows [][]any
	for i := 0; i < 12; i++ {
		code := fmt.Sprintf("A-%d", i)
		rows = append(rows, []any{code, "Producto " + code, 10, 15, "", "", 1, "entrada", ""})
	}
	data := importWorkbook(t, rows)

	res, err := newTestEngine(store).Run(context.Background(), data, "m1", "u1",
		func(processed, total int, stats model.ImportStats) {
			panic("poller went away")
		})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 12, res.Stats.Processed)
}
