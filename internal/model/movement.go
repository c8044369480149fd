package model

import "time"

// InventoryMovement is an append-only stock audit record. Outbound and
// unassisted-sale rows keep QuantityBefore == QuantityAfter but are still
// recorded.
type InventoryMovement struct {
	ID             string    `db:"id" json:"id"`
	MerchantID     string    `db:"merchant_id" json:"merchant_id"`
	EntryID        string    `db:"entry_id" json:"entry_id"`
	MovementType   string    `db:"movement_type" json:"movement_type"`
	Quantity       float64   `db:"quantity" json:"quantity"`
	QuantityBefore float64   `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  float64   `db:"quantity_after" json:"quantity_after"`
	Reference      *string   `db:"reference" json:"reference"`
	Notes          string    `db:"notes" json:"notes"`
	CreatedBy      *string   `db:"created_by" json:"created_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
