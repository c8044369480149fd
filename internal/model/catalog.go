package model

// CatalogEntry is one sellable item in a tenant's catalog. Stock is only
// mutated through inventory movements, except at creation where it starts
// at zero.
type CatalogEntry struct {
	BaseModel
	MerchantID     string  `db:"merchant_id" json:"merchant_id"`
	SKU            string  `db:"sku" json:"sku"`
	Barcode        *string `db:"barcode" json:"barcode"` // Nullable
	Name           string  `db:"name" json:"name"`
	CostPrice      float64 `db:"cost_price" json:"cost_price"`
	SellPrice      float64 `db:"sell_price" json:"sell_price"`
	OfferPrice     float64 `db:"offer_price" json:"offer_price"`
	WholesalePrice float64 `db:"wholesale_price" json:"wholesale_price"`
	Stock          float64 `db:"stock" json:"stock"`
}
