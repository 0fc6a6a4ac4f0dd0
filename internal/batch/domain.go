package batch

import (
	"time"

	"github.com/shopspring/decimal"
)

// Batch is a dated, cost-tagged lot of stock for one product at one location.
// TotalQuantity is immutable after creation; QuantityInStock moves only
// through AdjustStock inside a unit of work that also records the consuming
// or restoring document. Batches are never deleted: an exhausted batch stays
// queryable for audit.
type Batch struct {
	ID              int64           `json:"id"`
	ProductID       int64           `json:"product_id"`
	LocationID      int64           `json:"location_id"`
	TotalQuantity   decimal.Decimal `json:"total_quantity"`
	QuantityInStock decimal.Decimal `json:"quantity_in_stock"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	ExpiryDate      *time.Time      `json:"expiry_date,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Expired reports whether the batch expiry has passed at the given time.
// Batches without an expiry never expire.
func (b Batch) Expired(at time.Time) bool {
	return b.ExpiryDate != nil && !b.ExpiryDate.After(at)
}

// AllocationLine records that a document moved Quantity units into or out of
// one batch. Documents embed these lines; the batch itself is referenced by
// id only.
type AllocationLine struct {
	BatchID  int64           `json:"batch_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// CreateParams describes a stock-in that materialises a new batch.
type CreateParams struct {
	ProductID  int64
	LocationID int64
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
	ExpiryDate *time.Time
}

// ProductInfo is the slice of the product catalog the engine reads for
// availability messages and low-stock checks. The catalog itself is owned by
// an external collaborator.
type ProductInfo struct {
	ID          int64
	Name        string
	Unit        string
	LowQuantity decimal.Decimal
}
