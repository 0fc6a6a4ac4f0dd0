package batch

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian/internal/settings"
	"github.com/meridian-pos/meridian/internal/shared"
)

// TxLedger is the tx-scoped surface every recorder mutates stock through.
// All implementations run inside the caller's unit of work, so a failed step
// rolls back the whole document along with its batch mutations.
type TxLedger interface {
	// CreateBatch materialises a new lot (stock-in).
	CreateBatch(ctx context.Context, params CreateParams) (Batch, error)
	// CandidateBatches returns lots with stock remaining, ordered by policy,
	// locked for the duration of the transaction.
	CandidateBatches(ctx context.Context, productID, locationID int64, method settings.InventoryMethod, considerExpiry bool) ([]Batch, error)
	// AdjustStock applies an atomic conditional delta to quantity_in_stock.
	// Decrements that would go negative fail with ErrInsufficientStock.
	AdjustStock(ctx context.Context, batchID int64, delta decimal.Decimal) error
}

// StockOut is the single stock-out primitive shared by sales, decrease
// adjustments, and transfer sends: order candidates by policy, plan the
// allocation, then apply each per-batch decrement. Aggregate availability is
// the availability checker's job; a shortfall here means candidates ran out,
// typically because a concurrent caller consumed stock after the check.
func StockOut(ctx context.Context, ledger TxLedger, productID, locationID int64, quantity decimal.Decimal, method settings.InventoryMethod, considerExpiry bool) ([]AllocationLine, error) {
	candidates, err := ledger.CandidateBatches(ctx, productID, locationID, method, considerExpiry)
	if err != nil {
		return nil, err
	}
	lines, shortfall := Allocate(quantity, candidates)
	if shortfall.Sign() > 0 {
		return nil, fmt.Errorf("product %d at location %d short by %s: %w",
			productID, locationID, shortfall.String(), shared.ErrInsufficientStock)
	}
	for _, line := range lines {
		if err := ledger.AdjustStock(ctx, line.BatchID, line.Quantity.Neg()); err != nil {
			return nil, err
		}
	}
	return lines, nil
}

// StockIn is the matching stock-in primitive used by purchases, increase
// adjustments, and transfer receives. Every stock-in creates a fresh batch;
// existing batches are never topped up.
func StockIn(ctx context.Context, ledger TxLedger, params CreateParams) (Batch, error) {
	if params.Quantity.Sign() <= 0 {
		return Batch{}, fmt.Errorf("stock-in quantity must be positive: %w", shared.ErrValidation)
	}
	return ledger.CreateBatch(ctx, params)
}

// Restore puts previously allocated quantity back into its original batch,
// used by transfer returns. The amount is bounded by the caller's outstanding
// allocation so the increment cannot overflow total_quantity.
func Restore(ctx context.Context, ledger TxLedger, batchID int64, quantity decimal.Decimal) error {
	if quantity.Sign() <= 0 {
		return fmt.Errorf("restore quantity must be positive: %w", shared.ErrValidation)
	}
	return ledger.AdjustStock(ctx, batchID, quantity)
}
