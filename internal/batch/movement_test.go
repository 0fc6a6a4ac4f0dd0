package batch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian/internal/settings"
	"github.com/meridian-pos/meridian/internal/shared"
)

// memoryLedger implements TxLedger for tests, mirroring the SQL semantics:
// conditional adjust, policy-ordered candidates.
type memoryLedger struct {
	batches map[int64]*Batch
	nextID  int64
	now     time.Time
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{batches: make(map[int64]*Batch), now: day(10)}
}

func (l *memoryLedger) CreateBatch(ctx context.Context, params CreateParams) (Batch, error) {
	l.nextID++
	b := Batch{
		ID:              l.nextID,
		ProductID:       params.ProductID,
		LocationID:      params.LocationID,
		TotalQuantity:   params.Quantity,
		QuantityInStock: params.Quantity,
		UnitCost:        params.UnitCost,
		ExpiryDate:      params.ExpiryDate,
		CreatedAt:       l.now.Add(time.Duration(l.nextID) * time.Second),
	}
	l.batches[b.ID] = &b
	return b, nil
}

func (l *memoryLedger) CandidateBatches(ctx context.Context, productID, locationID int64, method settings.InventoryMethod, considerExpiry bool) ([]Batch, error) {
	var all []Batch
	for _, b := range l.batches {
		if b.ProductID == productID && b.LocationID == locationID {
			all = append(all, *b)
		}
	}
	return OrderCandidates(all, method, considerExpiry, l.now), nil
}

func (l *memoryLedger) AdjustStock(ctx context.Context, batchID int64, delta decimal.Decimal) error {
	b, ok := l.batches[batchID]
	if !ok {
		return fmt.Errorf("batch %d: %w", batchID, shared.ErrNotFound)
	}
	next := b.QuantityInStock.Add(delta)
	if next.Sign() < 0 {
		return fmt.Errorf("batch %d cannot cover %s: %w", batchID, delta.Neg().String(), shared.ErrInsufficientStock)
	}
	if next.GreaterThan(b.TotalQuantity) {
		return fmt.Errorf("batch %d: restore exceeds capacity", batchID)
	}
	b.QuantityInStock = next
	return nil
}

func (l *memoryLedger) total(productID, locationID int64) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range l.batches {
		if b.ProductID == productID && b.LocationID == locationID {
			sum = sum.Add(b.QuantityInStock)
		}
	}
	return sum
}

func TestStockOutDecrementsAcrossBatches(t *testing.T) {
	ledger := newMemoryLedger()
	ctx := context.Background()
	b1, err := StockIn(ctx, ledger, CreateParams{ProductID: 1, LocationID: 1, Quantity: qty("10"), UnitCost: qty("2")})
	require.NoError(t, err)
	b2, err := StockIn(ctx, ledger, CreateParams{ProductID: 1, LocationID: 1, Quantity: qty("10"), UnitCost: qty("3")})
	require.NoError(t, err)

	lines, err := StockOut(ctx, ledger, 1, 1, qty("15"), settings.MethodFIFO, false)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, b1.ID, lines[0].BatchID)
	require.True(t, lines[0].Quantity.Equal(qty("10")))
	require.Equal(t, b2.ID, lines[1].BatchID)
	require.True(t, lines[1].Quantity.Equal(qty("5")))

	require.True(t, ledger.batches[b1.ID].QuantityInStock.IsZero())
	require.True(t, ledger.batches[b2.ID].QuantityInStock.Equal(qty("5")))
	require.True(t, ledger.total(1, 1).Equal(qty("5")))
}

func TestStockOutShortfallLeavesNothingApplied(t *testing.T) {
	ledger := newMemoryLedger()
	ctx := context.Background()
	_, err := StockIn(ctx, ledger, CreateParams{ProductID: 1, LocationID: 1, Quantity: qty("4"), UnitCost: qty("1")})
	require.NoError(t, err)

	_, err = StockOut(ctx, ledger, 1, 1, qty("9"), settings.MethodFIFO, false)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	// The unit of work would roll this back; the primitive itself must not
	// have touched any batch before reporting the shortfall.
	require.True(t, ledger.total(1, 1).Equal(qty("4")))
}

func TestStockOutLIFOTakesNewestFirst(t *testing.T) {
	ledger := newMemoryLedger()
	ctx := context.Background()
	_, err := StockIn(ctx, ledger, CreateParams{ProductID: 1, LocationID: 1, Quantity: qty("5"), UnitCost: qty("1")})
	require.NoError(t, err)
	b2, err := StockIn(ctx, ledger, CreateParams{ProductID: 1, LocationID: 1, Quantity: qty("5"), UnitCost: qty("2")})
	require.NoError(t, err)

	lines, err := StockOut(ctx, ledger, 1, 1, qty("3"), settings.MethodLIFO, false)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, b2.ID, lines[0].BatchID)
}

func TestRestorePutsQuantityBack(t *testing.T) {
	ledger := newMemoryLedger()
	ctx := context.Background()
	b, err := StockIn(ctx, ledger, CreateParams{ProductID: 1, LocationID: 1, Quantity: qty("10"), UnitCost: qty("1")})
	require.NoError(t, err)

	_, err = StockOut(ctx, ledger, 1, 1, qty("6"), settings.MethodFIFO, false)
	require.NoError(t, err)
	require.NoError(t, Restore(ctx, ledger, b.ID, qty("6")))
	require.True(t, ledger.batches[b.ID].QuantityInStock.Equal(qty("10")))

	// Restoring beyond the original lot size must fail.
	require.Error(t, Restore(ctx, ledger, b.ID, qty("1")))
}
