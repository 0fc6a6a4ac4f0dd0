package batch

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian/internal/settings"
)

type memoryReader struct {
	balances map[int64]decimal.Decimal
	// unexpired overrides balances when expired lots are excluded.
	unexpired map[int64]decimal.Decimal
	products  map[int64]ProductInfo
}

func (r *memoryReader) StockBalance(ctx context.Context, productID, locationID int64, excludeExpired bool) (decimal.Decimal, error) {
	if excludeExpired {
		if v, ok := r.unexpired[productID]; ok {
			return v, nil
		}
	}
	return r.balances[productID], nil
}

func (r *memoryReader) ProductInfo(ctx context.Context, productID int64) (ProductInfo, error) {
	return r.products[productID], nil
}

type invSource struct {
	inv settings.Inventory
}

func (s invSource) Inventory(ctx context.Context) (settings.Inventory, error) {
	return s.inv, nil
}

func TestCheckPasses(t *testing.T) {
	reader := &memoryReader{
		balances: map[int64]decimal.Decimal{1: qty("10")},
		products: map[int64]ProductInfo{1: {ID: 1, Name: "Paracetamol 500mg", Unit: "box"}},
	}
	checker := NewChecker(reader, invSource{})

	res, err := checker.Check(context.Background(), 1, []Request{
		{ProductID: 1, Quantity: qty("10")},
	})
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Empty(t, res.Reason)
}

func TestCheckAggregatesLinesPerProduct(t *testing.T) {
	reader := &memoryReader{
		balances: map[int64]decimal.Decimal{1: qty("10")},
		products: map[int64]ProductInfo{1: {ID: 1, Name: "Paracetamol 500mg", Unit: "box"}},
	}
	checker := NewChecker(reader, invSource{})

	// 6 + 6 exceeds the balance even though each line alone fits.
	res, err := checker.Check(context.Background(), 1, []Request{
		{ProductID: 1, Quantity: qty("6")},
		{ProductID: 1, Quantity: qty("6")},
	})
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Contains(t, res.Reason, "Paracetamol 500mg")
	require.Contains(t, res.Reason, "box")
}

func TestCheckCountsReservedAsAvailable(t *testing.T) {
	reader := &memoryReader{
		balances: map[int64]decimal.Decimal{1: qty("2")},
		products: map[int64]ProductInfo{1: {ID: 1, Name: "Ibuprofen", Unit: "strip"}},
	}
	checker := NewChecker(reader, invSource{})

	res, err := checker.Check(context.Background(), 1, []Request{
		{ProductID: 1, Quantity: qty("5"), AlreadyReserved: qty("3")},
	})
	require.NoError(t, err)
	require.True(t, res.OK)
}

func TestCheckReportsFirstFailingProduct(t *testing.T) {
	reader := &memoryReader{
		balances: map[int64]decimal.Decimal{1: qty("100"), 2: decimal.Zero},
		products: map[int64]ProductInfo{
			1: {ID: 1, Name: "Amoxicillin", Unit: "box"},
			2: {ID: 2, Name: "Vitamin C", Unit: "bottle"},
		},
	}
	checker := NewChecker(reader, invSource{})

	res, err := checker.Check(context.Background(), 1, []Request{
		{ProductID: 1, Quantity: qty("1")},
		{ProductID: 2, Quantity: qty("1")},
	})
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Contains(t, res.Reason, "Vitamin C")
}

func TestCheckHonorsExpiryConfiguration(t *testing.T) {
	// All 5 units sit in an expired lot.
	reader := &memoryReader{
		balances:  map[int64]decimal.Decimal{1: qty("5")},
		unexpired: map[int64]decimal.Decimal{1: decimal.Zero},
		products:  map[int64]ProductInfo{1: {ID: 1, Name: "Cough Syrup", Unit: "bottle"}},
	}
	requests := []Request{{ProductID: 1, Quantity: qty("5")}}

	// With expiry tracking off the allocator would draw from the expired
	// lot, so the check must pass.
	checker := NewChecker(reader, invSource{})
	res, err := checker.Check(context.Background(), 1, requests)
	require.NoError(t, err)
	require.True(t, res.OK)

	// With expiry tracking on the same stock is unavailable.
	checker = NewChecker(reader, invSource{inv: settings.Inventory{ConsiderExpiryDate: true}})
	res, err = checker.Check(context.Background(), 1, requests)
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Contains(t, res.Reason, "Cough Syrup")
}
