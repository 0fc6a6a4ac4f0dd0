package alerts

import (
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian/internal/batch"
	"github.com/meridian-pos/meridian/internal/settings"
	"github.com/meridian-pos/meridian/internal/shared"
)

type memoryReader struct {
	products map[int64]batch.ProductInfo
	balances map[int64]decimal.Decimal
}

func (r *memoryReader) StockBalance(ctx context.Context, productID, locationID int64, excludeExpired bool) (decimal.Decimal, error) {
	return r.balances[productID], nil
}

func (r *memoryReader) ProductInfo(ctx context.Context, productID int64) (batch.ProductInfo, error) {
	info, ok := r.products[productID]
	if !ok {
		return batch.ProductInfo{}, shared.ErrNotFound
	}
	return info, nil
}

type captureEnqueuer struct {
	alerts []LowStock
}

func (e *captureEnqueuer) EnqueueLowStock(ctx context.Context, alert LowStock) error {
	e.alerts = append(e.alerts, alert)
	return nil
}

type fixedSettings struct{}

func (fixedSettings) Inventory(ctx context.Context) (settings.Inventory, error) {
	return settings.Inventory{Method: settings.MethodFIFO}, nil
}

func qty(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNotifyFiresAtThresholdExactly(t *testing.T) {
	reader := &memoryReader{
		products: map[int64]batch.ProductInfo{
			1: {ID: 1, Name: "Rice 5kg", Unit: "bag", LowQuantity: qty("10")},
		},
		balances: map[int64]decimal.Decimal{1: qty("10")},
	}
	sink := &captureEnqueuer{}
	n := NewNotifier(slog.Default(), reader, fixedSettings{}, sink)

	require.NoError(t, n.NotifyIfLow(context.Background(), 1, []int64{1}))
	require.Len(t, sink.alerts, 1)
	require.Equal(t, "Rice 5kg", sink.alerts[0].ProductName)
	require.True(t, sink.alerts[0].StockBalance.Equal(qty("10")))
}

func TestNotifySkipsAboveThreshold(t *testing.T) {
	reader := &memoryReader{
		products: map[int64]batch.ProductInfo{
			1: {ID: 1, Name: "Rice 5kg", Unit: "bag", LowQuantity: qty("10")},
		},
		balances: map[int64]decimal.Decimal{1: qty("10.5")},
	}
	sink := &captureEnqueuer{}
	n := NewNotifier(slog.Default(), reader, fixedSettings{}, sink)

	require.NoError(t, n.NotifyIfLow(context.Background(), 1, []int64{1}))
	require.Empty(t, sink.alerts)
}

func TestNotifySkipsUnconfiguredThreshold(t *testing.T) {
	reader := &memoryReader{
		products: map[int64]batch.ProductInfo{
			1: {ID: 1, Name: "Rice 5kg", Unit: "bag"},
		},
		balances: map[int64]decimal.Decimal{1: decimal.Zero},
	}
	sink := &captureEnqueuer{}
	n := NewNotifier(slog.Default(), reader, fixedSettings{}, sink)

	require.NoError(t, n.NotifyIfLow(context.Background(), 1, []int64{1}))
	require.Empty(t, sink.alerts)
}

func TestNotifyChecksEachProduct(t *testing.T) {
	reader := &memoryReader{
		products: map[int64]batch.ProductInfo{
			1: {ID: 1, Name: "Rice 5kg", Unit: "bag", LowQuantity: qty("10")},
			2: {ID: 2, Name: "Oil 1L", Unit: "bottle", LowQuantity: qty("5")},
		},
		balances: map[int64]decimal.Decimal{1: qty("50"), 2: qty("3")},
	}
	sink := &captureEnqueuer{}
	n := NewNotifier(slog.Default(), reader, fixedSettings{}, sink)

	require.NoError(t, n.NotifyIfLow(context.Background(), 1, []int64{1, 2}))
	require.Len(t, sink.alerts, 1)
	require.Equal(t, int64(2), sink.alerts[0].ProductID)
}
