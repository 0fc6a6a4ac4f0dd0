package batch

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian/internal/settings"
)

func qty(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func day(n int) time.Time {
	return time.Date(2026, time.January, n, 0, 0, 0, 0, time.UTC)
}

func TestAllocateSpansBatchesInOrder(t *testing.T) {
	candidates := []Batch{
		{ID: 1, QuantityInStock: qty("10"), UnitCost: qty("2"), CreatedAt: day(1)},
		{ID: 2, QuantityInStock: qty("10"), UnitCost: qty("3"), CreatedAt: day(2)},
	}

	lines, shortfall := Allocate(qty("15"), candidates)
	require.True(t, shortfall.IsZero())
	require.Len(t, lines, 2)
	require.Equal(t, int64(1), lines[0].BatchID)
	require.True(t, lines[0].Quantity.Equal(qty("10")))
	require.Equal(t, int64(2), lines[1].BatchID)
	require.True(t, lines[1].Quantity.Equal(qty("5")))
}

func TestAllocateStopsEarlyWhenCovered(t *testing.T) {
	candidates := []Batch{
		{ID: 1, QuantityInStock: qty("20")},
		{ID: 2, QuantityInStock: qty("20")},
	}

	lines, shortfall := Allocate(qty("7"), candidates)
	require.True(t, shortfall.IsZero())
	require.Len(t, lines, 1)
	require.True(t, lines[0].Quantity.Equal(qty("7")))
}

func TestAllocateReportsShortfall(t *testing.T) {
	candidates := []Batch{
		{ID: 1, QuantityInStock: qty("4")},
		{ID: 2, QuantityInStock: qty("3")},
	}

	lines, shortfall := Allocate(qty("10"), candidates)
	require.True(t, shortfall.Equal(qty("3")))
	require.Len(t, lines, 2)
}

func TestAllocateSkipsExhaustedCandidates(t *testing.T) {
	candidates := []Batch{
		{ID: 1, QuantityInStock: decimal.Zero},
		{ID: 2, QuantityInStock: qty("5")},
	}

	lines, shortfall := Allocate(qty("5"), candidates)
	require.True(t, shortfall.IsZero())
	require.Len(t, lines, 1)
	require.Equal(t, int64(2), lines[0].BatchID)
}

func TestAllocateDeterministic(t *testing.T) {
	candidates := []Batch{
		{ID: 3, QuantityInStock: qty("2.5")},
		{ID: 1, QuantityInStock: qty("1.25")},
		{ID: 7, QuantityInStock: qty("9")},
	}

	first, firstShort := Allocate(qty("6"), candidates)
	second, secondShort := Allocate(qty("6"), candidates)
	require.Equal(t, first, second)
	require.True(t, firstShort.Equal(secondShort))
}

func TestOrderCandidatesFIFOAndLIFO(t *testing.T) {
	batches := []Batch{
		{ID: 2, QuantityInStock: qty("1"), CreatedAt: day(2)},
		{ID: 1, QuantityInStock: qty("1"), CreatedAt: day(1)},
		{ID: 3, QuantityInStock: qty("1"), CreatedAt: day(3)},
	}

	fifo := OrderCandidates(batches, settings.MethodFIFO, false, day(10))
	require.Equal(t, []int64{1, 2, 3}, idsOf(fifo))

	lifo := OrderCandidates(batches, settings.MethodLIFO, false, day(10))
	require.Equal(t, []int64{3, 2, 1}, idsOf(lifo))
}

func TestOrderCandidatesFEFOTieBreaksByCreation(t *testing.T) {
	exp := day(20)
	later := day(25)
	batches := []Batch{
		{ID: 1, QuantityInStock: qty("1"), CreatedAt: day(5), ExpiryDate: &exp},
		{ID: 2, QuantityInStock: qty("1"), CreatedAt: day(3), ExpiryDate: &exp},
		{ID: 3, QuantityInStock: qty("1"), CreatedAt: day(1), ExpiryDate: &later},
		{ID: 4, QuantityInStock: qty("1"), CreatedAt: day(2)},
	}

	ordered := OrderCandidates(batches, settings.MethodFEFO, true, day(10))
	// Equal expiry falls back to FIFO; null expiry sorts last.
	require.Equal(t, []int64{2, 1, 3, 4}, idsOf(ordered))
}

func TestOrderCandidatesExcludesExpired(t *testing.T) {
	gone := day(5)
	batches := []Batch{
		{ID: 1, QuantityInStock: qty("1"), CreatedAt: day(1), ExpiryDate: &gone},
		{ID: 2, QuantityInStock: qty("1"), CreatedAt: day(2)},
	}

	withExpiry := OrderCandidates(batches, settings.MethodFIFO, true, day(10))
	require.Equal(t, []int64{2}, idsOf(withExpiry))

	withoutExpiry := OrderCandidates(batches, settings.MethodFIFO, false, day(10))
	require.Equal(t, []int64{1, 2}, idsOf(withoutExpiry))
}

func idsOf(batches []Batch) []int64 {
	ids := make([]int64, 0, len(batches))
	for _, b := range batches {
		ids = append(ids, b.ID)
	}
	return ids
}
