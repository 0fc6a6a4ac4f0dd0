package batch

import "github.com/shopspring/decimal"

// Allocate distributes a requested quantity across candidate batches in the
// order given. For each candidate it takes min(quantity_in_stock, remaining)
// and stops once the request is covered. When candidates run out first, the
// uncovered remainder is returned as shortfall and the caller decides how to
// surface it.
//
// Allocate is pure: it never mutates the candidates and, for the same input,
// always produces the same lines. Ordering policy is the caller's concern.
func Allocate(requested decimal.Decimal, candidates []Batch) ([]AllocationLine, decimal.Decimal) {
	remaining := requested
	var lines []AllocationLine
	for _, cand := range candidates {
		if remaining.Sign() <= 0 {
			break
		}
		if cand.QuantityInStock.Sign() <= 0 {
			continue
		}
		take := decimal.Min(cand.QuantityInStock, remaining)
		lines = append(lines, AllocationLine{BatchID: cand.ID, Quantity: take})
		remaining = remaining.Sub(take)
	}
	if remaining.Sign() < 0 {
		remaining = decimal.Zero
	}
	return lines, remaining
}
