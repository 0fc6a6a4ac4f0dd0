package batch

import (
	"sort"
	"time"

	"github.com/meridian-pos/meridian/internal/settings"
)

// OrderCandidates filters and orders batches the way CandidateBatches does in
// SQL: only lots with stock remaining, expired lots excluded when expiry
// tracking is on, ordered by the selected policy. FEFO places null expiry
// last and falls back to created_at ascending for equal expiry dates.
//
// The SQL path is authoritative in production; this mirror exists so pure
// callers and tests order candidates identically.
func OrderCandidates(batches []Batch, method settings.InventoryMethod, considerExpiry bool, now time.Time) []Batch {
	var out []Batch
	for _, b := range batches {
		if b.QuantityInStock.Sign() <= 0 {
			continue
		}
		if considerExpiry && b.Expired(now) {
			continue
		}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch method {
		case settings.MethodLIFO:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		case settings.MethodFEFO:
			switch {
			case a.ExpiryDate == nil && b.ExpiryDate != nil:
				return false
			case a.ExpiryDate != nil && b.ExpiryDate == nil:
				return true
			case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
				return a.ExpiryDate.Before(*b.ExpiryDate)
			}
			fallthrough
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		}
	})
	return out
}
