// Package batchtest provides an in-memory batch ledger for service tests.
// It mirrors the SQL semantics: conditional stock adjustment and
// policy-ordered candidate selection.
package batchtest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian/internal/batch"
	"github.com/meridian-pos/meridian/internal/settings"
	"github.com/meridian-pos/meridian/internal/shared"
)

// MemoryLedger implements batch.TxLedger in memory.
type MemoryLedger struct {
	Batches map[int64]*batch.Batch
	NextID  int64
	Now     time.Time
}

// NewMemoryLedger constructs an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		Batches: make(map[int64]*batch.Batch),
		Now:     time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC),
	}
}

// CreateBatch materialises a new lot. Creation times are spaced one second
// apart so FIFO/LIFO ordering is deterministic.
func (l *MemoryLedger) CreateBatch(ctx context.Context, params batch.CreateParams) (batch.Batch, error) {
	l.NextID++
	b := batch.Batch{
		ID:              l.NextID,
		ProductID:       params.ProductID,
		LocationID:      params.LocationID,
		TotalQuantity:   params.Quantity,
		QuantityInStock: params.Quantity,
		UnitCost:        params.UnitCost,
		ExpiryDate:      params.ExpiryDate,
		CreatedAt:       l.Now.Add(time.Duration(l.NextID) * time.Second),
	}
	l.Batches[b.ID] = &b
	return b, nil
}

// CandidateBatches returns allocatable lots ordered by policy.
func (l *MemoryLedger) CandidateBatches(ctx context.Context, productID, locationID int64, method settings.InventoryMethod, considerExpiry bool) ([]batch.Batch, error) {
	var all []batch.Batch
	for _, b := range l.Batches {
		if b.ProductID == productID && b.LocationID == locationID {
			all = append(all, *b)
		}
	}
	return batch.OrderCandidates(all, method, considerExpiry, l.Now), nil
}

// AdjustStock applies a bounded delta, like the conditional UPDATE does.
func (l *MemoryLedger) AdjustStock(ctx context.Context, batchID int64, delta decimal.Decimal) error {
	b, ok := l.Batches[batchID]
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

// GetBatches loads lots by id, mirroring the transfer repository helper.
func (l *MemoryLedger) GetBatches(ctx context.Context, ids []int64) (map[int64]batch.Batch, error) {
	out := make(map[int64]batch.Batch, len(ids))
	for _, id := range ids {
		if b, ok := l.Batches[id]; ok {
			out[id] = *b
		}
	}
	return out, nil
}

// State is a point-in-time copy of the ledger. Fake transactions take one on
// entry and roll back to it when the callback fails, mirroring a database
// rollback.
type State struct {
	batches map[int64]*batch.Batch
	nextID  int64
}

// Snapshot copies the current ledger state.
func (l *MemoryLedger) Snapshot() State {
	copied := make(map[int64]*batch.Batch, len(l.Batches))
	for id, b := range l.Batches {
		c := *b
		copied[id] = &c
	}
	return State{batches: copied, nextID: l.NextID}
}

// Rollback discards every change made since the snapshot was taken.
func (l *MemoryLedger) Rollback(s State) {
	l.Batches = s.batches
	l.NextID = s.nextID
}

// Balance sums quantity_in_stock for a product at a location.
func (l *MemoryLedger) Balance(productID, locationID int64) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range l.Batches {
		if b.ProductID == productID && b.LocationID == locationID {
			sum = sum.Add(b.QuantityInStock)
		}
	}
	return sum
}
