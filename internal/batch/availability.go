package batch

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-pos/meridian/internal/settings"
)

// Reader is the read-only store surface the checker needs.
type Reader interface {
	StockBalance(ctx context.Context, productID, locationID int64, excludeExpired bool) (decimal.Decimal, error)
	ProductInfo(ctx context.Context, productID int64) (ProductInfo, error)
}

// InventorySource supplies the inventory configuration.
type InventorySource interface {
	Inventory(ctx context.Context) (settings.Inventory, error)
}

// Request is one requested line of a stock-out. AlreadyReserved counts
// quantity the caller currently holds against the same stock, so edits of an
// existing document do not fail against their own allocation.
type Request struct {
	ProductID       int64
	Quantity        decimal.Decimal
	AlreadyReserved decimal.Decimal
}

// Result reports the outcome of an availability check. Reason is set for the
// first failing product and is written for end users.
type Result struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Checker pre-validates aggregate availability before a stock-out path runs.
// It is advisory only: stock can change between the check and the allocation,
// and the per-batch conditional decrement is the actual safety net.
type Checker struct {
	reader   Reader
	settings InventorySource
	printer  *message.Printer
}

// NewChecker builds Checker.
func NewChecker(reader Reader, settingsPort InventorySource) *Checker {
	return &Checker{reader: reader, settings: settingsPort, printer: message.NewPrinter(language.English)}
}

// Check verifies every requested product fits within its current balance at
// the location. Quantities are aggregated per product across lines before
// comparing. Expired lots count toward the balance only when expiry tracking
// is disabled, matching what the allocator will actually draw from. The first
// shortfall produces the result's reason.
func (c *Checker) Check(ctx context.Context, locationID int64, requests []Request) (Result, error) {
	inv, err := c.settings.Inventory(ctx)
	if err != nil {
		return Result{}, err
	}
	requested := make(map[int64]decimal.Decimal)
	reserved := make(map[int64]decimal.Decimal)
	order := make([]int64, 0, len(requests))
	for _, req := range requests {
		if _, seen := requested[req.ProductID]; !seen {
			order = append(order, req.ProductID)
		}
		requested[req.ProductID] = requested[req.ProductID].Add(req.Quantity)
		reserved[req.ProductID] = reserved[req.ProductID].Add(req.AlreadyReserved)
	}

	for _, productID := range order {
		balance, err := c.reader.StockBalance(ctx, productID, locationID, inv.ConsiderExpiryDate)
		if err != nil {
			return Result{}, err
		}
		available := balance.Add(reserved[productID])
		if requested[productID].GreaterThan(available) {
			info, err := c.reader.ProductInfo(ctx, productID)
			if err != nil {
				return Result{}, err
			}
			reason := c.printer.Sprintf("%s: only %v %s available, %v %s requested",
				info.Name, available, info.Unit, requested[productID], info.Unit)
			return Result{OK: false, Reason: reason}, nil
		}
	}
	return Result{OK: true}, nil
}
