// Package alerts raises low-stock notifications after stock-out paths commit.
package alerts

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian/internal/batch"
	"github.com/meridian-pos/meridian/internal/settings"
)

// LowStock describes one product that fell to or under its threshold.
type LowStock struct {
	LocationID   int64           `json:"location_id"`
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Unit         string          `json:"unit"`
	StockBalance decimal.Decimal `json:"stock_balance"`
	LowQuantity  decimal.Decimal `json:"low_quantity"`
}

// StockReader supplies balances and catalog data.
type StockReader interface {
	StockBalance(ctx context.Context, productID, locationID int64, excludeExpired bool) (decimal.Decimal, error)
	ProductInfo(ctx context.Context, productID int64) (batch.ProductInfo, error)
}

// SettingsPort supplies the inventory configuration.
type SettingsPort interface {
	Inventory(ctx context.Context) (settings.Inventory, error)
}

// Enqueuer hands an alert to the background queue.
type Enqueuer interface {
	EnqueueLowStock(ctx context.Context, alert LowStock) error
}

// Notifier checks products after a stock-out and queues an alert for each
// one at or under its low-quantity threshold.
type Notifier struct {
	logger   *slog.Logger
	reader   StockReader
	settings SettingsPort
	enqueuer Enqueuer
}

// NewNotifier builds Notifier. The enqueuer may be nil; alerts are then
// only logged.
func NewNotifier(logger *slog.Logger, reader StockReader, settingsPort SettingsPort, enqueuer Enqueuer) *Notifier {
	return &Notifier{logger: logger, reader: reader, settings: settingsPort, enqueuer: enqueuer}
}

// NotifyIfLow inspects each product's balance at the location. The alert
// fires when the threshold is reached exactly, not only once stock drops
// past it. Products without a configured threshold are skipped.
func (n *Notifier) NotifyIfLow(ctx context.Context, locationID int64, productIDs []int64) error {
	inv, err := n.settings.Inventory(ctx)
	if err != nil {
		return err
	}

	for _, productID := range productIDs {
		info, err := n.reader.ProductInfo(ctx, productID)
		if err != nil {
			return err
		}
		if info.LowQuantity.Sign() <= 0 {
			continue
		}
		balance, err := n.reader.StockBalance(ctx, productID, locationID, inv.ConsiderExpiryDate)
		if err != nil {
			return err
		}
		if info.LowQuantity.LessThan(balance) {
			continue
		}

		alert := LowStock{
			LocationID:   locationID,
			ProductID:    productID,
			ProductName:  info.Name,
			Unit:         info.Unit,
			StockBalance: balance,
			LowQuantity:  info.LowQuantity,
		}
		n.logger.Warn("low stock",
			slog.Int64("product_id", productID),
			slog.Int64("location_id", locationID),
			slog.String("balance", balance.String()),
			slog.String("threshold", info.LowQuantity.String()))
		if n.enqueuer != nil {
			if err := n.enqueuer.EnqueueLowStock(ctx, alert); err != nil {
				return err
			}
		}
	}
	return nil
}
