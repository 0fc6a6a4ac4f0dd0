package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-pos/meridian/internal/alerts"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeLowStockAlert is the task type for low-stock notifications.
	TaskTypeLowStockAlert = "stock:low_alert"
)

// NewLowStockAlertTask constructs an Asynq task from a low-stock alert.
func NewLowStockAlertTask(alert alerts.LowStock) (*asynq.Task, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLowStockAlert, data, asynq.Queue(QueueDefault)), nil
}

// HandleLowStockAlertTask processes TaskTypeLowStockAlert tasks. Delivery
// today is the structured log stream; mail or chat hooks slot in here.
func HandleLowStockAlertTask(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var alert alerts.LowStock
		if err := json.Unmarshal(t.Payload(), &alert); err != nil {
			return asynq.SkipRetry
		}
		logger.Warn("low stock alert",
			slog.Int64("product_id", alert.ProductID),
			slog.Int64("location_id", alert.LocationID),
			slog.String("product", alert.ProductName),
			slog.String("balance", alert.StockBalance.String()),
			slog.String("threshold", alert.LowQuantity.String()))
		return nil
	}
}
