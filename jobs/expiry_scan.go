package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-pos/meridian/internal/batch"
)

const (
	// TaskTypeExpiryScan triggers the nightly sweep for lots close to expiry.
	TaskTypeExpiryScan = "stock:expiry_scan"

	// expiryScanWindow is how far ahead the sweep looks.
	expiryScanWindow = 7 * 24 * time.Hour
	expiryScanLimit  = 200
)

// ExpiryScanPayload carries scheduling metadata.
type ExpiryScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// ExpiringLister reads stocked lots nearing expiry.
type ExpiringLister interface {
	ExpiringBatches(ctx context.Context, cutoff time.Time, limit int) ([]batch.Batch, error)
}

// NewExpiryScanTask constructs an Asynq task for the expiry sweep.
func NewExpiryScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ExpiryScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeExpiryScan, body, asynq.Queue(QueueDefault)), nil
}

// HandleExpiryScanTask logs every stocked lot expiring inside the window so
// operators can write the stock off before it spoils.
func HandleExpiryScanTask(logger *slog.Logger, lister ExpiringLister) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ExpiryScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		cutoff := time.Now().Add(expiryScanWindow)
		expiring, err := lister.ExpiringBatches(ctx, cutoff, expiryScanLimit)
		if err != nil {
			return err
		}
		for _, b := range expiring {
			logger.Warn("batch nearing expiry",
				slog.Int64("batch_id", b.ID),
				slog.Int64("product_id", b.ProductID),
				slog.Int64("location_id", b.LocationID),
				slog.String("quantity_in_stock", b.QuantityInStock.String()),
				slog.Time("expiry_date", *b.ExpiryDate))
		}
		logger.Info("expiry scan done", slog.Int("expiring", len(expiring)))
		return nil
	}
}
