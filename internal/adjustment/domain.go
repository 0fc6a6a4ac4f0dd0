package adjustment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian/internal/batch"
	"github.com/meridian-pos/meridian/internal/shared"
)

// Type distinguishes the two correction kinds.
type Type string

const (
	// TypeIncrease adds stock outside of trade (found stock, corrections).
	TypeIncrease Type = "increase"
	// TypeDecrease removes stock outside of trade (damage, loss, shrinkage).
	TypeDecrease Type = "decrease"
)

// Adjustment is a non-trade stock correction header.
type Adjustment struct {
	ID         int64     `json:"id"`
	SequenceID string    `json:"sequence_id"`
	Type       Type      `json:"type"`
	LocationID int64     `json:"location_id"`
	Reason     string    `json:"reason"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	Lines      []Line    `json:"lines,omitempty"`
}

// Line is one corrected product. An increase line points at one new batch;
// a decrease line carries the allocation against existing batches.
type Line struct {
	ID           int64                  `json:"id"`
	AdjustmentID int64                  `json:"adjustment_id"`
	ProductID    int64                  `json:"product_id"`
	Quantity     decimal.Decimal        `json:"quantity"`
	Batches      []batch.AllocationLine `json:"batches"`
}

// LineInput describes one requested correction line. UnitCost and ExpiryDate
// apply to increases only; decreases consume existing cost-tagged batches.
type LineInput struct {
	ProductID  int64
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
	ExpiryDate *time.Time
}

// RecordInput describes an adjustment request. Reason is mandatory free text.
type RecordInput struct {
	LocationID     int64
	Reason         string
	ActorID        int64
	IdempotencyKey string
	Lines          []LineInput
}

func (in RecordInput) validate(typ Type) error {
	if in.LocationID == 0 {
		return fmt.Errorf("location required: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return fmt.Errorf("reason required: %w", shared.ErrValidation)
	}
	if len(in.Lines) == 0 {
		return fmt.Errorf("at least one line required: %w", shared.ErrValidation)
	}
	seen := make(map[int64]struct{}, len(in.Lines))
	for i, line := range in.Lines {
		if line.ProductID == 0 {
			return fmt.Errorf("line %d: product required: %w", i+1, shared.ErrValidation)
		}
		if line.Quantity.Sign() <= 0 {
			return fmt.Errorf("line %d: quantity must be positive: %w", i+1, shared.ErrValidation)
		}
		if typ == TypeIncrease && line.UnitCost.Sign() <= 0 {
			return fmt.Errorf("line %d: unit cost must be positive: %w", i+1, shared.ErrValidation)
		}
		if _, dup := seen[line.ProductID]; dup {
			return fmt.Errorf("line %d: product %d repeated: %w", i+1, line.ProductID, shared.ErrValidation)
		}
		seen[line.ProductID] = struct{}{}
	}
	return nil
}
