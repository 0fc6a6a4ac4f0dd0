package transfer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian/internal/batch"
	"github.com/meridian-pos/meridian/internal/shared"
)

// Transfer moves stock between two locations. Lines track the in-transit
// quantity; the header itself carries no state.
type Transfer struct {
	ID                 int64     `json:"id"`
	SequenceID         string    `json:"sequence_id"`
	SenderLocationID   int64     `json:"sender_location_id"`
	ReceiverLocationID int64     `json:"receiver_location_id"`
	CreatedBy          int64     `json:"created_by"`
	CreatedAt          time.Time `json:"created_at"`
	Lines              []Line    `json:"lines,omitempty"`
}

// SendingBatch records how much of one source batch went into a transfer
// line, and how much of that slice has been materialised at the receiver.
type SendingBatch struct {
	BatchID     int64           `json:"batch_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	ReceivedQty decimal.Decimal `json:"received_qty"`
}

// Unreceived is the slice still in transit for this entry.
func (b SendingBatch) Unreceived() decimal.Decimal {
	return b.Quantity.Sub(b.ReceivedQty)
}

// Line is one transferred product. SendingBatches preserve send order;
// ReceivingBatches point at the batches created at the destination. Both
// are mutated only as a whole, under the owning row's lock.
type Line struct {
	ID               int64                  `json:"id"`
	TransferID       int64                  `json:"transfer_id"`
	ProductID        int64                  `json:"product_id"`
	TotalQuantity    decimal.Decimal        `json:"total_quantity"`
	ReturnedQuantity decimal.Decimal        `json:"returned_quantity"`
	SendingBatches   []SendingBatch         `json:"sending_batches"`
	ReceivingBatches []batch.AllocationLine `json:"receiving_batches"`
}

// ReceivedQuantity sums everything materialised at the receiver so far.
func (l Line) ReceivedQuantity() decimal.Decimal {
	sum := decimal.Zero
	for _, rb := range l.ReceivingBatches {
		sum = sum.Add(rb.Quantity)
	}
	return sum
}

// InTransit is the quantity neither received nor returned yet.
func (l Line) InTransit() decimal.Decimal {
	return l.TotalQuantity.Sub(l.ReturnedQuantity).Sub(l.ReceivedQuantity())
}

// Closed reports whether every unit is accounted for. There is no stored
// state flag; closure is derived from the quantities.
func (l Line) Closed() bool {
	return l.InTransit().IsZero()
}

// LineInput is one requested product in a send.
type LineInput struct {
	ProductID int64
	Quantity  decimal.Decimal
}

// SendInput describes a transfer-send request.
type SendInput struct {
	SenderLocationID   int64
	ReceiverLocationID int64
	ActorID            int64
	IdempotencyKey     string
	Lines              []LineInput
}

func (in SendInput) validate() error {
	if in.SenderLocationID == 0 {
		return fmt.Errorf("sender location required: %w", shared.ErrValidation)
	}
	if in.ReceiverLocationID == 0 {
		return fmt.Errorf("receiver location required: %w", shared.ErrValidation)
	}
	if in.SenderLocationID == in.ReceiverLocationID {
		return fmt.Errorf("sender and receiver must differ: %w", shared.ErrValidation)
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
		if _, dup := seen[line.ProductID]; dup {
			return fmt.Errorf("line %d: product %d appears twice: %w", i+1, line.ProductID, shared.ErrValidation)
		}
		seen[line.ProductID] = struct{}{}
	}
	return nil
}

// MoveInput describes a receive or return against one transfer line.
type MoveInput struct {
	TransferID int64
	LineID     int64
	Quantity   decimal.Decimal
	ActorID    int64
}

func (in MoveInput) validate() error {
	if in.TransferID == 0 || in.LineID == 0 {
		return fmt.Errorf("transfer and line required: %w", shared.ErrValidation)
	}
	if in.Quantity.Sign() <= 0 {
		return fmt.Errorf("quantity must be positive: %w", shared.ErrValidation)
	}
	return nil
}
