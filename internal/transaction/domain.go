package transaction

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian/internal/batch"
	"github.com/meridian-pos/meridian/internal/shared"
)

// Type distinguishes the two trade document kinds.
type Type string

const (
	// TypePurchase is a stock-in trade document.
	TypePurchase Type = "purchase"
	// TypeSale is a stock-out trade document.
	TypeSale Type = "sale"
)

// PaymentType tags the direction of an initial payment.
type PaymentType string

const (
	// PaymentPaid marks money paid to a supplier.
	PaymentPaid PaymentType = "PAID"
	// PaymentReceived marks money received from a customer.
	PaymentReceived PaymentType = "RECEIVED"
)

// Transaction is a purchase or sale header.
type Transaction struct {
	ID         int64     `json:"id"`
	SequenceID string    `json:"sequence_id"`
	Type       Type      `json:"type"`
	ContactID  int64     `json:"contact_id"`
	LocationID int64     `json:"location_id"`
	Note       string    `json:"note,omitempty"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	Lines      []Line    `json:"lines,omitempty"`
}

// Line is one product movement within a transaction. A purchase line points
// at exactly one newly created batch; a sale line carries the allocation
// produced by the ordering policy.
type Line struct {
	ID            int64                  `json:"id"`
	TransactionID int64                  `json:"transaction_id"`
	ProductID     int64                  `json:"product_id"`
	Quantity      decimal.Decimal        `json:"quantity"`
	UnitPrice     decimal.Decimal        `json:"unit_price"`
	VATPercentage decimal.Decimal        `json:"vat_percentage"`
	Batches       []batch.AllocationLine `json:"batches"`
}

// Payment records an initial payment taken together with the document.
type Payment struct {
	TransactionID int64           `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Type          PaymentType     `json:"type"`
	CreatedBy     int64           `json:"created_by"`
}

// LineInput describes one requested line. UnitCost and ExpiryDate apply to
// purchases only; sales consume existing cost-tagged batches.
type LineInput struct {
	ProductID     int64
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	VATPercentage decimal.Decimal
	UnitCost      decimal.Decimal
	ExpiryDate    *time.Time
}

// RecordInput describes a purchase or sale request. The caller has already
// validated existence and permissions; the recorder re-validates numeric
// positivity and product uniqueness as defense in depth.
type RecordInput struct {
	LocationID     int64
	ContactID      int64
	Note           string
	PaidAmount     decimal.Decimal
	ActorID        int64
	IdempotencyKey string
	Lines          []LineInput
}

func (in RecordInput) validate(typ Type) error {
	if in.LocationID == 0 {
		return fmt.Errorf("location required: %w", shared.ErrValidation)
	}
	if in.ContactID == 0 {
		return fmt.Errorf("contact required for %s: %w", typ, shared.ErrValidation)
	}
	if len(in.Lines) == 0 {
		return fmt.Errorf("at least one line required: %w", shared.ErrValidation)
	}
	if in.PaidAmount.Sign() < 0 {
		return fmt.Errorf("paid amount must not be negative: %w", shared.ErrValidation)
	}
	seen := make(map[int64]struct{}, len(in.Lines))
	for i, line := range in.Lines {
		if line.ProductID == 0 {
			return fmt.Errorf("line %d: product required: %w", i+1, shared.ErrValidation)
		}
		if line.Quantity.Sign() <= 0 {
			return fmt.Errorf("line %d: quantity must be positive: %w", i+1, shared.ErrValidation)
		}
		if typ == TypePurchase && line.UnitCost.Sign() <= 0 {
			return fmt.Errorf("line %d: unit cost must be positive: %w", i+1, shared.ErrValidation)
		}
		if _, dup := seen[line.ProductID]; dup {
			return fmt.Errorf("line %d: product %d repeated: %w", i+1, line.ProductID, shared.ErrValidation)
		}
		seen[line.ProductID] = struct{}{}
	}
	return nil
}
