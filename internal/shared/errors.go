package shared

import "errors"

var (
	// ErrNotFound indicates a requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates invalid caller input; no unit of work is opened.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock indicates a stock-out would drive a batch negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInsufficientRemainingQuantity indicates a transfer receive or return
	// exceeds the quantity still in transit on the line.
	ErrInsufficientRemainingQuantity = errors.New("insufficient remaining quantity")
	// ErrConfigNotFound indicates a missing sequence counter or settings row.
	// Treated as fatal misconfiguration, never retried.
	ErrConfigNotFound = errors.New("configuration not found")
)

// UserSafeMessage renders an error for end users. Configuration problems are
// masked so internal state does not leak; validation and shortfall errors are
// surfaced verbatim because they are actionable.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfigNotFound):
		return "service temporarily unavailable, try again later"
	default:
		return err.Error()
	}
}
