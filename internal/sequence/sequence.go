// Package sequence issues gap-aware monotonically increasing document
// identifiers. The increment runs inside the caller's transaction so a
// document and its number commit or abort together: successful documents get
// distinct consecutive integers, aborted units may burn a number.
package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-pos/meridian/internal/shared"
)

// DocType enumerates the numbered document types.
type DocType string

const (
	// DocPurchase numbers purchase transactions.
	DocPurchase DocType = "purchase"
	// DocSale numbers sale transactions.
	DocSale DocType = "sale"
	// DocTransfer numbers stock transfers.
	DocTransfer DocType = "transfer"
	// DocIncrease numbers increase adjustments.
	DocIncrease DocType = "increase"
	// DocDecrease numbers decrease adjustments.
	DocDecrease DocType = "decrease"
)

var prefixes = map[DocType]string{
	DocPurchase: "TRXPU-",
	DocSale:     "TRXSA-",
	DocTransfer: "TSFR-",
	DocIncrease: "ADJ-INC-",
	DocDecrease: "ADJ-DEC-",
}

// Prefix returns the fixed identifier prefix for the document type.
func (t DocType) Prefix() string {
	return prefixes[t]
}

// Valid reports whether the document type is known.
func (t DocType) Valid() bool {
	_, ok := prefixes[t]
	return ok
}

// Querier is the subset of pgx.Tx the generator needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Next atomically increments the counter for the document type and returns
// the formatted identifier. The UPDATE is the store's native read-modify-write
// so concurrent callers inside separate transactions serialize on the row. A
// missing counter row is fatal misconfiguration.
func Next(ctx context.Context, q Querier, docType DocType) (string, error) {
	if !docType.Valid() {
		return "", fmt.Errorf("sequence: unknown document type %q", docType)
	}
	var seq int64
	err := q.QueryRow(ctx, `
		UPDATE document_sequences
		SET seq = seq + 1, updated_at = NOW()
		WHERE doc_type = $1
		RETURNING seq
	`, string(docType)).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("sequence: counter for %s missing: %w", docType, shared.ErrConfigNotFound)
		}
		return "", fmt.Errorf("sequence: next %s: %w", docType, err)
	}
	return Format(docType, seq), nil
}

// Format renders an identifier from a raw counter value.
func Format(docType DocType, seq int64) string {
	return fmt.Sprintf("%s%06d", docType.Prefix(), seq)
}
