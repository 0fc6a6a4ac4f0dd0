package batch

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian/internal/settings"
	"github.com/meridian-pos/meridian/internal/shared"
)

// TxLedgerSQL implements TxLedger against PostgreSQL inside one pgx
// transaction. Module repositories embed it so every recorder shares the same
// batch SQL.
type TxLedgerSQL struct {
	tx pgx.Tx
}

// NewTxLedger wraps a pgx transaction.
func NewTxLedger(tx pgx.Tx) *TxLedgerSQL {
	return &TxLedgerSQL{tx: tx}
}

const batchColumns = `id, product_id, location_id, total_quantity, quantity_in_stock, unit_cost, expiry_date, created_at`

// CreateBatch inserts a new lot with quantity_in_stock = total_quantity.
func (l *TxLedgerSQL) CreateBatch(ctx context.Context, params CreateParams) (Batch, error) {
	row := l.tx.QueryRow(ctx, `
		INSERT INTO batches (product_id, location_id, total_quantity, quantity_in_stock, unit_cost, expiry_date)
		VALUES ($1, $2, $3, $3, $4, $5)
		RETURNING `+batchColumns,
		params.ProductID, params.LocationID, params.Quantity, params.UnitCost, params.ExpiryDate)
	b, err := scanBatch(row)
	if err != nil {
		return Batch{}, fmt.Errorf("batch: create: %w", err)
	}
	return b, nil
}

// CandidateBatches selects allocatable lots ordered by policy and locks them
// until the surrounding transaction finishes. Expired lots are filtered out
// when expiry tracking is on; FEFO places null expiry last and breaks equal
// expiry dates by created_at ascending.
func (l *TxLedgerSQL) CandidateBatches(ctx context.Context, productID, locationID int64, method settings.InventoryMethod, considerExpiry bool) ([]Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM batches
		WHERE product_id = $1 AND location_id = $2 AND quantity_in_stock > 0`
	if considerExpiry {
		query += ` AND (expiry_date IS NULL OR expiry_date > NOW())`
	}
	switch method {
	case settings.MethodLIFO:
		query += ` ORDER BY created_at DESC, id DESC`
	case settings.MethodFEFO:
		query += ` ORDER BY expiry_date ASC NULLS LAST, created_at ASC, id ASC`
	default:
		query += ` ORDER BY created_at ASC, id ASC`
	}
	query += ` FOR UPDATE`

	rows, err := l.tx.Query(ctx, query, productID, locationID)
	if err != nil {
		return nil, fmt.Errorf("batch: candidates: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("batch: scan candidate: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// AdjustStock applies a conditional delta so two concurrent allocations
// against the same batch can never both succeed into negative stock. The
// upper bound guards restores against exceeding total_quantity.
func (l *TxLedgerSQL) AdjustStock(ctx context.Context, batchID int64, delta decimal.Decimal) error {
	tag, err := l.tx.Exec(ctx, `
		UPDATE batches
		SET quantity_in_stock = quantity_in_stock + $2, updated_at = NOW()
		WHERE id = $1
		  AND quantity_in_stock + $2 >= 0
		  AND quantity_in_stock + $2 <= total_quantity
	`, batchID, delta)
	if err != nil {
		return fmt.Errorf("batch: adjust stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if delta.Sign() < 0 {
			return fmt.Errorf("batch %d cannot cover %s: %w", batchID, delta.Neg().String(), shared.ErrInsufficientStock)
		}
		return fmt.Errorf("batch %d: restore exceeds capacity or batch missing", batchID)
	}
	return nil
}

// GetBatches loads lots by id in the order requested. Used by transfer
// receive to carry source cost and expiry onto the destination lot.
func (l *TxLedgerSQL) GetBatches(ctx context.Context, ids []int64) (map[int64]Batch, error) {
	if len(ids) == 0 {
		return map[int64]Batch{}, nil
	}
	rows, err := l.tx.Query(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("batch: get: %w", err)
	}
	defer rows.Close()

	batches := make(map[int64]Batch, len(ids))
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("batch: scan: %w", err)
		}
		batches[b.ID] = b
	}
	return batches, rows.Err()
}

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.ProductID, &b.LocationID, &b.TotalQuantity,
		&b.QuantityInStock, &b.UnitCost, &b.ExpiryDate, &b.CreatedAt)
	return b, err
}
