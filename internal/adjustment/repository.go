package adjustment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian/internal/batch"
	"github.com/meridian-pos/meridian/internal/sequence"
	"github.com/meridian-pos/meridian/internal/shared"
)

// Repository persists stock adjustments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	*batch.TxLedgerSQL
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{TxLedgerSQL: batch.NewTxLedger(tx), tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *txRepository) NextSequence(ctx context.Context, docType sequence.DocType) (string, error) {
	return sequence.Next(ctx, r.tx, docType)
}

func (r *txRepository) InsertAdjustment(ctx context.Context, adj Adjustment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO stock_adjustments (sequence_id, type, location_id, reason, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, adj.SequenceID, string(adj.Type), adj.LocationID, adj.Reason, adj.CreatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("adjustment: insert header: %w", err)
	}
	return id, nil
}

func (r *txRepository) InsertLines(ctx context.Context, adjustmentID int64, lines []Line) error {
	for i := range lines {
		batches, err := json.Marshal(lines[i].Batches)
		if err != nil {
			return fmt.Errorf("adjustment: marshal batches: %w", err)
		}
		err = r.tx.QueryRow(ctx, `
			INSERT INTO stock_adjustment_lines (adjustment_id, product_id, quantity, batches)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, adjustmentID, lines[i].ProductID, lines[i].Quantity, batches).Scan(&lines[i].ID)
		if err != nil {
			return fmt.Errorf("adjustment: insert line: %w", err)
		}
	}
	return nil
}

// GetAdjustment loads an adjustment header with its lines.
func (r *Repository) GetAdjustment(ctx context.Context, id int64) (Adjustment, error) {
	var adj Adjustment
	err := r.pool.QueryRow(ctx, `
		SELECT id, sequence_id, type, location_id, reason, created_by, created_at
		FROM stock_adjustments
		WHERE id = $1
	`, id).Scan(&adj.ID, &adj.SequenceID, &adj.Type, &adj.LocationID,
		&adj.Reason, &adj.CreatedBy, &adj.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Adjustment{}, fmt.Errorf("adjustment %d: %w", id, shared.ErrNotFound)
		}
		return Adjustment{}, fmt.Errorf("adjustment: get: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, adjustment_id, product_id, quantity, batches
		FROM stock_adjustment_lines
		WHERE adjustment_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return Adjustment{}, fmt.Errorf("adjustment: get lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line Line
		var batches []byte
		if err := rows.Scan(&line.ID, &line.AdjustmentID, &line.ProductID, &line.Quantity, &batches); err != nil {
			return Adjustment{}, fmt.Errorf("adjustment: scan line: %w", err)
		}
		if err := json.Unmarshal(batches, &line.Batches); err != nil {
			return Adjustment{}, fmt.Errorf("adjustment: unmarshal batches: %w", err)
		}
		adj.Lines = append(adj.Lines, line)
	}
	return adj, rows.Err()
}
