package transaction

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

// Repository persists transactions in PostgreSQL.
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

func (r *txRepository) InsertTransaction(ctx context.Context, trx Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO transactions (sequence_id, type, contact_id, location_id, note, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, trx.SequenceID, string(trx.Type), trx.ContactID, trx.LocationID, trx.Note, trx.CreatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("transaction: insert header: %w", err)
	}
	return id, nil
}

func (r *txRepository) InsertLines(ctx context.Context, transactionID int64, lines []Line) error {
	for i := range lines {
		batches, err := json.Marshal(lines[i].Batches)
		if err != nil {
			return fmt.Errorf("transaction: marshal batches: %w", err)
		}
		err = r.tx.QueryRow(ctx, `
			INSERT INTO transaction_lines (transaction_id, product_id, quantity, unit_price, vat_percentage, batches)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, transactionID, lines[i].ProductID, lines[i].Quantity, lines[i].UnitPrice, lines[i].VATPercentage, batches).Scan(&lines[i].ID)
		if err != nil {
			return fmt.Errorf("transaction: insert line: %w", err)
		}
	}
	return nil
}

func (r *txRepository) InsertPayment(ctx context.Context, payment Payment) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO transaction_payments (transaction_id, amount, type, created_by)
		VALUES ($1, $2, $3, $4)
	`, payment.TransactionID, payment.Amount, string(payment.Type), payment.CreatedBy)
	if err != nil {
		return fmt.Errorf("transaction: insert payment: %w", err)
	}
	return nil
}

// GetTransaction loads a transaction header with its lines.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	var trx Transaction
	err := r.pool.QueryRow(ctx, `
		SELECT id, sequence_id, type, contact_id, location_id, note, created_by, created_at
		FROM transactions
		WHERE id = $1
	`, id).Scan(&trx.ID, &trx.SequenceID, &trx.Type, &trx.ContactID, &trx.LocationID,
		&trx.Note, &trx.CreatedBy, &trx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, fmt.Errorf("transaction %d: %w", id, shared.ErrNotFound)
		}
		return Transaction{}, fmt.Errorf("transaction: get: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, transaction_id, product_id, quantity, unit_price, vat_percentage, batches
		FROM transaction_lines
		WHERE transaction_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction: get lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line Line
		var batches []byte
		err := rows.Scan(&line.ID, &line.TransactionID, &line.ProductID,
			&line.Quantity, &line.UnitPrice, &line.VATPercentage, &batches)
		if err != nil {
			return Transaction{}, fmt.Errorf("transaction: scan line: %w", err)
		}
		if err := json.Unmarshal(batches, &line.Batches); err != nil {
			return Transaction{}, fmt.Errorf("transaction: unmarshal batches: %w", err)
		}
		trx.Lines = append(trx.Lines, line)
	}
	return trx, rows.Err()
}
