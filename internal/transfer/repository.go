package transfer

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

// Repository persists transfers in PostgreSQL. The per-line batch arrays
// live as JSONB columns and are rewritten whole on every receive or return.
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

func (r *txRepository) InsertTransfer(ctx context.Context, t Transfer) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO transfers (sequence_id, sender_location_id, receiver_location_id, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, t.SequenceID, t.SenderLocationID, t.ReceiverLocationID, t.CreatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("transfer: insert header: %w", err)
	}
	return id, nil
}

func (r *txRepository) InsertLines(ctx context.Context, transferID int64, lines []Line) error {
	for i := range lines {
		sending, receiving, err := marshalLineBatches(lines[i])
		if err != nil {
			return err
		}
		err = r.tx.QueryRow(ctx, `
			INSERT INTO transfer_lines (transfer_id, product_id, total_quantity, returned_quantity, sending_batches, receiving_batches)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, transferID, lines[i].ProductID, lines[i].TotalQuantity, lines[i].ReturnedQuantity, sending, receiving).Scan(&lines[i].ID)
		if err != nil {
			return fmt.Errorf("transfer: insert line: %w", err)
		}
		lines[i].TransferID = transferID
	}
	return nil
}

func (r *txRepository) GetTransfer(ctx context.Context, id int64) (Transfer, error) {
	return scanTransferHeader(r.tx.QueryRow(ctx, transferHeaderQuery, id), id)
}

// GetLineForUpdate locks one transfer line for the rest of the transaction.
func (r *txRepository) GetLineForUpdate(ctx context.Context, transferID, lineID int64) (Line, error) {
	row := r.tx.QueryRow(ctx, `
		SELECT id, transfer_id, product_id, total_quantity, returned_quantity, sending_batches, receiving_batches
		FROM transfer_lines
		WHERE transfer_id = $1 AND id = $2
		FOR UPDATE
	`, transferID, lineID)
	line, err := scanLine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, fmt.Errorf("transfer %d line %d: %w", transferID, lineID, shared.ErrNotFound)
		}
		return Line{}, err
	}
	return line, nil
}

// UpdateLine replaces the line's mutable fields in one statement.
func (r *txRepository) UpdateLine(ctx context.Context, line Line) error {
	sending, receiving, err := marshalLineBatches(line)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `
		UPDATE transfer_lines
		SET returned_quantity = $2, sending_batches = $3, receiving_batches = $4
		WHERE id = $1
	`, line.ID, line.ReturnedQuantity, sending, receiving)
	if err != nil {
		return fmt.Errorf("transfer: update line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transfer line %d: %w", line.ID, shared.ErrNotFound)
	}
	return nil
}

const transferHeaderQuery = `
	SELECT id, sequence_id, sender_location_id, receiver_location_id, created_by, created_at
	FROM transfers
	WHERE id = $1
`

// GetTransfer loads a transfer header with its lines.
func (r *Repository) GetTransfer(ctx context.Context, id int64) (Transfer, error) {
	t, err := scanTransferHeader(r.pool.QueryRow(ctx, transferHeaderQuery, id), id)
	if err != nil {
		return Transfer{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, transfer_id, product_id, total_quantity, returned_quantity, sending_batches, receiving_batches
		FROM transfer_lines
		WHERE transfer_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return Transfer{}, fmt.Errorf("transfer: get lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return Transfer{}, err
		}
		t.Lines = append(t.Lines, line)
	}
	return t, rows.Err()
}

func scanTransferHeader(row pgx.Row, id int64) (Transfer, error) {
	var t Transfer
	err := row.Scan(&t.ID, &t.SequenceID, &t.SenderLocationID, &t.ReceiverLocationID,
		&t.CreatedBy, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, fmt.Errorf("transfer %d: %w", id, shared.ErrNotFound)
		}
		return Transfer{}, fmt.Errorf("transfer: get: %w", err)
	}
	return t, nil
}

func scanLine(row pgx.Row) (Line, error) {
	var line Line
	var sending, receiving []byte
	err := row.Scan(&line.ID, &line.TransferID, &line.ProductID,
		&line.TotalQuantity, &line.ReturnedQuantity, &sending, &receiving)
	if err != nil {
		return Line{}, err
	}
	if err := json.Unmarshal(sending, &line.SendingBatches); err != nil {
		return Line{}, fmt.Errorf("transfer: unmarshal sending batches: %w", err)
	}
	if err := json.Unmarshal(receiving, &line.ReceivingBatches); err != nil {
		return Line{}, fmt.Errorf("transfer: unmarshal receiving batches: %w", err)
	}
	return line, nil
}

func marshalLineBatches(line Line) (sending, receiving []byte, err error) {
	sending, err = json.Marshal(line.SendingBatches)
	if err != nil {
		return nil, nil, fmt.Errorf("transfer: marshal sending batches: %w", err)
	}
	if line.ReceivingBatches == nil {
		line.ReceivingBatches = []batch.AllocationLine{}
	}
	receiving, err = json.Marshal(line.ReceivingBatches)
	if err != nil {
		return nil, nil, fmt.Errorf("transfer: marshal receiving batches: %w", err)
	}
	return sending, receiving, nil
}
