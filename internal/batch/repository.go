package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian/internal/shared"
)

// Repository serves the read-only batch queries that run outside any unit of
// work: balances for the availability checker and batch listings for audit.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StockBalance sums quantity_in_stock over the product's batches at one
// location, excluding expired lots when expiry tracking is on. The sum is
// non-negative by construction; the clamp is purely defensive.
func (r *Repository) StockBalance(ctx context.Context, productID, locationID int64, excludeExpired bool) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(quantity_in_stock), 0)
		FROM batches
		WHERE product_id = $1 AND location_id = $2`
	if excludeExpired {
		query += ` AND (expiry_date IS NULL OR expiry_date > NOW())`
	}
	var balance decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, productID, locationID).Scan(&balance); err != nil {
		return decimal.Zero, fmt.Errorf("batch: stock balance: %w", err)
	}
	if balance.Sign() < 0 {
		balance = decimal.Zero
	}
	return balance, nil
}

// ProductInfo reads the product catalog fields the engine needs for messages
// and low-stock checks.
func (r *Repository) ProductInfo(ctx context.Context, productID int64) (ProductInfo, error) {
	var info ProductInfo
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, unit, low_quantity
		FROM products
		WHERE id = $1
	`, productID).Scan(&info.ID, &info.Name, &info.Unit, &info.LowQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductInfo{}, fmt.Errorf("product %d: %w", productID, shared.ErrNotFound)
		}
		return ProductInfo{}, fmt.Errorf("batch: product info: %w", err)
	}
	return info, nil
}

// ExpiringBatches lists still-stocked lots whose expiry date falls on or
// before the cutoff, soonest first.
func (r *Repository) ExpiringBatches(ctx context.Context, cutoff time.Time, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+batchColumns+`
		FROM batches
		WHERE expiry_date IS NOT NULL AND expiry_date <= $1 AND quantity_in_stock > 0
		ORDER BY expiry_date ASC, id ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("batch: expiring: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("batch: scan: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// ListBatches returns a product's batches at a location, newest first,
// exhausted lots included for audit.
func (r *Repository) ListBatches(ctx context.Context, productID, locationID int64, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+batchColumns+`
		FROM batches
		WHERE product_id = $1 AND location_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, productID, locationID, limit)
	if err != nil {
		return nil, fmt.Errorf("batch: list: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("batch: scan: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
