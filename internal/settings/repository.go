package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian/internal/shared"
)

// Repository persists inventory settings in PostgreSQL. The table holds a
// single row; a missing row is fatal misconfiguration, not a default.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetInventory loads the inventory settings row.
func (r *Repository) GetInventory(ctx context.Context) (Inventory, error) {
	var inv Inventory
	err := r.pool.QueryRow(ctx, `
		SELECT inventory_method, is_expiry_date_considered
		FROM inventory_settings
		WHERE id = 1
	`).Scan(&inv.Method, &inv.ConsiderExpiryDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Inventory{}, fmt.Errorf("settings: inventory settings row missing: %w", shared.ErrConfigNotFound)
		}
		return Inventory{}, fmt.Errorf("settings: get inventory: %w", err)
	}
	return inv, nil
}

// UpdateInventory overwrites the settings row.
func (r *Repository) UpdateInventory(ctx context.Context, in UpdateInput) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inventory_settings
		SET inventory_method = $1, is_expiry_date_considered = $2, updated_at = NOW()
		WHERE id = 1
	`, in.Method, in.ConsiderExpiryDate)
	if err != nil {
		return fmt.Errorf("settings: update inventory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("settings: inventory settings row missing: %w", shared.ErrConfigNotFound)
	}
	return nil
}
