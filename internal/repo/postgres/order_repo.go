package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderRepo tracks fulfillment of restaurant orders. Payment completion
// flips fulfillment pending->confirmed.
type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// ConfirmTx transitions fulfillment status inside the caller's transaction.
// Returns whether the row changed; an already-confirmed order is a no-op.
func (r *OrderRepo) ConfirmTx(ctx context.Context, tx pgx.Tx, orderID string) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return false, fmt.Errorf("invalid order id")
	}

	tag, err := tx.Exec(ctx, `
UPDATE orders
SET
	fulfillment_status = 'confirmed',
	updated_at = NOW()
WHERE id = $1
  AND fulfillment_status = 'pending'
`, orderID)
	if err != nil {
		return false, fmt.Errorf("confirm order: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Status reports the fulfillment status of an order owned by userID.
// An order that exists but belongs to another user is indistinguishable
// from a missing one.
func (r *OrderRepo) Status(ctx context.Context, orderID string, userID int64) (string, error) {
	if r.pool == nil {
		return "", fmt.Errorf("postgres pool is nil")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", fmt.Errorf("invalid order id")
	}
	if userID <= 0 {
		return "", fmt.Errorf("invalid user id")
	}

	var status string
	err := r.pool.QueryRow(ctx, `
SELECT fulfillment_status
FROM orders
WHERE id = $1
  AND user_id = $2
LIMIT 1
`, orderID, userID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrOrderNotFound
		}
		return "", fmt.Errorf("get order status: %w", err)
	}

	return status, nil
}
