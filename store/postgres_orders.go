package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"keyshop/types"
)

// ExecutePurchase is the one multi-step primitive in the store: claim one
// unused key, debit the balance and record the order inside a single
// transaction. The claim runs first; if the debit guard then fails, rolling
// back the transaction releases the key. Any error aborts the whole attempt
// with no partial effect.
func (s *PostgresStore) ExecutePurchase(ctx context.Context, accountID int64, product *types.Product, tier *types.PriceTier) (*types.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Claim: a single conditional update. FOR UPDATE SKIP LOCKED makes
	// concurrent claims for the same tier pick distinct rows instead of
	// queueing on one, so no key is ever handed out twice.
	var keyID int64
	var keyValue string
	err = tx.QueryRow(ctx, `
UPDATE redemption_keys SET is_used = TRUE
WHERE id = (
  SELECT id FROM redemption_keys
  WHERE product_id = $1 AND duration = $2 AND is_used = FALSE
  ORDER BY id
  LIMIT 1
  FOR UPDATE SKIP LOCKED
)
RETURNING id, key_value`, tier.ProductID, tier.Duration).Scan(&keyID, &keyValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOutOfStock
	}
	if err != nil {
		return nil, err
	}

	// Debit: the balance floor is part of the predicate, so the debit and
	// the check are one atomic statement.
	tag, err := tx.Exec(ctx, `
UPDATE accounts
SET balance = balance - $2, last_purchase_at = NOW(), updated_at = NOW()
WHERE id = $1 AND balance >= $2`, accountID, tier.Price)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrInsufficientBalance
	}

	order := &types.Order{
		AccountID:   accountID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Duration:    tier.Duration,
		Price:       tier.Price,
		KeyValue:    keyValue,
	}
	err = tx.QueryRow(ctx, `
INSERT INTO orders (account_id, product_id, product_name, duration, price, key_value)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, purchased_at`,
		order.AccountID, order.ProductID, order.ProductName, order.Duration, order.Price, order.KeyValue).
		Scan(&order.ID, &order.PurchasedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *PostgresStore) OrdersByAccount(ctx context.Context, accountID int64, limit int) ([]types.Order, error) {
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
SELECT id, account_id, product_id, product_name, duration, price, key_value, purchased_at
FROM orders
WHERE account_id = $1
ORDER BY purchased_at DESC
LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []types.Order
	for rows.Next() {
		var o types.Order
		if err := rows.Scan(&o.ID, &o.AccountID, &o.ProductID, &o.ProductName, &o.Duration, &o.Price, &o.KeyValue, &o.PurchasedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (*types.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	var st types.Stats
	var revenue *decimal.Decimal
	err := s.pool.QueryRow(ctx, `
SELECT
  (SELECT COUNT(*) FROM accounts),
  (SELECT COUNT(*) FROM accounts WHERE tier = 'premium'),
  (SELECT COUNT(*) FROM products),
  (SELECT COUNT(*) FROM orders),
  (SELECT SUM(price) FROM orders)`).
		Scan(&st.Accounts, &st.PremiumUsers, &st.Products, &st.Orders, &revenue)
	if err != nil {
		return nil, err
	}
	if revenue != nil {
		st.Revenue = *revenue
	}
	return &st, nil
}
