package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"keyshop/types"
)

const productColumns = `id, name, description, image_file_id, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*types.Product, error) {
	var p types.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.ImageFileID, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, name, description string) (*types.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	row := s.pool.QueryRow(ctx, `
INSERT INTO products (name, description)
VALUES ($1, $2)
RETURNING `+productColumns, strings.TrimSpace(name), strings.TrimSpace(description))
	return scanProduct(row)
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, id int64, upd types.ProductUpdate) (*types.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	row := s.pool.QueryRow(ctx, `
UPDATE products SET
  name = COALESCE($2, name),
  description = COALESCE($3, description),
  image_file_id = COALESCE($4, image_file_id),
  active = COALESCE($5, active),
  updated_at = NOW()
WHERE id = $1
RETURNING `+productColumns, id, upd.Name, upd.Description, upd.ImageFileID, upd.Active)
	return scanProduct(row)
}

// DeleteProduct cascades to tiers and keys via FKs. Orders keep their
// snapshots on purpose.
func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*types.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (s *PostgresStore) ListProducts(ctx context.Context, activeOnly bool) ([]types.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	q := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		q += ` WHERE active = TRUE`
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []types.Product
	for rows.Next() {
		var p types.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.ImageFileID, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpsertPriceTier relies on the (product_id, duration) unique constraint:
// re-adding an existing duration updates its price instead of duplicating
// the tier. Duration must already be canonical.
func (s *PostgresStore) UpsertPriceTier(ctx context.Context, productID int64, duration string, price decimal.Decimal) (*types.PriceTier, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var t types.PriceTier
	err := s.pool.QueryRow(ctx, `
INSERT INTO price_tiers (product_id, duration, price)
VALUES ($1, $2, $3)
ON CONFLICT (product_id, duration) DO UPDATE SET price = EXCLUDED.price
RETURNING id, product_id, duration, price, created_at`,
		productID, duration, price).Scan(&t.ID, &t.ProductID, &t.Duration, &t.Price, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) GetPriceTier(ctx context.Context, tierID int64) (*types.PriceTier, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var t types.PriceTier
	err := s.pool.QueryRow(ctx, `
SELECT id, product_id, duration, price, created_at FROM price_tiers WHERE id = $1`, tierID).
		Scan(&t.ID, &t.ProductID, &t.Duration, &t.Price, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) ListPriceTiers(ctx context.Context, productID int64) ([]types.PriceTier, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
SELECT id, product_id, duration, price, created_at
FROM price_tiers
WHERE product_id = $1
ORDER BY id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []types.PriceTier
	for rows.Next() {
		var t types.PriceTier
		if err := rows.Scan(&t.ID, &t.ProductID, &t.Duration, &t.Price, &t.CreatedAt); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

func (s *PostgresStore) RemovePriceTier(ctx context.Context, tierID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `DELETE FROM price_tiers WHERE id = $1`, tierID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddKeys appends one ingestion batch. All rows share the batch id so the
// most recent batch can be deleted exactly later.
func (s *PostgresStore) AddKeys(ctx context.Context, productID int64, batchID uuid.UUID, keys []types.KeyInput) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	added := 0
	for _, k := range keys {
		_, err := tx.Exec(ctx, `
INSERT INTO redemption_keys (product_id, duration, key_value, batch_id)
VALUES ($1, $2, $3, $4)`, productID, k.Duration, k.Value, batchID)
		if err != nil {
			return 0, err
		}
		added++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return added, nil
}

// StockPerDuration counts only unused keys; this is the authoritative count,
// never the cached one.
func (s *PostgresStore) StockPerDuration(ctx context.Context, productID int64) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
SELECT duration, COUNT(*)
FROM redemption_keys
WHERE product_id = $1 AND is_used = FALSE
GROUP BY duration`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stock := make(map[string]int)
	for rows.Next() {
		var duration string
		var count int
		if err := rows.Scan(&duration, &count); err != nil {
			return nil, err
		}
		stock[duration] = count
	}
	return stock, rows.Err()
}

func (s *PostgresStore) KeyCounts(ctx context.Context, productID int64) (total, available int, err error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = s.pool.QueryRow(ctx, `
SELECT COUNT(*), COUNT(*) FILTER (WHERE is_used = FALSE)
FROM redemption_keys
WHERE product_id = $1`, productID).Scan(&total, &available)
	return total, available, err
}

func (s *PostgresStore) DeleteAllKeys(ctx context.Context, productID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `DELETE FROM redemption_keys WHERE product_id = $1`, productID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteUsedKeys(ctx context.Context, productID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `DELETE FROM redemption_keys WHERE product_id = $1 AND is_used = TRUE`, productID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteMostRecentBatch(ctx context.Context, productID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `
DELETE FROM redemption_keys
WHERE product_id = $1
  AND batch_id = (
    SELECT batch_id FROM redemption_keys
    WHERE product_id = $1
    ORDER BY created_at DESC, id DESC
    LIMIT 1
  )`, productID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
