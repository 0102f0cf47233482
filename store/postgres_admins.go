package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"keyshop/types"
)

func (s *PostgresStore) AddAdmin(ctx context.Context, telegramID int64, username string, isRoot bool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO admins (telegram_id, username, is_root)
VALUES ($1, $2, $3)
ON CONFLICT (telegram_id) DO NOTHING`, telegramID, strings.TrimSpace(username), isRoot)
	return err
}

func (s *PostgresStore) RemoveAdmin(ctx context.Context, telegramID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `DELETE FROM admins WHERE telegram_id = $1 AND is_root = FALSE`, telegramID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetAdmin(ctx context.Context, telegramID int64) (*types.Admin, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var a types.Admin
	err := s.pool.QueryRow(ctx, `
SELECT id, telegram_id, username, is_root, created_at FROM admins WHERE telegram_id = $1`, telegramID).
		Scan(&a.ID, &a.TelegramID, &a.Username, &a.IsRoot, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) ListAdmins(ctx context.Context) ([]types.Admin, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
SELECT id, telegram_id, username, is_root, created_at FROM admins ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []types.Admin
	for rows.Next() {
		var a types.Admin
		if err := rows.Scan(&a.ID, &a.TelegramID, &a.Username, &a.IsRoot, &a.CreatedAt); err != nil {
			return nil, err
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

func (s *PostgresStore) AddSeller(ctx context.Context, username, name, description string) (*types.TrustedSeller, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var seller types.TrustedSeller
	err := s.pool.QueryRow(ctx, `
INSERT INTO trusted_sellers (username, name, description)
VALUES ($1, $2, $3)
RETURNING id, username, name, description, created_at`,
		strings.TrimPrefix(strings.TrimSpace(username), "@"), strings.TrimSpace(name), strings.TrimSpace(description)).
		Scan(&seller.ID, &seller.Username, &seller.Name, &seller.Description, &seller.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &seller, nil
}

func (s *PostgresStore) RemoveSeller(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `DELETE FROM trusted_sellers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListSellers(ctx context.Context) ([]types.TrustedSeller, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
SELECT id, username, name, description, created_at FROM trusted_sellers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sellers []types.TrustedSeller
	for rows.Next() {
		var seller types.TrustedSeller
		if err := rows.Scan(&seller.ID, &seller.Username, &seller.Name, &seller.Description, &seller.CreatedAt); err != nil {
			return nil, err
		}
		sellers = append(sellers, seller)
	}
	return sellers, rows.Err()
}
