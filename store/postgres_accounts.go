package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"keyshop/types"
)

const accountColumns = `id, telegram_id, username, first_name, last_name, balance, tier, banned, last_purchase_at, created_at, updated_at`

func scanAccount(row pgx.Row) (*types.Account, error) {
	var a types.Account
	err := row.Scan(&a.ID, &a.TelegramID, &a.Username, &a.FirstName, &a.LastName,
		&a.Balance, &a.Tier, &a.Banned, &a.LastPurchaseAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertAccount creates the account on first contact and refreshes mutable
// profile fields on every later call. Balance, tier and ban flag are never
// touched here.
func (s *PostgresStore) UpsertAccount(ctx context.Context, telegramID int64, username, firstName, lastName string) (*types.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	row := s.pool.QueryRow(ctx, `
INSERT INTO accounts (telegram_id, username, first_name, last_name)
VALUES ($1, $2, $3, $4)
ON CONFLICT (telegram_id) DO UPDATE SET
  username = EXCLUDED.username,
  first_name = EXCLUDED.first_name,
  last_name = EXCLUDED.last_name,
  updated_at = NOW()
RETURNING `+accountColumns,
		telegramID, strings.TrimSpace(username), strings.TrimSpace(firstName), strings.TrimSpace(lastName))
	return scanAccount(row)
}

func (s *PostgresStore) GetAccount(ctx context.Context, id int64) (*types.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (s *PostgresStore) GetAccountByTelegramID(ctx context.Context, telegramID int64) (*types.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE telegram_id = $1`, telegramID))
}

func (s *PostgresStore) GetAccountByUsername(ctx context.Context, username string) (*types.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	return scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username))
}

// AdjustBalance is the admin override path: no floor, a negative delta may
// leave the balance negative.
func (s *PostgresStore) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) (*types.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	row := s.pool.QueryRow(ctx, `
UPDATE accounts
SET balance = balance + $2, updated_at = NOW()
WHERE id = $1
RETURNING `+accountColumns, id, delta)
	return scanAccount(row)
}

// DebitForPurchase only succeeds when the balance covers the amount; the
// guard lives in the UPDATE predicate so two concurrent debits can never
// drive the balance below zero.
func (s *PostgresStore) DebitForPurchase(ctx context.Context, id int64, amount decimal.Decimal) (*types.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	row := s.pool.QueryRow(ctx, `
UPDATE accounts
SET balance = balance - $2, updated_at = NOW()
WHERE id = $1 AND balance >= $2
RETURNING `+accountColumns, id, amount)
	acc, err := scanAccount(row)
	if errors.Is(err, ErrNotFound) {
		// No row matched: either the account is missing or the guard held.
		if _, getErr := s.GetAccount(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInsufficientBalance
	}
	return acc, err
}

func (s *PostgresStore) SetTier(ctx context.Context, id int64, tier types.Tier) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET tier = $2, updated_at = NOW() WHERE id = $1`, id, tier)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetBanned(ctx context.Context, id int64, banned bool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET banned = $2, updated_at = NOW() WHERE id = $1`, id, banned)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]types.Account, error) {
	return s.listAccountsWhere(ctx, ``)
}

func (s *PostgresStore) ListPremium(ctx context.Context) ([]types.Account, error) {
	return s.listAccountsWhere(ctx, `WHERE tier = 'premium'`)
}

func (s *PostgresStore) listAccountsWhere(ctx context.Context, where string) ([]types.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts `+where+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []types.Account
	for rows.Next() {
		var a types.Account
		if err := rows.Scan(&a.ID, &a.TelegramID, &a.Username, &a.FirstName, &a.LastName,
			&a.Balance, &a.Tier, &a.Banned, &a.LastPurchaseAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
