// Package account handles balance, tier and ban mutations. The guarded
// purchase debit lives in the store's purchase transaction; what this
// service exposes directly is the admin override path plus profile upkeep.
package account

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"keyshop/internal/logger"
	"keyshop/types"
)

type Service struct {
	store types.AccountStore
	cache types.Cache
}

func New(store types.AccountStore, cache types.Cache) *Service {
	return &Service{store: store, cache: cache}
}

func (s *Service) invalidate(telegramID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(fmt.Sprintf("account:%d", telegramID)); err != nil {
		logger.Warn("account cache invalidation failed", zap.Error(err))
	}
}

// GetOrCreate upserts the account on every inbound contact: profile fields
// are refreshed, balance and tier are never reset.
func (s *Service) GetOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string) (*types.Account, error) {
	return s.store.UpsertAccount(ctx, telegramID, username, firstName, lastName)
}

func (s *Service) Get(ctx context.Context, id int64) (*types.Account, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (*types.Account, error) {
	return s.store.GetAccountByTelegramID(ctx, telegramID)
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*types.Account, error) {
	return s.store.GetAccountByUsername(ctx, username)
}

// AdminAdjust applies a signed delta with no floor. Only the admin panel
// calls this; purchases go through the orchestrator's guarded debit.
func (s *Service) AdminAdjust(ctx context.Context, accountID int64, delta decimal.Decimal) (*types.Account, error) {
	acc, err := s.store.AdjustBalance(ctx, accountID, delta)
	if err != nil {
		return nil, err
	}
	s.invalidate(acc.TelegramID)
	logger.Info("balance adjusted", zap.Int64("account_id", accountID), zap.String("delta", delta.String()))
	return acc, nil
}

// DebitForPurchase is the guarded debit: it fails instead of letting the
// balance go negative.
func (s *Service) DebitForPurchase(ctx context.Context, accountID int64, amount decimal.Decimal) (*types.Account, error) {
	acc, err := s.store.DebitForPurchase(ctx, accountID, amount)
	if err != nil {
		return nil, err
	}
	s.invalidate(acc.TelegramID)
	return acc, nil
}

func (s *Service) SetTier(ctx context.Context, accountID int64, tier types.Tier) error {
	if err := s.store.SetTier(ctx, accountID, tier); err != nil {
		return err
	}
	if acc, err := s.store.GetAccount(ctx, accountID); err == nil {
		s.invalidate(acc.TelegramID)
	}
	logger.Info("tier changed", zap.Int64("account_id", accountID), zap.String("tier", string(tier)))
	return nil
}

func (s *Service) SetBanned(ctx context.Context, accountID int64, banned bool) error {
	if err := s.store.SetBanned(ctx, accountID, banned); err != nil {
		return err
	}
	if acc, err := s.store.GetAccount(ctx, accountID); err == nil {
		s.invalidate(acc.TelegramID)
	}
	logger.Info("ban flag changed", zap.Int64("account_id", accountID), zap.Bool("banned", banned))
	return nil
}

func (s *Service) ListPremium(ctx context.Context) ([]types.Account, error) {
	return s.store.ListPremium(ctx)
}

func (s *Service) ListAll(ctx context.Context) ([]types.Account, error) {
	return s.store.ListAccounts(ctx)
}
