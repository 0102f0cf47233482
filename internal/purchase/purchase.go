// Package purchase orchestrates a buy attempt: eligibility, price
// resolution, then one atomic claim-debit-record transaction in the store.
package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"keyshop/internal/logger"
	"keyshop/store"
	"keyshop/types"
)

type Service struct {
	accounts types.AccountStore
	catalog  types.CatalogStore
	orders   types.OrderStore
	cache    types.Cache
}

// New builds the orchestrator. cache is only ever written (invalidated)
// after a successful purchase, never read: the reservation decision always
// runs against the authoritative store.
func New(accounts types.AccountStore, catalog types.CatalogStore, orders types.OrderStore, cache types.Cache) *Service {
	return &Service{accounts: accounts, catalog: catalog, orders: orders, cache: cache}
}

// Result is the typed outcome of an attempt. Reason is set exactly when OK
// is false; Err carries the underlying storage error for FailStorage only.
type Result struct {
	OK         bool
	Reason     types.FailReason
	KeyValue   string
	Order      *types.Order
	NewBalance decimal.Decimal
	Err        error
}

func fail(reason types.FailReason) Result {
	return Result{Reason: reason}
}

func failStorage(err error) Result {
	return Result{Reason: types.FailStorage, Err: err}
}

// Attempt runs the purchase state machine. All expected failures come back
// as a Result reason; nothing here panics and nothing is half-applied: the
// store transaction either commits claim+debit+order together or rolls all
// three back.
func (s *Service) Attempt(ctx context.Context, accountID, productID, tierID int64) Result {
	acc, err := s.accounts.GetAccount(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return fail(types.FailAccountNotFound)
	}
	if err != nil {
		return failStorage(err)
	}
	if acc.Banned || acc.Tier != types.TierPremium {
		return fail(types.FailAccessDenied)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return fail(types.FailTierNotFound)
	}
	if err != nil {
		return failStorage(err)
	}
	if !product.Active {
		return fail(types.FailTierNotFound)
	}

	tier, err := s.catalog.GetPriceTier(ctx, tierID)
	if errors.Is(err, store.ErrNotFound) {
		return fail(types.FailTierNotFound)
	}
	if err != nil {
		return failStorage(err)
	}
	if tier.ProductID != product.ID {
		return fail(types.FailTierNotFound)
	}

	order, err := s.orders.ExecutePurchase(ctx, acc.ID, product, tier)
	switch {
	case errors.Is(err, store.ErrOutOfStock):
		return fail(types.FailOutOfStock)
	case errors.Is(err, store.ErrInsufficientBalance):
		return fail(types.FailInsufficientBalance)
	case err != nil:
		// Covers timeouts too: an ambiguous store failure is never treated
		// as success.
		logger.Error("purchase transaction failed",
			zap.Int64("account_id", accountID),
			zap.Int64("tier_id", tierID),
			zap.Error(err))
		return failStorage(err)
	}

	if s.cache != nil {
		_ = s.cache.Del(fmt.Sprintf("account:%d", acc.TelegramID))
		_ = s.cache.DelPattern("products:*")
	}

	logger.Info("purchase completed",
		zap.Int64("account_id", acc.ID),
		zap.Int64("product_id", product.ID),
		zap.String("duration", tier.Duration),
		zap.String("price", tier.Price.String()))

	return Result{
		OK:         true,
		KeyValue:   order.KeyValue,
		Order:      order,
		NewBalance: acc.Balance.Sub(tier.Price),
	}
}
