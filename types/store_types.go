package types

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountStore interface {
	UpsertAccount(ctx context.Context, telegramID int64, username, firstName, lastName string) (*Account, error)
	GetAccount(ctx context.Context, id int64) (*Account, error)
	GetAccountByTelegramID(ctx context.Context, telegramID int64) (*Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)

	// AdjustBalance applies a signed delta with no floor; admin overrides may
	// leave the balance negative.
	AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) (*Account, error)
	// DebitForPurchase fails with ErrInsufficientBalance instead of letting
	// the balance go below zero.
	DebitForPurchase(ctx context.Context, id int64, amount decimal.Decimal) (*Account, error)

	SetTier(ctx context.Context, id int64, tier Tier) error
	SetBanned(ctx context.Context, id int64, banned bool) error
	ListAccounts(ctx context.Context) ([]Account, error)
	ListPremium(ctx context.Context) ([]Account, error)
}

type KeyInput struct {
	Duration string
	Value    string
}

type CatalogStore interface {
	CreateProduct(ctx context.Context, name, description string) (*Product, error)
	UpdateProduct(ctx context.Context, id int64, upd ProductUpdate) (*Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)

	UpsertPriceTier(ctx context.Context, productID int64, duration string, price decimal.Decimal) (*PriceTier, error)
	GetPriceTier(ctx context.Context, tierID int64) (*PriceTier, error)
	ListPriceTiers(ctx context.Context, productID int64) ([]PriceTier, error)
	RemovePriceTier(ctx context.Context, tierID int64) error

	AddKeys(ctx context.Context, productID int64, batchID uuid.UUID, keys []KeyInput) (int, error)
	StockPerDuration(ctx context.Context, productID int64) (map[string]int, error)
	KeyCounts(ctx context.Context, productID int64) (total, available int, err error)
	DeleteAllKeys(ctx context.Context, productID int64) (int64, error)
	DeleteUsedKeys(ctx context.Context, productID int64) (int64, error)
	DeleteMostRecentBatch(ctx context.Context, productID int64) (int64, error)
}

type OrderStore interface {
	// ExecutePurchase runs claim, debit and order recording as one
	// all-or-nothing unit. Product and tier are passed in full so the order
	// row carries snapshots, not live references.
	ExecutePurchase(ctx context.Context, accountID int64, product *Product, tier *PriceTier) (*Order, error)
	OrdersByAccount(ctx context.Context, accountID int64, limit int) ([]Order, error)
	Stats(ctx context.Context) (*Stats, error)
}

type SellerStore interface {
	AddSeller(ctx context.Context, username, name, description string) (*TrustedSeller, error)
	RemoveSeller(ctx context.Context, id int64) error
	ListSellers(ctx context.Context) ([]TrustedSeller, error)
}

type AdminStore interface {
	AddAdmin(ctx context.Context, telegramID int64, username string, isRoot bool) error
	RemoveAdmin(ctx context.Context, telegramID int64) (bool, error)
	GetAdmin(ctx context.Context, telegramID int64) (*Admin, error)
	ListAdmins(ctx context.Context) ([]Admin, error)
}

// Cache is the advisory read-through cache. It is display-only: the purchase
// path never consults it.
type Cache interface {
	Get(key string, dest interface{}) error
	Set(key string, value interface{}, ttl time.Duration) error
	Del(key string) error
	DelPattern(pattern string) error
}
