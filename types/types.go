package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Account struct {
	ID             int64
	TelegramID     int64
	Username       string
	FirstName      string
	LastName       string
	Balance        decimal.Decimal
	Tier           Tier
	Banned         bool
	LastPurchaseAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Product struct {
	ID          int64
	Name        string
	Description string
	ImageFileID string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PriceTier is a (duration, price) option under a product. Duration is
// always the canonical label ("7 Days", "1 Month") and is unique per product.
type PriceTier struct {
	ID        int64
	ProductID int64
	Duration  string
	Price     decimal.Decimal
	CreatedAt time.Time
}

// RedemptionKey is a single-use secret. Used flips false->true exactly once,
// inside a successful purchase, and never back.
type RedemptionKey struct {
	ID        int64
	ProductID int64
	Duration  string
	Value     string
	Used      bool
	BatchID   uuid.UUID
	CreatedAt time.Time
}

// Order is an immutable purchase receipt. Name, duration and price are
// snapshots taken at purchase time; editing the product later must not
// change them.
type Order struct {
	ID          int64
	AccountID   int64
	ProductID   int64
	ProductName string
	Duration    string
	Price       decimal.Decimal
	KeyValue    string
	PurchasedAt time.Time
}

type TrustedSeller struct {
	ID          int64
	Username    string
	Name        string
	Description string
	CreatedAt   time.Time
}

type Admin struct {
	ID         int64
	TelegramID int64
	Username   string
	IsRoot     bool
	CreatedAt  time.Time
}

// ProductListing is what the front-end renders: a product with its tiers
// and per-tier availability.
type ProductListing struct {
	Product Product
	Tiers   []TierListing
}

type TierListing struct {
	Tier    PriceTier
	InStock int
}

// ProductUpdate carries the optional fields of an update; nil means
// "leave unchanged".
type ProductUpdate struct {
	Name        *string
	Description *string
	ImageFileID *string
	Active      *bool
}

// IngestReport is the partial-success result of a bulk key or price
// ingestion: every line is processed independently.
type IngestReport struct {
	Added    int
	Rejected []string
}

type Stats struct {
	Accounts     int
	PremiumUsers int
	Products     int
	Orders       int
	Revenue      decimal.Decimal
}
