package types

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// FailReason is the non-fatal outcome taxonomy of a purchase attempt.
type FailReason string

const (
	FailNone                FailReason = ""
	FailAccountNotFound     FailReason = "account_not_found"
	FailAccessDenied        FailReason = "access_denied"
	FailTierNotFound        FailReason = "tier_not_found"
	FailOutOfStock          FailReason = "out_of_stock"
	FailInsufficientBalance FailReason = "insufficient_balance"
	FailStorage             FailReason = "storage_failure"
)
