package contextkeys

import (
	"context"

	"keyshop/types"
)

type accountKey struct{}
type adminKey struct{}

func WithAccount(ctx context.Context, acc *types.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, acc)
}

func GetAccount(ctx context.Context) (*types.Account, bool) {
	v := ctx.Value(accountKey{})
	if v == nil {
		return nil, false
	}
	return v.(*types.Account), true
}

func WithAdmin(ctx context.Context, isAdmin bool) context.Context {
	return context.WithValue(ctx, adminKey{}, isAdmin)
}

func IsAdmin(ctx context.Context) bool {
	v := ctx.Value(adminKey{})
	if v == nil {
		return false
	}
	return v.(bool)
}
