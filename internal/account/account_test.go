package account

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"keyshop/store"
	"keyshop/types"
)

type memAccounts struct {
	nextID int64
	byID   map[int64]*types.Account
	byTgID map[int64]int64
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: make(map[int64]*types.Account), byTgID: make(map[int64]int64)}
}

func (m *memAccounts) UpsertAccount(_ context.Context, telegramID int64, username, firstName, lastName string) (*types.Account, error) {
	if id, ok := m.byTgID[telegramID]; ok {
		a := m.byID[id]
		a.Username, a.FirstName, a.LastName = username, firstName, lastName
		cp := *a
		return &cp, nil
	}
	m.nextID++
	a := &types.Account{ID: m.nextID, TelegramID: telegramID, Username: username, FirstName: firstName, LastName: lastName, Tier: types.TierFree}
	m.byID[a.ID] = a
	m.byTgID[telegramID] = a.ID
	cp := *a
	return &cp, nil
}

func (m *memAccounts) GetAccount(_ context.Context, id int64) (*types.Account, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) GetAccountByTelegramID(_ context.Context, telegramID int64) (*types.Account, error) {
	id, ok := m.byTgID[telegramID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.GetAccount(context.Background(), id)
}

func (m *memAccounts) GetAccountByUsername(_ context.Context, username string) (*types.Account, error) {
	for _, a := range m.byID {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memAccounts) AdjustBalance(_ context.Context, id int64, delta decimal.Decimal) (*types.Account, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	a.Balance = a.Balance.Add(delta)
	cp := *a
	return &cp, nil
}

func (m *memAccounts) DebitForPurchase(_ context.Context, id int64, amount decimal.Decimal) (*types.Account, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if a.Balance.LessThan(amount) {
		return nil, store.ErrInsufficientBalance
	}
	a.Balance = a.Balance.Sub(amount)
	cp := *a
	return &cp, nil
}

func (m *memAccounts) SetTier(_ context.Context, id int64, tier types.Tier) error {
	a, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Tier = tier
	return nil
}

func (m *memAccounts) SetBanned(_ context.Context, id int64, banned bool) error {
	a, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Banned = banned
	return nil
}

func (m *memAccounts) ListAccounts(_ context.Context) ([]types.Account, error) {
	var out []types.Account
	for _, a := range m.byID {
		out = append(out, *a)
	}
	return out, nil
}

func (m *memAccounts) ListPremium(_ context.Context) ([]types.Account, error) {
	var out []types.Account
	for _, a := range m.byID {
		if a.Tier == types.TierPremium {
			out = append(out, *a)
		}
	}
	return out, nil
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestGetOrCreatePreservesBalanceAndTier(t *testing.T) {
	m := newMemAccounts()
	svc := New(m, nil)
	ctx := context.Background()

	a, err := svc.GetOrCreate(ctx, 100, "alice", "Alice", "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := svc.AdminAdjust(ctx, a.ID, dec("25.00")); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetTier(ctx, a.ID, types.TierPremium); err != nil {
		t.Fatal(err)
	}

	again, err := svc.GetOrCreate(ctx, 100, "alice_new", "Alice", "B")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != a.ID {
		t.Errorf("upsert created a second account")
	}
	if again.Username != "alice_new" {
		t.Errorf("profile not refreshed: %q", again.Username)
	}
	if !again.Balance.Equal(dec("25.00")) || again.Tier != types.TierPremium {
		t.Errorf("balance/tier reset by upsert: %s %s", again.Balance, again.Tier)
	}
}

func TestAdminAdjustMayGoNegative(t *testing.T) {
	m := newMemAccounts()
	svc := New(m, nil)
	ctx := context.Background()
	a, _ := svc.GetOrCreate(ctx, 100, "alice", "", "")

	acc, err := svc.AdminAdjust(ctx, a.ID, dec("-5.00"))
	if err != nil {
		t.Fatalf("AdminAdjust: %v", err)
	}
	if !acc.Balance.Equal(dec("-5.00")) {
		t.Errorf("balance = %s, want -5.00 (admin override has no floor)", acc.Balance)
	}
}

func TestDebitForPurchaseGuard(t *testing.T) {
	m := newMemAccounts()
	svc := New(m, nil)
	ctx := context.Background()
	a, _ := svc.GetOrCreate(ctx, 100, "alice", "", "")
	_, _ = svc.AdminAdjust(ctx, a.ID, dec("3.00"))

	if _, err := svc.DebitForPurchase(ctx, a.ID, dec("5.00")); err != store.ErrInsufficientBalance {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}
	acc, _ := svc.Get(ctx, a.ID)
	if !acc.Balance.Equal(dec("3.00")) {
		t.Errorf("balance changed by failed debit: %s", acc.Balance)
	}

	if _, err := svc.DebitForPurchase(ctx, a.ID, dec("3.00")); err != nil {
		t.Errorf("full-balance debit failed: %v", err)
	}
}
