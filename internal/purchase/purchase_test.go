package purchase

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"keyshop/store"
	"keyshop/types"
)

// memStore is an in-memory stand-in for the postgres store. Its
// ExecutePurchase mirrors the real transaction: claim under a lock, guarded
// debit, rollback of the claim when the guard fails.
type memStore struct {
	mu       sync.Mutex
	accounts map[int64]*types.Account
	products map[int64]*types.Product
	tiers    map[int64]*types.PriceTier
	keys     []*types.RedemptionKey
	orders   []types.Order
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[int64]*types.Account),
		products: make(map[int64]*types.Product),
		tiers:    make(map[int64]*types.PriceTier),
	}
}

func (m *memStore) GetAccount(_ context.Context, id int64) (*types.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) GetProduct(_ context.Context, id int64) (*types.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetPriceTier(_ context.Context, id int64) (*types.PriceTier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tiers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) ExecutePurchase(_ context.Context, accountID int64, product *types.Product, tier *types.PriceTier) (*types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var claimed *types.RedemptionKey
	for _, k := range m.keys {
		if k.ProductID == tier.ProductID && k.Duration == tier.Duration && !k.Used {
			claimed = k
			break
		}
	}
	if claimed == nil {
		return nil, store.ErrOutOfStock
	}

	acc, ok := m.accounts[accountID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if acc.Balance.LessThan(tier.Price) {
		// Claim never happened as far as anyone can tell: tx rollback.
		return nil, store.ErrInsufficientBalance
	}

	claimed.Used = true
	acc.Balance = acc.Balance.Sub(tier.Price)
	order := types.Order{
		ID:          int64(len(m.orders) + 1),
		AccountID:   accountID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Duration:    tier.Duration,
		Price:       tier.Price,
		KeyValue:    claimed.Value,
	}
	m.orders = append(m.orders, order)
	return &order, nil
}

func (m *memStore) OrdersByAccount(_ context.Context, accountID int64, limit int) ([]types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Order
	for i := len(m.orders) - 1; i >= 0 && len(out) < limit; i-- {
		if m.orders[i].AccountID == accountID {
			out = append(out, m.orders[i])
		}
	}
	return out, nil
}

func (m *memStore) Stats(_ context.Context) (*types.Stats, error) { return &types.Stats{}, nil }

func (m *memStore) availableKeys(productID int64, duration string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, k := range m.keys {
		if k.ProductID == productID && k.Duration == duration && !k.Used {
			n++
		}
	}
	return n
}

// The remaining interface methods are unused by the orchestrator.

func (m *memStore) UpsertAccount(context.Context, int64, string, string, string) (*types.Account, error) {
	panic("not used")
}
func (m *memStore) GetAccountByTelegramID(context.Context, int64) (*types.Account, error) {
	panic("not used")
}
func (m *memStore) GetAccountByUsername(context.Context, string) (*types.Account, error) {
	panic("not used")
}
func (m *memStore) AdjustBalance(context.Context, int64, decimal.Decimal) (*types.Account, error) {
	panic("not used")
}
func (m *memStore) DebitForPurchase(context.Context, int64, decimal.Decimal) (*types.Account, error) {
	panic("not used")
}
func (m *memStore) SetTier(context.Context, int64, types.Tier) error { panic("not used") }
func (m *memStore) SetBanned(context.Context, int64, bool) error     { panic("not used") }
func (m *memStore) ListAccounts(context.Context) ([]types.Account, error) {
	panic("not used")
}
func (m *memStore) ListPremium(context.Context) ([]types.Account, error) {
	panic("not used")
}
func (m *memStore) CreateProduct(context.Context, string, string) (*types.Product, error) {
	panic("not used")
}
func (m *memStore) UpdateProduct(context.Context, int64, types.ProductUpdate) (*types.Product, error) {
	panic("not used")
}
func (m *memStore) DeleteProduct(context.Context, int64) error { panic("not used") }
func (m *memStore) ListProducts(context.Context, bool) ([]types.Product, error) {
	panic("not used")
}
func (m *memStore) UpsertPriceTier(context.Context, int64, string, decimal.Decimal) (*types.PriceTier, error) {
	panic("not used")
}
func (m *memStore) ListPriceTiers(context.Context, int64) ([]types.PriceTier, error) {
	panic("not used")
}
func (m *memStore) RemovePriceTier(context.Context, int64) error { panic("not used") }
func (m *memStore) AddKeys(context.Context, int64, uuid.UUID, []types.KeyInput) (int, error) {
	panic("not used")
}
func (m *memStore) StockPerDuration(context.Context, int64) (map[string]int, error) {
	panic("not used")
}
func (m *memStore) KeyCounts(context.Context, int64) (int, int, error)   { panic("not used") }
func (m *memStore) DeleteAllKeys(context.Context, int64) (int64, error)  { panic("not used") }
func (m *memStore) DeleteUsedKeys(context.Context, int64) (int64, error) { panic("not used") }
func (m *memStore) DeleteMostRecentBatch(context.Context, int64) (int64, error) {
	panic("not used")
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seed(balance string, keyValues ...string) (*memStore, *Service) {
	m := newMemStore()
	m.accounts[1] = &types.Account{ID: 1, TelegramID: 100, Balance: dec(balance), Tier: types.TierPremium}
	m.products[10] = &types.Product{ID: 10, Name: "VPN", Active: true}
	m.tiers[20] = &types.PriceTier{ID: 20, ProductID: 10, Duration: "1 Day", Price: dec("0.25")}
	for i, v := range keyValues {
		m.keys = append(m.keys, &types.RedemptionKey{
			ID: int64(i + 1), ProductID: 10, Duration: "1 Day", Value: v,
		})
	}
	return m, New(m, m, m, nil)
}

func TestAttemptSuccess(t *testing.T) {
	m, svc := seed("10.00", "ABC123")

	res := svc.Attempt(context.Background(), 1, 10, 20)
	if !res.OK {
		t.Fatalf("expected success, got reason %q err %v", res.Reason, res.Err)
	}
	if res.KeyValue != "ABC123" {
		t.Errorf("key = %q, want ABC123", res.KeyValue)
	}
	if !res.NewBalance.Equal(dec("9.75")) {
		t.Errorf("new balance = %s, want 9.75", res.NewBalance)
	}
	if got := m.accounts[1].Balance; !got.Equal(dec("9.75")) {
		t.Errorf("stored balance = %s, want 9.75", got)
	}
	if n := m.availableKeys(10, "1 Day"); n != 0 {
		t.Errorf("stock after purchase = %d, want 0", n)
	}
	if len(m.orders) != 1 {
		t.Fatalf("orders recorded = %d, want 1", len(m.orders))
	}
	if o := m.orders[0]; o.ProductName != "VPN" || !o.Price.Equal(dec("0.25")) || o.KeyValue != "ABC123" {
		t.Errorf("order snapshot wrong: %+v", o)
	}
}

func TestAttemptOrderSnapshotSurvivesRename(t *testing.T) {
	m, svc := seed("10.00", "ABC123")
	if res := svc.Attempt(context.Background(), 1, 10, 20); !res.OK {
		t.Fatalf("purchase failed: %q", res.Reason)
	}

	m.mu.Lock()
	m.products[10].Name = "VPN Renamed"
	m.mu.Unlock()

	if m.orders[0].ProductName != "VPN" {
		t.Errorf("order snapshot changed after product rename: %q", m.orders[0].ProductName)
	}
}

func TestAttemptInsufficientBalanceReleasesKey(t *testing.T) {
	m, svc := seed("0.00", "ABC123")

	res := svc.Attempt(context.Background(), 1, 10, 20)
	if res.OK || res.Reason != types.FailInsufficientBalance {
		t.Fatalf("got OK=%v reason=%q, want InsufficientBalance", res.OK, res.Reason)
	}
	if n := m.availableKeys(10, "1 Day"); n != 1 {
		t.Errorf("stock after failed purchase = %d, want 1 (key released)", n)
	}
	if !m.accounts[1].Balance.Equal(dec("0.00")) {
		t.Errorf("balance changed on failed purchase: %s", m.accounts[1].Balance)
	}
	if len(m.orders) != 0 {
		t.Errorf("order recorded on failed purchase")
	}
}

func TestAttemptOutOfStockBeforeDebit(t *testing.T) {
	m, svc := seed("10.00") // no keys at all

	res := svc.Attempt(context.Background(), 1, 10, 20)
	if res.OK || res.Reason != types.FailOutOfStock {
		t.Fatalf("got OK=%v reason=%q, want OutOfStock", res.OK, res.Reason)
	}
	if !m.accounts[1].Balance.Equal(dec("10.00")) {
		t.Errorf("balance debited with no key handed out: %s", m.accounts[1].Balance)
	}
}

func TestAttemptEligibility(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(m *memStore)
		want   types.FailReason
	}{
		{"missing account", func(m *memStore) { delete(m.accounts, 1) }, types.FailAccountNotFound},
		{"banned", func(m *memStore) { m.accounts[1].Banned = true }, types.FailAccessDenied},
		{"free tier", func(m *memStore) { m.accounts[1].Tier = types.TierFree }, types.FailAccessDenied},
		{"missing product", func(m *memStore) { delete(m.products, 10) }, types.FailTierNotFound},
		{"inactive product", func(m *memStore) { m.products[10].Active = false }, types.FailTierNotFound},
		{"missing tier", func(m *memStore) { delete(m.tiers, 20) }, types.FailTierNotFound},
		{"tier of other product", func(m *memStore) { m.tiers[20].ProductID = 99 }, types.FailTierNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m, svc := seed("10.00", "ABC123")
			c.mutate(m)
			res := svc.Attempt(context.Background(), 1, 10, 20)
			if res.OK || res.Reason != c.want {
				t.Errorf("got OK=%v reason=%q, want %q", res.OK, res.Reason, c.want)
			}
			if len(m.orders) != 0 {
				t.Errorf("order recorded on failed attempt")
			}
		})
	}
}

func TestAttemptNoDoubleRedemption(t *testing.T) {
	m, svc := seed("100.00", "ONLYKEY")

	const attempts = 50
	results := make([]Result, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Attempt(context.Background(), 1, 10, 20)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, r := range results {
		if r.OK {
			successes++
			if r.KeyValue != "ONLYKEY" {
				t.Errorf("unexpected key %q", r.KeyValue)
			}
		} else if r.Reason != types.FailOutOfStock {
			t.Errorf("unexpected failure reason %q", r.Reason)
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	if !m.accounts[1].Balance.Equal(dec("99.75")) {
		t.Errorf("balance = %s, want 99.75 (exactly one debit)", m.accounts[1].Balance)
	}
}

func TestAttemptBalanceNeverNegative(t *testing.T) {
	// Plenty of keys, balance for exactly two purchases.
	m, svc := seed("0.50", "K1", "K2", "K3", "K4", "K5", "K6", "K7", "K8")

	const attempts = 8
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Attempt(context.Background(), 1, 10, 20)
		}()
	}
	wg.Wait()

	if m.accounts[1].Balance.IsNegative() {
		t.Fatalf("balance went negative: %s", m.accounts[1].Balance)
	}
	if !m.accounts[1].Balance.Equal(dec("0.00")) {
		t.Errorf("balance = %s, want 0.00 after two successful debits", m.accounts[1].Balance)
	}
	if len(m.orders) != 2 {
		t.Errorf("orders = %d, want 2", len(m.orders))
	}
}
