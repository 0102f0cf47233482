package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"keyshop/store"
	"keyshop/types"
)

// memCatalog is an in-memory CatalogStore with real upsert/cascade behavior.
type memCatalog struct {
	nextID   int64
	products map[int64]*types.Product
	tiers    map[int64]*types.PriceTier
	keys     []*types.RedemptionKey
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		products: make(map[int64]*types.Product),
		tiers:    make(map[int64]*types.PriceTier),
	}
}

func (m *memCatalog) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memCatalog) CreateProduct(_ context.Context, name, description string) (*types.Product, error) {
	p := &types.Product{ID: m.id(), Name: name, Description: description, Active: true}
	m.products[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *memCatalog) UpdateProduct(_ context.Context, id int64, upd types.ProductUpdate) (*types.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.ImageFileID != nil {
		p.ImageFileID = *upd.ImageFileID
	}
	if upd.Active != nil {
		p.Active = *upd.Active
	}
	cp := *p
	return &cp, nil
}

func (m *memCatalog) DeleteProduct(_ context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.products, id)
	for tid, t := range m.tiers {
		if t.ProductID == id {
			delete(m.tiers, tid)
		}
	}
	kept := m.keys[:0]
	for _, k := range m.keys {
		if k.ProductID != id {
			kept = append(kept, k)
		}
	}
	m.keys = kept
	return nil
}

func (m *memCatalog) GetProduct(_ context.Context, id int64) (*types.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memCatalog) ListProducts(_ context.Context, activeOnly bool) ([]types.Product, error) {
	var out []types.Product
	for _, p := range m.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *memCatalog) UpsertPriceTier(_ context.Context, productID int64, dur string, price decimal.Decimal) (*types.PriceTier, error) {
	for _, t := range m.tiers {
		if t.ProductID == productID && t.Duration == dur {
			t.Price = price
			cp := *t
			return &cp, nil
		}
	}
	t := &types.PriceTier{ID: m.id(), ProductID: productID, Duration: dur, Price: price}
	m.tiers[t.ID] = t
	cp := *t
	return &cp, nil
}

func (m *memCatalog) GetPriceTier(_ context.Context, tierID int64) (*types.PriceTier, error) {
	t, ok := m.tiers[tierID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memCatalog) ListPriceTiers(_ context.Context, productID int64) ([]types.PriceTier, error) {
	var out []types.PriceTier
	for _, t := range m.tiers {
		if t.ProductID == productID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memCatalog) RemovePriceTier(_ context.Context, tierID int64) error {
	if _, ok := m.tiers[tierID]; !ok {
		return store.ErrNotFound
	}
	delete(m.tiers, tierID)
	return nil
}

func (m *memCatalog) AddKeys(_ context.Context, productID int64, batchID uuid.UUID, keys []types.KeyInput) (int, error) {
	for _, k := range keys {
		m.keys = append(m.keys, &types.RedemptionKey{
			ID: m.id(), ProductID: productID, Duration: k.Duration, Value: k.Value, BatchID: batchID,
			CreatedAt: time.Now(),
		})
	}
	return len(keys), nil
}

func (m *memCatalog) StockPerDuration(_ context.Context, productID int64) (map[string]int, error) {
	stock := make(map[string]int)
	for _, k := range m.keys {
		if k.ProductID == productID && !k.Used {
			stock[k.Duration]++
		}
	}
	return stock, nil
}

func (m *memCatalog) KeyCounts(_ context.Context, productID int64) (total, available int, err error) {
	for _, k := range m.keys {
		if k.ProductID != productID {
			continue
		}
		total++
		if !k.Used {
			available++
		}
	}
	return total, available, nil
}

func (m *memCatalog) DeleteAllKeys(_ context.Context, productID int64) (int64, error) {
	return m.deleteKeys(func(k *types.RedemptionKey) bool { return k.ProductID == productID })
}

func (m *memCatalog) DeleteUsedKeys(_ context.Context, productID int64) (int64, error) {
	return m.deleteKeys(func(k *types.RedemptionKey) bool { return k.ProductID == productID && k.Used })
}

func (m *memCatalog) DeleteMostRecentBatch(_ context.Context, productID int64) (int64, error) {
	var last *types.RedemptionKey
	for _, k := range m.keys {
		if k.ProductID == productID && (last == nil || k.ID > last.ID) {
			last = k
		}
	}
	if last == nil {
		return 0, nil
	}
	batch := last.BatchID
	return m.deleteKeys(func(k *types.RedemptionKey) bool { return k.ProductID == productID && k.BatchID == batch })
}

func (m *memCatalog) deleteKeys(match func(*types.RedemptionKey) bool) (int64, error) {
	var n int64
	kept := m.keys[:0]
	for _, k := range m.keys {
		if match(k) {
			n++
		} else {
			kept = append(kept, k)
		}
	}
	m.keys = kept
	return n, nil
}

// memCache is a map-backed types.Cache for asserting read-through and
// invalidation behavior.
type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(key string, dest interface{}) error {
	b, ok := c.data[key]
	if !ok {
		return store.ErrNotFound
	}
	return json.Unmarshal(b, dest)
}

func (c *memCache) Set(key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memCache) Del(key string) error {
	delete(c.data, key)
	return nil
}

func (c *memCache) DelPattern(pattern string) error {
	// Good enough for the "products:*" pattern used by the service.
	prefix := pattern[:len(pattern)-1]
	for k := range c.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.data, k)
		}
	}
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestUpsertPriceTierNormalizesToSameTier(t *testing.T) {
	m := newMemCatalog()
	svc := New(m, nil, 0)
	ctx := context.Background()

	p, _ := m.CreateProduct(ctx, "VPN", "")

	if _, err := svc.UpsertPriceTier(ctx, p.ID, "7d", dec("5.00")); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, err := svc.UpsertPriceTier(ctx, p.ID, "7 Days", dec("7.00")); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	tiers, _ := m.ListPriceTiers(ctx, p.ID)
	if len(tiers) != 1 {
		t.Fatalf("tiers = %d, want 1", len(tiers))
	}
	if tiers[0].Duration != "7 Days" || !tiers[0].Price.Equal(dec("7.00")) {
		t.Errorf("tier = %q %s, want 7 Days 7.00", tiers[0].Duration, tiers[0].Price)
	}
}

func TestUpsertPriceTierRejectsBadInput(t *testing.T) {
	m := newMemCatalog()
	svc := New(m, nil, 0)
	ctx := context.Background()
	p, _ := m.CreateProduct(ctx, "VPN", "")

	if _, err := svc.UpsertPriceTier(ctx, p.ID, "bogus", dec("5.00")); err == nil {
		t.Errorf("expected error for bad duration")
	}
	if _, err := svc.UpsertPriceTier(ctx, p.ID, "7d", dec("-1.00")); err == nil {
		t.Errorf("expected error for negative price")
	}
}

func TestUpsertPriceLinesLastWins(t *testing.T) {
	m := newMemCatalog()
	svc := New(m, nil, 0)
	ctx := context.Background()
	p, _ := m.CreateProduct(ctx, "VPN", "")

	report, err := svc.UpsertPriceLines(ctx, p.ID, "1d 1.00\nnope 2\n7d 5.00\n1 Day 3.00")
	if err != nil {
		t.Fatalf("UpsertPriceLines: %v", err)
	}
	if report.Added != 3 || len(report.Rejected) != 1 {
		t.Errorf("report = %d added %d rejected, want 3/1", report.Added, len(report.Rejected))
	}

	tiers, _ := m.ListPriceTiers(ctx, p.ID)
	if len(tiers) != 2 {
		t.Fatalf("tiers = %d, want 2", len(tiers))
	}
	for _, tier := range tiers {
		if tier.Duration == "1 Day" && !tier.Price.Equal(dec("3.00")) {
			t.Errorf("1 Day price = %s, want 3.00 (last line wins)", tier.Price)
		}
	}
}

func TestIngestKeysPartialSuccess(t *testing.T) {
	m := newMemCatalog()
	svc := New(m, nil, 0)
	ctx := context.Background()
	p, _ := m.CreateProduct(ctx, "VPN", "")
	_, _ = svc.UpsertPriceTier(ctx, p.ID, "1d", dec("1.00"))
	_, _ = svc.UpsertPriceTier(ctx, p.ID, "7d", dec("5.00"))

	report, err := svc.IngestKeys(ctx, p.ID, "1d KEY1\nbogus KEY2\n7d KEY3")
	if err != nil {
		t.Fatalf("IngestKeys: %v", err)
	}
	if report.Added != 2 || len(report.Rejected) != 1 {
		t.Fatalf("report = %d added %d rejected, want 2/1", report.Added, len(report.Rejected))
	}
	if len(m.keys) != 2 {
		t.Errorf("keys stored = %d, want 2", len(m.keys))
	}
}

func TestIngestKeysAcceptsAllDurationEncodings(t *testing.T) {
	m := newMemCatalog()
	svc := New(m, nil, 0)
	ctx := context.Background()
	p, _ := m.CreateProduct(ctx, "VPN", "")
	_, _ = svc.UpsertPriceTier(ctx, p.ID, "1d", dec("1.00"))

	report, err := svc.IngestKeys(ctx, p.ID, "1d SHORTKEY\n1 Day CANONKEY\n1d|1 Day LEGACYKEY")
	if err != nil {
		t.Fatalf("IngestKeys: %v", err)
	}
	if report.Added != 3 || len(report.Rejected) != 0 {
		t.Fatalf("report = %d added %v rejected, want 3 added none rejected", report.Added, report.Rejected)
	}
	for _, k := range m.keys {
		if k.Duration != "1 Day" {
			t.Errorf("key %q stored with duration %q, want canonical 1 Day", k.Value, k.Duration)
		}
	}
}

func TestIngestKeysRejectsDurationWithoutTier(t *testing.T) {
	m := newMemCatalog()
	svc := New(m, nil, 0)
	ctx := context.Background()
	p, _ := m.CreateProduct(ctx, "VPN", "")
	_, _ = svc.UpsertPriceTier(ctx, p.ID, "1d", dec("1.00"))

	report, err := svc.IngestKeys(ctx, p.ID, "3m SOMEKEY")
	if err != nil {
		t.Fatalf("IngestKeys: %v", err)
	}
	if report.Added != 0 || len(report.Rejected) != 1 {
		t.Errorf("report = %d added %d rejected, want 0/1", report.Added, len(report.Rejected))
	}
}

func TestIngestKeysUnknownProduct(t *testing.T) {
	svc := New(newMemCatalog(), nil, 0)
	if _, err := svc.IngestKeys(context.Background(), 42, "1d KEY"); err == nil {
		t.Errorf("expected error for unknown product")
	}
}

func TestDeleteMostRecentBatch(t *testing.T) {
	m := newMemCatalog()
	svc := New(m, nil, 0)
	ctx := context.Background()
	p, _ := m.CreateProduct(ctx, "VPN", "")
	_, _ = svc.UpsertPriceTier(ctx, p.ID, "1d", dec("1.00"))

	if _, err := svc.IngestKeys(ctx, p.ID, "1d A\n1d B"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.IngestKeys(ctx, p.ID, "1d C\n1d D\n1d E"); err != nil {
		t.Fatal(err)
	}

	n, err := svc.DeleteMostRecentBatch(ctx, p.ID)
	if err != nil {
		t.Fatalf("DeleteMostRecentBatch: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted = %d, want 3 (the second batch)", n)
	}
	if len(m.keys) != 2 {
		t.Errorf("keys left = %d, want 2", len(m.keys))
	}
}

func TestListActiveReadThroughAndInvalidation(t *testing.T) {
	m := newMemCatalog()
	cache := newMemCache()
	svc := New(m, cache, 60)
	ctx := context.Background()

	p, _ := m.CreateProduct(ctx, "VPN", "")
	_, _ = svc.UpsertPriceTier(ctx, p.ID, "1d", dec("1.00"))
	_, _ = svc.IngestKeys(ctx, p.ID, "1d KEY1")

	listings, err := svc.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(listings) != 1 || listings[0].Tiers[0].InStock != 1 {
		t.Fatalf("unexpected listings: %+v", listings)
	}
	if _, ok := cache.data[cacheKeyActiveProducts]; !ok {
		t.Errorf("listing not cached")
	}

	// A catalog mutation must drop the cached listing.
	if _, err := svc.UpsertPriceTier(ctx, p.ID, "7d", dec("5.00")); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.data[cacheKeyActiveProducts]; ok {
		t.Errorf("cache not invalidated after mutation")
	}

	listings, err = svc.ListActive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(listings[0].Tiers) != 2 {
		t.Errorf("tiers after refresh = %d, want 2", len(listings[0].Tiers))
	}
	// Tiers come back sorted by duration length.
	if listings[0].Tiers[0].Tier.Duration != "1 Day" {
		t.Errorf("tiers not sorted: first is %q", listings[0].Tiers[0].Tier.Duration)
	}
}

func TestUpdateProductPartialFields(t *testing.T) {
	m := newMemCatalog()
	cache := newMemCache()
	svc := New(m, cache, 60)
	ctx := context.Background()
	p, _ := m.CreateProduct(ctx, "VPN", "fast")
	_, _ = svc.ListActive(ctx)

	name := "VPN Pro"
	updated, err := svc.UpdateProduct(ctx, p.ID, types.ProductUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if updated.Name != "VPN Pro" || updated.Description != "fast" {
		t.Errorf("update = %q/%q, want name changed and description kept", updated.Name, updated.Description)
	}
	if _, ok := cache.data[cacheKeyActiveProducts]; ok {
		t.Errorf("cache not invalidated after update")
	}

	fileID := "AgACAgIAAxkBAAIB"
	updated, err = svc.UpdateProduct(ctx, p.ID, types.ProductUpdate{ImageFileID: &fileID})
	if err != nil {
		t.Fatalf("UpdateProduct image: %v", err)
	}
	if updated.ImageFileID != fileID || updated.Name != "VPN Pro" {
		t.Errorf("image update = %q/%q, want file id set and name kept", updated.ImageFileID, updated.Name)
	}

	empty := ""
	updated, err = svc.UpdateProduct(ctx, p.ID, types.ProductUpdate{ImageFileID: &empty})
	if err != nil {
		t.Fatalf("UpdateProduct clear image: %v", err)
	}
	if updated.ImageFileID != "" {
		t.Errorf("image not cleared: %q", updated.ImageFileID)
	}
}

func TestRemovePriceTier(t *testing.T) {
	m := newMemCatalog()
	svc := New(m, nil, 0)
	ctx := context.Background()
	p, _ := m.CreateProduct(ctx, "VPN", "")
	tier, _ := svc.UpsertPriceTier(ctx, p.ID, "1d", dec("1.00"))

	if err := svc.RemovePriceTier(ctx, tier.ID); err != nil {
		t.Fatalf("RemovePriceTier: %v", err)
	}
	if tiers, _ := m.ListPriceTiers(ctx, p.ID); len(tiers) != 0 {
		t.Errorf("tiers left = %d, want 0", len(tiers))
	}
	if err := svc.RemovePriceTier(ctx, tier.ID); err == nil {
		t.Errorf("expected error removing a missing tier")
	}
}

func TestDeleteProductCascades(t *testing.T) {
	m := newMemCatalog()
	svc := New(m, nil, 0)
	ctx := context.Background()
	p, _ := m.CreateProduct(ctx, "VPN", "")
	_, _ = svc.UpsertPriceTier(ctx, p.ID, "1d", dec("1.00"))
	_, _ = svc.IngestKeys(ctx, p.ID, "1d KEY1")

	if err := svc.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if len(m.keys) != 0 || len(m.tiers) != 0 {
		t.Errorf("cascade failed: %d keys, %d tiers left", len(m.keys), len(m.tiers))
	}
}
