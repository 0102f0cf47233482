// Package catalog is the read/write facade over products, price tiers and
// the key pool. Duration input is normalized here, at the boundary, so the
// store only ever sees canonical labels.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"keyshop/internal/duration"
	"keyshop/internal/logger"
	"keyshop/types"
)

const cacheKeyActiveProducts = "products:active"

type Service struct {
	store types.CatalogStore
	cache types.Cache
	ttl   time.Duration
}

// New builds the service. cache may be nil; it is a display accelerator
// only and every decision falls through to the store.
func New(store types.CatalogStore, cache types.Cache, ttlSeconds int) *Service {
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttlSeconds <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{store: store, cache: cache, ttl: ttl}
}

func (s *Service) invalidate() {
	if s.cache == nil {
		return
	}
	if err := s.cache.DelPattern("products:*"); err != nil {
		logger.Warn("product cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) CreateProduct(ctx context.Context, name, description string) (*types.Product, error) {
	p, err := s.store.CreateProduct(ctx, name, description)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	logger.Info("product created", zap.Int64("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, upd types.ProductUpdate) (*types.Product, error) {
	p, err := s.store.UpdateProduct(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return p, nil
}

func (s *Service) SetActive(ctx context.Context, id int64, active bool) (*types.Product, error) {
	return s.UpdateProduct(ctx, id, types.ProductUpdate{Active: &active})
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	logger.Info("product deleted", zap.Int64("product_id", id))
	return nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*types.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// UpsertPriceTier normalizes the duration input and updates the existing
// tier for that canonical duration, or inserts a new one.
func (s *Service) UpsertPriceTier(ctx context.Context, productID int64, durationInput string, price decimal.Decimal) (*types.PriceTier, error) {
	canonical, err := duration.Normalize(durationInput)
	if err != nil {
		return nil, err
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("price must not be negative")
	}
	tier, err := s.store.UpsertPriceTier(ctx, productID, canonical, price)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return tier, nil
}

// UpsertPriceLines processes a multi-line "<duration> <price>" batch. Lines
// are independent: a bad line is reported, not fatal, and a duplicate
// duration later in the batch overwrites the earlier one because both
// resolve to the same upsert target.
func (s *Service) UpsertPriceLines(ctx context.Context, productID int64, text string) (*types.IngestReport, error) {
	report := &types.IngestReport{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// The price is the last field; everything before it is the duration,
		// which may itself contain spaces ("1 Day", "1d|1 Day").
		parts := strings.Fields(line)
		if len(parts) < 2 {
			report.Rejected = append(report.Rejected, fmt.Sprintf("invalid format: %s", line))
			continue
		}
		durInput := strings.Join(parts[:len(parts)-1], " ")
		price, err := decimal.NewFromString(parts[len(parts)-1])
		if err != nil || price.IsNegative() {
			report.Rejected = append(report.Rejected, fmt.Sprintf("invalid price: %s", parts[len(parts)-1]))
			continue
		}
		if _, err := s.UpsertPriceTier(ctx, productID, durInput, price); err != nil {
			report.Rejected = append(report.Rejected, fmt.Sprintf("%s: %v", durInput, err))
			continue
		}
		report.Added++
	}
	return report, nil
}

func (s *Service) RemovePriceTier(ctx context.Context, tierID int64) error {
	if err := s.store.RemovePriceTier(ctx, tierID); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// IngestKeys parses a multi-line "<duration> <key>" batch. Every line is
// validated independently against the product's existing tiers; valid lines
// are appended as one batch, rejected lines come back with reasons.
func (s *Service) IngestKeys(ctx context.Context, productID int64, text string) (*types.IngestReport, error) {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	tiers, err := s.store.ListPriceTiers(ctx, productID)
	if err != nil {
		return nil, err
	}
	valid := make(map[string]bool, len(tiers))
	for _, t := range tiers {
		valid[t.Duration] = true
	}

	report := &types.IngestReport{}
	var keys []types.KeyInput
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// The key is the last field; the duration is everything before it,
		// in any accepted encoding ("1d", "1 Day", "1d|1 Day").
		parts := strings.Fields(line)
		if len(parts) < 2 {
			report.Rejected = append(report.Rejected, fmt.Sprintf("invalid format: %s", line))
			continue
		}
		durInput := strings.Join(parts[:len(parts)-1], " ")
		canonical, err := duration.Normalize(durInput)
		if err != nil {
			report.Rejected = append(report.Rejected, fmt.Sprintf("invalid duration: %s", durInput))
			continue
		}
		if !valid[canonical] {
			report.Rejected = append(report.Rejected, fmt.Sprintf("duration %q not in price list", canonical))
			continue
		}
		keys = append(keys, types.KeyInput{Duration: canonical, Value: parts[len(parts)-1]})
	}

	if len(keys) > 0 {
		added, err := s.store.AddKeys(ctx, productID, uuid.New(), keys)
		if err != nil {
			return nil, err
		}
		report.Added = added
		s.invalidate()
	}
	logger.Info("keys ingested",
		zap.Int64("product_id", productID),
		zap.Int("added", report.Added),
		zap.Int("rejected", len(report.Rejected)))
	return report, nil
}

func (s *Service) StockPerDuration(ctx context.Context, productID int64) (map[string]int, error) {
	return s.store.StockPerDuration(ctx, productID)
}

func (s *Service) TotalStock(ctx context.Context, productID int64) (int, error) {
	_, available, err := s.store.KeyCounts(ctx, productID)
	return available, err
}

func (s *Service) KeyCounts(ctx context.Context, productID int64) (total, available int, err error) {
	return s.store.KeyCounts(ctx, productID)
}

func (s *Service) DeleteAllKeys(ctx context.Context, productID int64) (int64, error) {
	n, err := s.store.DeleteAllKeys(ctx, productID)
	if err == nil {
		s.invalidate()
	}
	return n, err
}

func (s *Service) DeleteUsedKeys(ctx context.Context, productID int64) (int64, error) {
	n, err := s.store.DeleteUsedKeys(ctx, productID)
	if err == nil {
		s.invalidate()
	}
	return n, err
}

func (s *Service) DeleteMostRecentBatch(ctx context.Context, productID int64) (int64, error) {
	n, err := s.store.DeleteMostRecentBatch(ctx, productID)
	if err == nil {
		s.invalidate()
	}
	return n, err
}

// ListActive returns active products with tiers and per-tier stock for
// display. The result may be a few minutes stale: it is served from the
// cache when possible and rebuilt from the store otherwise. The purchase
// path never uses it.
func (s *Service) ListActive(ctx context.Context) ([]types.ProductListing, error) {
	if s.cache != nil {
		var cached []types.ProductListing
		if err := s.cache.Get(cacheKeyActiveProducts, &cached); err == nil {
			return cached, nil
		}
	}

	products, err := s.store.ListProducts(ctx, true)
	if err != nil {
		return nil, err
	}
	listings := make([]types.ProductListing, 0, len(products))
	for _, p := range products {
		listing, err := s.buildListing(ctx, p)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *listing)
	}

	if s.cache != nil {
		if err := s.cache.Set(cacheKeyActiveProducts, listings, s.ttl); err != nil {
			logger.Warn("product cache write failed", zap.Error(err))
		}
	}
	return listings, nil
}

// ListAll returns every product, inactive included. Admin screens only;
// it always bypasses the cache.
func (s *Service) ListAll(ctx context.Context) ([]types.Product, error) {
	return s.store.ListProducts(ctx, false)
}

// GetListing is the full product detail with per-duration stock.
func (s *Service) GetListing(ctx context.Context, productID int64) (*types.ProductListing, error) {
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.buildListing(ctx, *p)
}

func (s *Service) buildListing(ctx context.Context, p types.Product) (*types.ProductListing, error) {
	tiers, err := s.store.ListPriceTiers(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	stock, err := s.store.StockPerDuration(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	listing := &types.ProductListing{Product: p, Tiers: make([]types.TierListing, 0, len(tiers))}
	for _, t := range tiers {
		listing.Tiers = append(listing.Tiers, types.TierListing{Tier: t, InStock: stock[t.Duration]})
	}
	sort.Slice(listing.Tiers, func(i, j int) bool {
		return duration.SortKey(listing.Tiers[i].Tier.Duration) < duration.SortKey(listing.Tiers[j].Tier.Duration)
	})
	return listing, nil
}
