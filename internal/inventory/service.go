// Package inventory provides read-only catalog and stock lookups over
// the shared ledger store.
package inventory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/munderdifflin/paperledger/internal/ledger"
)

// CatalogPort abstracts ledger store usage for the lookup service.
type CatalogPort interface {
	GetItem(ctx context.Context, name string) (ledger.Item, error)
	ListItems(ctx context.Context) ([]ledger.Item, error)
	ListItemsByCategory(ctx context.Context, category string) ([]ledger.Item, error)
	SearchItems(ctx context.Context, term string) ([]ledger.Item, error)
	StockLevel(ctx context.Context, name string, asOf time.Time) (int, error)
	StockSnapshot(ctx context.Context, asOf time.Time) (map[string]int, error)
}

// Service answers stock and catalog queries. No side effects.
type Service struct {
	repo CatalogPort
}

// NewService builds Service.
func NewService(repo CatalogPort) *Service {
	return &Service{repo: repo}
}

// StockLevel returns an item's stock as of a date. Fails with
// ledger.ErrItemNotFound when the item is not in the catalog.
func (s *Service) StockLevel(ctx context.Context, name string, asOf time.Time) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, errors.New("inventory: item name required")
	}
	return s.repo.StockLevel(ctx, name, asOf)
}

// Snapshot maps every item with positive stock to its level as of a date.
func (s *Service) Snapshot(ctx context.Context, asOf time.Time) (map[string]int, error) {
	return s.repo.StockSnapshot(ctx, asOf)
}

// Catalog lists every item with price and category.
func (s *Service) Catalog(ctx context.Context) ([]ledger.Item, error) {
	return s.repo.ListItems(ctx)
}

// FindByCategory lists items in one category.
func (s *Service) FindByCategory(ctx context.Context, category string) ([]ledger.Item, error) {
	if strings.TrimSpace(category) == "" {
		return nil, errors.New("inventory: category required")
	}
	return s.repo.ListItemsByCategory(ctx, category)
}

// Search finds items whose name loosely matches the term. Useful for
// mapping a customer's wording onto catalog names.
func (s *Service) Search(ctx context.Context, term string) ([]ledger.Item, error) {
	if strings.TrimSpace(term) == "" {
		return nil, errors.New("inventory: search term required")
	}
	return s.repo.SearchItems(ctx, strings.TrimSpace(term))
}

// ItemPrice returns the unit price for an exact catalog name.
func (s *Service) ItemPrice(ctx context.Context, name string) (float64, error) {
	item, err := s.repo.GetItem(ctx, name)
	if err != nil {
		return 0, err
	}
	return item.UnitPrice, nil
}

// Resolve maps a requested name onto a catalog item: exact match first,
// then the first fuzzy match.
func (s *Service) Resolve(ctx context.Context, name string) (ledger.Item, error) {
	item, err := s.repo.GetItem(ctx, name)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, ledger.ErrItemNotFound) {
		return ledger.Item{}, err
	}
	matches, err := s.repo.SearchItems(ctx, strings.TrimSpace(name))
	if err != nil {
		return ledger.Item{}, err
	}
	if len(matches) == 0 {
		return ledger.Item{}, ledger.ErrItemNotFound
	}
	return matches[0], nil
}

var _ CatalogPort = (*ledger.Store)(nil)
