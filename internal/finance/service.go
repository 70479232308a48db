package finance

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/munderdifflin/paperledger/internal/ledger"
	"github.com/munderdifflin/paperledger/internal/pricing"
)

// DefaultSafetyMargin is the fraction of the cash balance that must
// remain after any approved purchase.
const DefaultSafetyMargin = 0.20

// LedgerPort abstracts the ledger store reads the guard needs.
type LedgerPort interface {
	CashBalance(ctx context.Context, asOf time.Time) (float64, error)
	ListItems(ctx context.Context) ([]ledger.Item, error)
	StockSnapshot(ctx context.Context, asOf time.Time) (map[string]int, error)
	TopSellers(ctx context.Context, asOf time.Time, limit int) ([]ledger.ItemSales, error)
}

// Service guards cash and produces financial reports.
type Service struct {
	repo   LedgerPort
	margin float64
}

// NewService builds Service. A non-positive margin falls back to the default.
func NewService(repo LedgerPort, margin float64) *Service {
	if margin <= 0 || margin >= 1 {
		margin = DefaultSafetyMargin
	}
	return &Service{repo: repo, margin: margin}
}

// Balance returns the derived cash balance as of a date.
func (s *Service) Balance(ctx context.Context, asOf time.Time) (float64, error) {
	return s.repo.CashBalance(ctx, asOf)
}

// Approve decides whether a purchase keeps the cash reserve intact:
// approved iff balance - cost >= margin * balance. The boundary case
// cost = (1-margin) * balance approves.
func (s *Service) Approve(ctx context.Context, cost float64, asOf time.Time) (Approval, error) {
	if cost < 0 {
		return Approval{}, errors.New("finance: purchase cost must be >= 0")
	}
	balance, err := s.repo.CashBalance(ctx, asOf)
	if err != nil {
		return Approval{}, err
	}
	reserve := pricing.RoundCents(balance * s.margin)
	projected := pricing.RoundCents(balance - cost)
	return Approval{
		Approved:         projected >= reserve,
		PurchaseAmount:   pricing.RoundCents(cost),
		CurrentBalance:   pricing.RoundCents(balance),
		ProjectedBalance: projected,
		MinimumReserve:   reserve,
		SafetyMargin:     s.margin,
	}, nil
}

// Report assembles cash, inventory valuation and top sellers as of a date.
func (s *Service) Report(ctx context.Context, asOf time.Time) (Report, error) {
	var (
		balance float64
		items   []ledger.Item
		stocks  map[string]int
		sellers []ledger.ItemSales
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		balance, err = s.repo.CashBalance(gctx, asOf)
		return err
	})
	g.Go(func() (err error) {
		items, err = s.repo.ListItems(gctx)
		return err
	})
	g.Go(func() (err error) {
		stocks, err = s.repo.StockSnapshot(gctx, asOf)
		return err
	})
	g.Go(func() (err error) {
		sellers, err = s.repo.TopSellers(gctx, asOf, 5)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{
		AsOf:        asOf,
		CashBalance: pricing.RoundCents(balance),
	}
	for _, item := range items {
		stock := stocks[item.Name]
		value := pricing.RoundCents(float64(stock) * item.UnitPrice)
		report.InventoryValue += value
		report.InventorySummary = append(report.InventorySummary, ItemValuation{
			ItemName:  item.Name,
			Stock:     stock,
			UnitPrice: item.UnitPrice,
			Value:     value,
		})
	}
	report.InventoryValue = pricing.RoundCents(report.InventoryValue)
	report.TotalAssets = pricing.RoundCents(report.CashBalance + report.InventoryValue)
	for _, s := range sellers {
		report.TopSellers = append(report.TopSellers, TopSeller{
			ItemName:     s.ItemName,
			TotalUnits:   s.TotalUnits,
			TotalRevenue: pricing.RoundCents(s.TotalRevenue),
		})
	}
	return report, nil
}

var _ LedgerPort = (*ledger.Store)(nil)
