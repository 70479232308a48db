package finance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/munderdifflin/paperledger/internal/ledger"
)

type memoryLedger struct {
	balance float64
	items   []ledger.Item
	stocks  map[string]int
	sellers []ledger.ItemSales
}

func (m *memoryLedger) CashBalance(ctx context.Context, asOf time.Time) (float64, error) {
	return m.balance, nil
}

func (m *memoryLedger) ListItems(ctx context.Context) ([]ledger.Item, error) {
	return m.items, nil
}

func (m *memoryLedger) StockSnapshot(ctx context.Context, asOf time.Time) (map[string]int, error) {
	return m.stocks, nil
}

func (m *memoryLedger) TopSellers(ctx context.Context, asOf time.Time, limit int) ([]ledger.ItemSales, error) {
	if limit < len(m.sellers) {
		return m.sellers[:limit], nil
	}
	return m.sellers, nil
}

func TestApproveKeepsReserve(t *testing.T) {
	svc := NewService(&memoryLedger{balance: 1000}, 0.20)

	approval, err := svc.Approve(context.Background(), 500, time.Now())
	require.NoError(t, err)
	require.True(t, approval.Approved)
	require.Equal(t, 1000.0, approval.CurrentBalance)
	require.Equal(t, 500.0, approval.ProjectedBalance)
	require.Equal(t, 200.0, approval.MinimumReserve)
}

func TestApproveBoundaryApproves(t *testing.T) {
	svc := NewService(&memoryLedger{balance: 1000}, 0.20)

	// Projected balance lands exactly on the reserve.
	approval, err := svc.Approve(context.Background(), 800, time.Now())
	require.NoError(t, err)
	require.True(t, approval.Approved)
	require.Equal(t, 200.0, approval.ProjectedBalance)
}

func TestApproveRejectsBelowReserve(t *testing.T) {
	svc := NewService(&memoryLedger{balance: 1000}, 0.20)

	approval, err := svc.Approve(context.Background(), 850, time.Now())
	require.NoError(t, err)
	require.False(t, approval.Approved)
	require.Equal(t, 150.0, approval.ProjectedBalance)
	require.Equal(t, 200.0, approval.MinimumReserve)
}

func TestApproveRejectsNegativeCost(t *testing.T) {
	svc := NewService(&memoryLedger{balance: 1000}, 0.20)

	_, err := svc.Approve(context.Background(), -1, time.Now())
	require.Error(t, err)
}

func TestNewServiceFallsBackToDefaultMargin(t *testing.T) {
	svc := NewService(&memoryLedger{balance: 100}, 0)
	approval, err := svc.Approve(context.Background(), 0, time.Now())
	require.NoError(t, err)
	require.Equal(t, DefaultSafetyMargin, approval.SafetyMargin)

	svc = NewService(&memoryLedger{balance: 100}, 1.5)
	approval, err = svc.Approve(context.Background(), 0, time.Now())
	require.NoError(t, err)
	require.Equal(t, DefaultSafetyMargin, approval.SafetyMargin)
}

func TestReportValuation(t *testing.T) {
	repo := &memoryLedger{
		balance: 2500.50,
		items: []ledger.Item{
			{Name: "A4 paper", Category: "paper", UnitPrice: 0.05, MinStockLevel: 100},
			{Name: "Cardstock", Category: "paper", UnitPrice: 0.15, MinStockLevel: 50},
		},
		stocks: map[string]int{"A4 paper": 1000, "Cardstock": 200},
		sellers: []ledger.ItemSales{
			{ItemName: "A4 paper", TotalUnits: 800, TotalRevenue: 44.0},
		},
	}
	svc := NewService(repo, 0.20)

	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	report, err := svc.Report(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, asOf, report.AsOf)
	require.Equal(t, 2500.50, report.CashBalance)
	// 1000*0.05 + 200*0.15 = 80.00
	require.Equal(t, 80.0, report.InventoryValue)
	require.Equal(t, 2580.50, report.TotalAssets)
	require.Len(t, report.InventorySummary, 2)
	require.Len(t, report.TopSellers, 1)
	require.Equal(t, 44.0, report.TopSellers[0].TotalRevenue)
}
