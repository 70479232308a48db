package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/munderdifflin/paperledger/internal/ledger"
	"github.com/munderdifflin/paperledger/internal/orders"
)

type fakeLister struct {
	items []ledger.LowStockItem
}

func (f *fakeLister) ItemsBelowMinimum(ctx context.Context, asOf time.Time) ([]ledger.LowStockItem, error) {
	return f.items, nil
}

type fakeRecorder struct {
	rejectFunds bool
	recorded    []orders.RestockInput
}

func (f *fakeRecorder) EvaluateRestock(ctx context.Context, itemName string, asOf time.Time) (orders.RestockAdvice, error) {
	switch itemName {
	case "A4 paper":
		return orders.RestockAdvice{
			ItemName:       itemName,
			CurrentStock:   40,
			MinStockLevel:  100,
			NeedsRestock:   true,
			RecommendedQty: 160,
			EstimatedCost:  8.0,
			UnitPrice:      0.05,
		}, nil
	default:
		return orders.RestockAdvice{ItemName: itemName, CurrentStock: 500, MinStockLevel: 100}, nil
	}
}

func (f *fakeRecorder) RecordRestock(ctx context.Context, input orders.RestockInput) (orders.Receipt, error) {
	if f.rejectFunds {
		return orders.Receipt{}, ledger.ErrInsufficientFunds
	}
	f.recorded = append(f.recorded, input)
	return orders.Receipt{TransactionID: int64(len(f.recorded)), ItemName: input.ItemName, Quantity: input.Quantity}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLowStockScanRecordsRestocks(t *testing.T) {
	lister := &fakeLister{items: []ledger.LowStockItem{
		{Item: ledger.Item{Name: "A4 paper", UnitPrice: 0.05, MinStockLevel: 100}, Stock: 40},
		{Item: ledger.Item{Name: "Cardstock", UnitPrice: 0.15, MinStockLevel: 100}, Stock: 500},
	}}
	recorder := &fakeRecorder{}
	job := NewLowStockScanJob(lister, recorder, discardLogger())

	asOf := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)
	task, err := NewLowStockScanTask(asOf)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, recorder.recorded, 1)
	require.Equal(t, "A4 paper", recorder.recorded[0].ItemName)
	require.Equal(t, 160, recorder.recorded[0].Quantity)
	require.Equal(t, 8.0, recorder.recorded[0].Cost)
	require.Equal(t, "low-stock-scan:A4 paper:2025-06-01", recorder.recorded[0].IdempotencyKey)
}

func TestLowStockScanSurvivesGuardRejection(t *testing.T) {
	lister := &fakeLister{items: []ledger.LowStockItem{
		{Item: ledger.Item{Name: "A4 paper", UnitPrice: 0.05, MinStockLevel: 100}, Stock: 40},
	}}
	recorder := &fakeRecorder{rejectFunds: true}
	job := NewLowStockScanJob(lister, recorder, discardLogger())

	task, err := NewLowStockScanTask(time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task), "a rejected purchase must not fail the sweep")
	require.Empty(t, recorder.recorded)
}

func TestLowStockScanSkipsBadPayload(t *testing.T) {
	job := NewLowStockScanJob(&fakeLister{}, &fakeRecorder{}, discardLogger())

	task := asynq.NewTask(TaskLowStockScan, []byte("not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
