package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/munderdifflin/paperledger/internal/ledger"
	"github.com/munderdifflin/paperledger/internal/orders"
	"github.com/munderdifflin/paperledger/internal/shared"
)

// LowStockLister finds catalog items whose stock fell below minimum.
type LowStockLister interface {
	ItemsBelowMinimum(ctx context.Context, asOf time.Time) ([]ledger.LowStockItem, error)
}

// RestockRecorder evaluates and records stock orders.
type RestockRecorder interface {
	EvaluateRestock(ctx context.Context, itemName string, asOf time.Time) (orders.RestockAdvice, error)
	RecordRestock(ctx context.Context, input orders.RestockInput) (orders.Receipt, error)
}

// LowStockScanJob walks items below their minimum and reorders through
// the recorder. A guard rejection skips the item; the sweep never fails
// because of one.
type LowStockScanJob struct {
	store    LowStockLister
	recorder RestockRecorder
	logger   *slog.Logger
}

// NewLowStockScanJob constructs the job.
func NewLowStockScanJob(store LowStockLister, recorder RestockRecorder, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{store: store, recorder: recorder, logger: logger}
}

// Handle processes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	items, err := j.store.ItemsBelowMinimum(ctx, asOf)
	if err != nil {
		return fmt.Errorf("jobs: list low stock items: %w", err)
	}
	for _, item := range items {
		advice, err := j.recorder.EvaluateRestock(ctx, item.Name, asOf)
		if err != nil {
			j.logger.Error("restock evaluation failed", slog.String("item", item.Name), slog.Any("error", err))
			continue
		}
		if !advice.NeedsRestock {
			continue
		}
		key := fmt.Sprintf("low-stock-scan:%s:%s", item.Name, asOf.Format("2006-01-02"))
		_, err = j.recorder.RecordRestock(ctx, orders.RestockInput{
			ItemName:       item.Name,
			Quantity:       advice.RecommendedQty,
			Cost:           advice.EstimatedCost,
			AsOf:           asOf,
			IdempotencyKey: key,
		})
		switch {
		case err == nil:
			j.logger.Info("restock recorded",
				slog.String("item", item.Name),
				slog.Int("qty", advice.RecommendedQty),
				slog.Float64("cost", advice.EstimatedCost))
		case errors.Is(err, ledger.ErrInsufficientFunds):
			j.logger.Warn("restock skipped by financial guard",
				slog.String("item", item.Name),
				slog.Float64("cost", advice.EstimatedCost))
		case errors.Is(err, shared.ErrIdempotencyConflict):
			j.logger.Info("restock already recorded for this sweep", slog.String("item", item.Name))
		default:
			j.logger.Error("restock failed", slog.String("item", item.Name), slog.Any("error", err))
		}
	}
	return nil
}
