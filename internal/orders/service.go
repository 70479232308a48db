package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/munderdifflin/paperledger/internal/finance"
	"github.com/munderdifflin/paperledger/internal/ledger"
	"github.com/munderdifflin/paperledger/internal/pricing"
	"github.com/munderdifflin/paperledger/internal/shared"
)

// LedgerPort abstracts ledger store usage for the recorder.
type LedgerPort interface {
	GetItem(ctx context.Context, name string) (ledger.Item, error)
	StockLevel(ctx context.Context, name string, asOf time.Time) (int, error)
	ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error)
	WithTx(ctx context.Context, fn func(context.Context, ledger.TxStore) error) error
}

// GuardPort is the cash safety check consulted before restocks.
type GuardPort interface {
	Approve(ctx context.Context, cost float64, asOf time.Time) (finance.Approval, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service records sales and restocks against the shared ledger.
type Service struct {
	repo        LedgerPort
	guard       GuardPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
}

// NewService builds Service. Audit and idempotency are optional.
func NewService(repo LedgerPort, guard GuardPort, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, guard: guard, audit: audit, idempotency: idem}
}

// RecordSale appends a sale transaction. The stock level is re-derived
// inside the ledger transaction; a sale that would leave stock negative
// fails with ledger.ErrInsufficientStock and changes nothing.
func (s *Service) RecordSale(ctx context.Context, input SaleInput) (Receipt, error) {
	if strings.TrimSpace(input.ItemName) == "" {
		return Receipt{}, fmt.Errorf("orders: item name required")
	}
	if input.Quantity <= 0 {
		return Receipt{}, ledger.ErrInvalidQuantity
	}
	asOf := input.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	insertedKey, err := s.claimKey(ctx, input.IdempotencyKey)
	if err != nil {
		return Receipt{}, err
	}

	var receipt Receipt
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx ledger.TxStore) error {
		item, err := tx.GetItem(ctx, input.ItemName)
		if err != nil {
			return err
		}
		stock, err := tx.StockLevel(ctx, item.Name, asOf)
		if err != nil {
			return err
		}
		if stock < input.Quantity {
			return fmt.Errorf("%w: %s has %d units, requested %d",
				ledger.ErrInsufficientStock, item.Name, stock, input.Quantity)
		}
		total := input.Price
		if total <= 0 {
			quote, err := pricing.ComputeQuote([]pricing.QuoteLine{{
				ItemName:  item.Name,
				Quantity:  input.Quantity,
				UnitPrice: item.UnitPrice,
			}})
			if err != nil {
				return err
			}
			total = quote.Total
		}
		id, err := tx.InsertTransaction(ctx, ledger.Transaction{
			Type:       ledger.TransactionTypeSale,
			ItemName:   item.Name,
			Units:      input.Quantity,
			Price:      pricing.RoundCents(total),
			OccurredAt: asOf,
		})
		if err != nil {
			return err
		}
		receipt = Receipt{
			TransactionID: id,
			Type:          string(ledger.TransactionTypeSale),
			ItemName:      item.Name,
			Quantity:      input.Quantity,
			Total:         pricing.RoundCents(total),
			OccurredAt:    asOf,
		}
		return nil
	})
	if err != nil {
		s.releaseKey(ctx, insertedKey, input.IdempotencyKey)
		return Receipt{}, err
	}
	s.recordAudit(ctx, "orders:sale", receipt)
	return receipt, nil
}

// RecordRestock appends a stock-order transaction after the financial
// guard approves the spend. A rejected purchase fails with
// ledger.ErrInsufficientFunds and changes nothing.
func (s *Service) RecordRestock(ctx context.Context, input RestockInput) (Receipt, error) {
	if strings.TrimSpace(input.ItemName) == "" {
		return Receipt{}, fmt.Errorf("orders: item name required")
	}
	if input.Quantity <= 0 {
		return Receipt{}, ledger.ErrInvalidQuantity
	}
	asOf := input.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	item, err := s.repo.GetItem(ctx, input.ItemName)
	if err != nil {
		return Receipt{}, err
	}
	cost := input.Cost
	if cost <= 0 {
		cost = pricing.RoundCents(float64(input.Quantity) * item.UnitPrice)
	}
	approval, err := s.guard.Approve(ctx, cost, asOf)
	if err != nil {
		return Receipt{}, err
	}
	if !approval.Approved {
		return Receipt{}, fmt.Errorf("%w: purchase %.2f leaves %.2f, below reserve %.2f",
			ledger.ErrInsufficientFunds, approval.PurchaseAmount, approval.ProjectedBalance, approval.MinimumReserve)
	}

	insertedKey, err := s.claimKey(ctx, input.IdempotencyKey)
	if err != nil {
		return Receipt{}, err
	}

	var receipt Receipt
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx ledger.TxStore) error {
		id, err := tx.InsertTransaction(ctx, ledger.Transaction{
			Type:       ledger.TransactionTypeStockOrder,
			ItemName:   item.Name,
			Units:      input.Quantity,
			Price:      pricing.RoundCents(cost),
			OccurredAt: asOf,
		})
		if err != nil {
			return err
		}
		receipt = Receipt{
			TransactionID: id,
			Type:          string(ledger.TransactionTypeStockOrder),
			ItemName:      item.Name,
			Quantity:      input.Quantity,
			Total:         pricing.RoundCents(cost),
			OccurredAt:    asOf,
		}
		return nil
	})
	if err != nil {
		s.releaseKey(ctx, insertedKey, input.IdempotencyKey)
		return Receipt{}, err
	}
	s.recordAudit(ctx, "orders:stock_order", receipt)
	return receipt, nil
}

// Transactions lists recorded ledger movements, newest first.
func (s *Service) Transactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

// EvaluateRestock checks an item against its minimum stock threshold and
// recommends a reorder that restores twice the minimum.
func (s *Service) EvaluateRestock(ctx context.Context, itemName string, asOf time.Time) (RestockAdvice, error) {
	item, err := s.repo.GetItem(ctx, itemName)
	if err != nil {
		return RestockAdvice{}, err
	}
	stock, err := s.repo.StockLevel(ctx, item.Name, asOf)
	if err != nil {
		return RestockAdvice{}, err
	}
	advice := RestockAdvice{
		ItemName:      item.Name,
		CurrentStock:  stock,
		MinStockLevel: item.MinStockLevel,
		UnitPrice:     item.UnitPrice,
	}
	if stock < item.MinStockLevel {
		advice.NeedsRestock = true
		advice.RecommendedQty = item.MinStockLevel*2 - stock
		advice.EstimatedCost = pricing.RoundCents(float64(advice.RecommendedQty) * item.UnitPrice)
	}
	return advice, nil
}

// EstimateDelivery returns the supplier delivery date for a quantity.
// Lead times: same day up to 10 units, 1 day up to 100, 4 days up to
// 1000, 7 days beyond.
func EstimateDelivery(orderDate time.Time, quantity int) DeliveryEstimate {
	var days int
	switch {
	case quantity <= 10:
		days = 0
	case quantity <= 100:
		days = 1
	case quantity <= 1000:
		days = 4
	default:
		days = 7
	}
	return DeliveryEstimate{
		OrderDate:    orderDate,
		DeliveryDate: orderDate.AddDate(0, 0, days),
		LeadTimeDays: days,
		Quantity:     quantity,
	}
}

func (s *Service) claimKey(ctx context.Context, key string) (bool, error) {
	if s.idempotency == nil || key == "" {
		return false, nil
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, "orders"); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) releaseKey(ctx context.Context, inserted bool, key string) {
	if inserted {
		_ = s.idempotency.Delete(ctx, key)
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, receipt Receipt) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "ledger_tx",
		EntityID: fmt.Sprintf("%d", receipt.TransactionID),
		Meta: map[string]any{
			"item_name": receipt.ItemName,
			"units":     receipt.Quantity,
			"total":     receipt.Total,
		},
	})
}

var _ LedgerPort = (*ledger.Store)(nil)
