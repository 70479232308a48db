package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/munderdifflin/paperledger/internal/finance"
	"github.com/munderdifflin/paperledger/internal/ledger"
	"github.com/munderdifflin/paperledger/internal/orders"
	"github.com/munderdifflin/paperledger/internal/pricing"
	"github.com/munderdifflin/paperledger/internal/shared"
)

// InventoryPort resolves items and reads stock for the sequencer.
type InventoryPort interface {
	Resolve(ctx context.Context, name string) (ledger.Item, error)
	StockLevel(ctx context.Context, name string, asOf time.Time) (int, error)
}

// RecorderPort records sales and restocks.
type RecorderPort interface {
	RecordSale(ctx context.Context, input orders.SaleInput) (orders.Receipt, error)
	RecordRestock(ctx context.Context, input orders.RestockInput) (orders.Receipt, error)
	EvaluateRestock(ctx context.Context, itemName string, asOf time.Time) (orders.RestockAdvice, error)
}

// GuardPort gates restock spending.
type GuardPort interface {
	Approve(ctx context.Context, cost float64, asOf time.Time) (finance.Approval, error)
}

// Service runs each request through the fixed pipeline: resolve items,
// price, then for orders transact and evaluate restocks. Domain failures
// become response statuses; only infrastructure errors propagate.
type Service struct {
	logger    *slog.Logger
	inventory InventoryPort
	recorder  RecorderPort
	guard     GuardPort
}

// NewService builds Service.
func NewService(logger *slog.Logger, inv InventoryPort, recorder RecorderPort, guard GuardPort) *Service {
	return &Service{logger: logger, inventory: inv, recorder: recorder, guard: guard}
}

// Process handles one request to completion.
func (s *Service) Process(ctx context.Context, req Request) (Response, error) {
	if len(req.Lines) == 0 {
		return Response{}, errors.New("workflow: request has no lines")
	}
	asOf := req.Date
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	var resp Response
	var err error
	switch req.Type {
	case RequestTypeQuote:
		resp, err = s.processQuote(ctx, req, asOf)
	case RequestTypeOrder:
		resp, err = s.processOrder(ctx, req, asOf, requestID)
	case RequestTypeInquiry:
		resp, err = s.processInquiry(ctx, req, asOf)
	default:
		return Response{}, fmt.Errorf("workflow: unknown request type %q", req.Type)
	}
	if err != nil {
		return Response{}, err
	}
	resp.RequestID = requestID
	return resp, nil
}

// lineKey derives a deterministic idempotency key for one recorded
// movement. Keys are scoped to the request ID: a request retried under
// the same ID surfaces per-line conflicts instead of double-booking.
func lineKey(kind, requestID, ref string) string {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%s:%s", kind, requestID, ref))).String()
}

// resolveLines maps requested names onto catalog items. Lines that cannot
// be resolved, or carry a non-positive quantity, are rejected in place.
func (s *Service) resolveLines(ctx context.Context, req Request, needQty bool) ([]LineResult, []ledger.Item, error) {
	results := make([]LineResult, len(req.Lines))
	items := make([]ledger.Item, len(req.Lines))
	for i, line := range req.Lines {
		results[i] = LineResult{RequestedName: line.Item, Quantity: line.Quantity}
		if needQty && line.Quantity <= 0 {
			results[i].Status = LineRejected
			results[i].Reason = "quantity must be positive"
			continue
		}
		item, err := s.inventory.Resolve(ctx, line.Item)
		if err != nil {
			if errors.Is(err, ledger.ErrItemNotFound) {
				results[i].Status = LineRejected
				results[i].Reason = "item not found in catalog"
				continue
			}
			return nil, nil, err
		}
		items[i] = item
		results[i].ItemName = item.Name
		results[i].UnitPrice = item.UnitPrice
		results[i].Status = LineFulfilled
	}
	return results, items, nil
}

func (s *Service) processQuote(ctx context.Context, req Request, asOf time.Time) (Response, error) {
	m := newMachine()
	results, items, err := s.resolveLines(ctx, req, true)
	if err != nil {
		return Response{}, err
	}
	if err := m.to(StateItemsResolved); err != nil {
		return Response{}, err
	}

	var lines []pricing.QuoteLine
	for i, res := range results {
		if res.Status != LineFulfilled {
			continue
		}
		stock, err := s.inventory.StockLevel(ctx, items[i].Name, asOf)
		if err != nil {
			return Response{}, err
		}
		results[i].Stock = stock
		lines = append(lines, pricing.QuoteLine{
			ItemName:  items[i].Name,
			Quantity:  res.Quantity,
			UnitPrice: items[i].UnitPrice,
		})
	}
	if len(lines) == 0 {
		return s.respond(m, Response{
			Status:        StatusRejected,
			Lines:         results,
			FailureReason: "no requested items could be resolved",
		})
	}

	quote, err := pricing.ComputeQuote(lines)
	if err != nil {
		return Response{}, err
	}
	if err := m.to(StatePriced); err != nil {
		return Response{}, err
	}
	applyQuote(results, quote)

	estimate := orders.EstimateDelivery(asOf, quote.TotalUnits)
	return s.respond(m, Response{
		Status:           overallStatus(results),
		Lines:            results,
		Subtotal:         quote.Subtotal,
		DiscountPercent:  quote.DiscountPercent,
		DiscountAmount:   quote.DiscountAmount,
		Total:            quote.Total,
		TotalFormatted:   pricing.FormatAmount(quote.Total),
		DeliveryEstimate: &estimate,
	})
}

func (s *Service) processInquiry(ctx context.Context, req Request, asOf time.Time) (Response, error) {
	m := newMachine()
	results, items, err := s.resolveLines(ctx, req, false)
	if err != nil {
		return Response{}, err
	}
	if err := m.to(StateItemsResolved); err != nil {
		return Response{}, err
	}
	for i, res := range results {
		if res.Status != LineFulfilled {
			continue
		}
		stock, err := s.inventory.StockLevel(ctx, items[i].Name, asOf)
		if err != nil {
			return Response{}, err
		}
		results[i].Stock = stock
	}
	resp := Response{Status: overallStatus(results), Lines: results}
	if resp.Status == StatusRejected {
		resp.FailureReason = "no requested items could be resolved"
	}
	return s.respond(m, resp)
}

func (s *Service) processOrder(ctx context.Context, req Request, asOf time.Time, requestID string) (Response, error) {
	m := newMachine()
	results, items, err := s.resolveLines(ctx, req, true)
	if err != nil {
		return Response{}, err
	}
	if err := m.to(StateItemsResolved); err != nil {
		return Response{}, err
	}

	// Stock availability check before pricing, so the discount tier is
	// computed over the units that will actually be sold.
	var lines []pricing.QuoteLine
	for i, res := range results {
		if res.Status != LineFulfilled {
			continue
		}
		stock, err := s.inventory.StockLevel(ctx, items[i].Name, asOf)
		if err != nil {
			return Response{}, err
		}
		results[i].Stock = stock
		if stock < res.Quantity {
			results[i].Status = LineRejected
			results[i].Reason = fmt.Sprintf("insufficient stock: %d available, %d requested", stock, res.Quantity)
			continue
		}
		lines = append(lines, pricing.QuoteLine{
			ItemName:  items[i].Name,
			Quantity:  res.Quantity,
			UnitPrice: items[i].UnitPrice,
		})
	}
	if len(lines) == 0 {
		return s.respond(m, Response{
			Status:        StatusRejected,
			Lines:         results,
			FailureReason: "no order line could be fulfilled",
		})
	}

	quote, err := pricing.ComputeQuote(lines)
	if err != nil {
		return Response{}, err
	}
	if err := m.to(StatePriced); err != nil {
		return Response{}, err
	}

	// Record each sale at its discounted share of the order total. The
	// recorder re-checks stock inside the ledger transaction.
	var soldUnits int
	var soldTotal, soldSubtotal float64
	var soldItems []string
	seenItems := make(map[string]bool)
	for i, res := range results {
		if res.Status != LineFulfilled {
			continue
		}
		gross := pricing.RoundCents(float64(res.Quantity) * items[i].UnitPrice)
		discounted := pricing.RoundCents(gross * (1 - quote.DiscountPercent/100))
		receipt, err := s.recorder.RecordSale(ctx, orders.SaleInput{
			ItemName:       items[i].Name,
			Quantity:       res.Quantity,
			Price:          discounted,
			AsOf:           asOf,
			IdempotencyKey: lineKey("sale", requestID, fmt.Sprintf("%d:%s", i, items[i].Name)),
		})
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientStock) || errors.Is(err, ledger.ErrInvalidQuantity) ||
				errors.Is(err, ledger.ErrItemNotFound) || errors.Is(err, shared.ErrIdempotencyConflict) {
				results[i].Status = LineRejected
				results[i].Reason = err.Error()
				continue
			}
			return Response{}, err
		}
		results[i].LineTotal = receipt.Total
		results[i].TransactionID = receipt.TransactionID
		soldUnits += res.Quantity
		soldTotal += receipt.Total
		soldSubtotal += gross
		if !seenItems[items[i].Name] {
			seenItems[items[i].Name] = true
			soldItems = append(soldItems, items[i].Name)
		}
	}
	if soldUnits == 0 {
		return s.respond(m, Response{
			Status:        StatusRejected,
			Lines:         results,
			FailureReason: "no order line could be fulfilled",
		})
	}
	if err := m.to(StateTransacted); err != nil {
		return Response{}, err
	}

	restocks, restockState, err := s.evaluateRestocks(ctx, soldItems, asOf, requestID)
	if err != nil {
		return Response{}, err
	}
	if err := m.to(StateRestockEvaluated); err != nil {
		return Response{}, err
	}
	if restockState != "" {
		if err := m.to(restockState); err != nil {
			return Response{}, err
		}
	}

	estimate := orders.EstimateDelivery(asOf, soldUnits)
	return s.respond(m, Response{
		Status:           overallStatus(results),
		Lines:            results,
		Subtotal:         pricing.RoundCents(soldSubtotal),
		DiscountPercent:  quote.DiscountPercent,
		DiscountAmount:   pricing.RoundCents(soldSubtotal - soldTotal),
		Total:            pricing.RoundCents(soldTotal),
		TotalFormatted:   pricing.FormatAmount(pricing.RoundCents(soldTotal)),
		DeliveryEstimate: &estimate,
		Restocks:         restocks,
	})
}

// evaluateRestocks runs the post-sale restock chain for each sold item:
// threshold check, guard approval, stock order. A declined approval is
// recorded and skipped, never fatal.
func (s *Service) evaluateRestocks(ctx context.Context, itemNames []string, asOf time.Time, requestID string) ([]RestockNote, State, error) {
	var notes []RestockNote
	var anyApproved, anyDeclined bool
	for _, name := range itemNames {
		advice, err := s.recorder.EvaluateRestock(ctx, name, asOf)
		if err != nil {
			return nil, "", err
		}
		if !advice.NeedsRestock {
			notes = append(notes, RestockNote{ItemName: name})
			continue
		}
		note := RestockNote{
			ItemName: name,
			Needed:   true,
			Quantity: advice.RecommendedQty,
			Cost:     advice.EstimatedCost,
		}
		approval, err := s.guard.Approve(ctx, advice.EstimatedCost, asOf)
		if err != nil {
			return nil, "", err
		}
		if !approval.Approved {
			anyDeclined = true
			note.Reason = fmt.Sprintf("purchase would leave %.2f, below reserve %.2f",
				approval.ProjectedBalance, approval.MinimumReserve)
			notes = append(notes, note)
			s.logger.Info("restock declined by financial guard",
				slog.String("item", name), slog.Float64("cost", advice.EstimatedCost))
			continue
		}
		receipt, err := s.recorder.RecordRestock(ctx, orders.RestockInput{
			ItemName:       name,
			Quantity:       advice.RecommendedQty,
			Cost:           advice.EstimatedCost,
			AsOf:           asOf,
			IdempotencyKey: lineKey("restock", requestID, name),
		})
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				anyDeclined = true
				note.Reason = err.Error()
				notes = append(notes, note)
				continue
			}
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				note.Reason = "stock order already recorded for this request"
				notes = append(notes, note)
				continue
			}
			return nil, "", err
		}
		anyApproved = true
		note.Approved = true
		delivery := orders.EstimateDelivery(asOf, receipt.Quantity)
		note.DeliveryDate = delivery.DeliveryDate.Format("2006-01-02")
		notes = append(notes, note)
	}
	switch {
	case anyApproved:
		return notes, StateRestockApproved, nil
	case anyDeclined:
		return notes, StateRestockDeclined, nil
	default:
		return notes, "", nil
	}
}

func (s *Service) respond(m *machine, resp Response) (Response, error) {
	if err := m.to(StateResponded); err != nil {
		return Response{}, err
	}
	resp.Trace = m.trace
	return resp, nil
}

func applyQuote(results []LineResult, quote pricing.Quote) {
	byName := make(map[string]pricing.BreakdownLine, len(quote.Breakdown))
	for _, line := range quote.Breakdown {
		byName[line.ItemName] = line
	}
	for i := range results {
		if results[i].Status != LineFulfilled {
			continue
		}
		if line, ok := byName[results[i].ItemName]; ok {
			results[i].LineTotal = line.LineTotal
		}
	}
}

func overallStatus(results []LineResult) Status {
	var ok, failed int
	for _, r := range results {
		if r.Status == LineFulfilled {
			ok++
		} else {
			failed++
		}
	}
	switch {
	case failed == 0:
		return StatusFulfilled
	case ok == 0:
		return StatusRejected
	default:
		return StatusPartial
	}
}
