package workflow

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/munderdifflin/paperledger/internal/finance"
	"github.com/munderdifflin/paperledger/internal/ledger"
	"github.com/munderdifflin/paperledger/internal/orders"
	"github.com/munderdifflin/paperledger/internal/shared"
)

type fakeInventory struct {
	items  []ledger.Item
	stocks map[string]int
}

func (f *fakeInventory) Resolve(ctx context.Context, name string) (ledger.Item, error) {
	for _, item := range f.items {
		if item.Name == name {
			return item, nil
		}
	}
	for _, item := range f.items {
		if strings.Contains(strings.ToLower(item.Name), strings.ToLower(name)) {
			return item, nil
		}
	}
	return ledger.Item{}, ledger.ErrItemNotFound
}

func (f *fakeInventory) StockLevel(ctx context.Context, name string, asOf time.Time) (int, error) {
	return f.stocks[name], nil
}

type fakeRecorder struct {
	inv      *fakeInventory
	nextID   int64
	sales    []orders.SaleInput
	restocks []orders.RestockInput
	usedKeys map[string]bool
}

func (f *fakeRecorder) claimKey(key string) error {
	if key == "" {
		return nil
	}
	if f.usedKeys == nil {
		f.usedKeys = make(map[string]bool)
	}
	if f.usedKeys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.usedKeys[key] = true
	return nil
}

func (f *fakeRecorder) RecordSale(ctx context.Context, input orders.SaleInput) (orders.Receipt, error) {
	if err := f.claimKey(input.IdempotencyKey); err != nil {
		return orders.Receipt{}, err
	}
	stock := f.inv.stocks[input.ItemName]
	if stock < input.Quantity {
		return orders.Receipt{}, ledger.ErrInsufficientStock
	}
	f.inv.stocks[input.ItemName] = stock - input.Quantity
	f.nextID++
	f.sales = append(f.sales, input)
	return orders.Receipt{
		TransactionID: f.nextID,
		Type:          "sale",
		ItemName:      input.ItemName,
		Quantity:      input.Quantity,
		Total:         input.Price,
		OccurredAt:    input.AsOf,
	}, nil
}

func (f *fakeRecorder) RecordRestock(ctx context.Context, input orders.RestockInput) (orders.Receipt, error) {
	if err := f.claimKey(input.IdempotencyKey); err != nil {
		return orders.Receipt{}, err
	}
	f.inv.stocks[input.ItemName] += input.Quantity
	f.nextID++
	f.restocks = append(f.restocks, input)
	return orders.Receipt{
		TransactionID: f.nextID,
		Type:          "stock_order",
		ItemName:      input.ItemName,
		Quantity:      input.Quantity,
		Total:         input.Cost,
		OccurredAt:    input.AsOf,
	}, nil
}

func (f *fakeRecorder) EvaluateRestock(ctx context.Context, itemName string, asOf time.Time) (orders.RestockAdvice, error) {
	item, err := f.inv.Resolve(ctx, itemName)
	if err != nil {
		return orders.RestockAdvice{}, err
	}
	stock := f.inv.stocks[itemName]
	advice := orders.RestockAdvice{
		ItemName:      itemName,
		CurrentStock:  stock,
		MinStockLevel: item.MinStockLevel,
		UnitPrice:     item.UnitPrice,
	}
	if stock < item.MinStockLevel {
		advice.NeedsRestock = true
		advice.RecommendedQty = item.MinStockLevel*2 - stock
		advice.EstimatedCost = float64(advice.RecommendedQty) * item.UnitPrice
	}
	return advice, nil
}

type fakeGuard struct {
	approve bool
}

func (f *fakeGuard) Approve(ctx context.Context, cost float64, asOf time.Time) (finance.Approval, error) {
	return finance.Approval{
		Approved:         f.approve,
		PurchaseAmount:   cost,
		ProjectedBalance: 100,
		MinimumReserve:   200,
	}, nil
}

func newFixture(approve bool) (*Service, *fakeInventory, *fakeRecorder) {
	inv := &fakeInventory{
		items: []ledger.Item{
			{Name: "A4 paper", Category: "paper", UnitPrice: 0.05, MinStockLevel: 100},
			{Name: "Glossy paper", Category: "specialty", UnitPrice: 0.20, MinStockLevel: 50},
		},
		stocks: map[string]int{"A4 paper": 2000, "Glossy paper": 60},
	}
	rec := &fakeRecorder{inv: inv}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(logger, inv, rec, &fakeGuard{approve: approve})
	return svc, inv, rec
}

var testDay = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestProcessQuote(t *testing.T) {
	svc, _, rec := newFixture(true)

	resp, err := svc.Process(context.Background(), Request{
		Type: RequestTypeQuote,
		Lines: []RequestLine{
			{Item: "A4 paper", Quantity: 600},
		},
		Date: testDay,
	})
	require.NoError(t, err)
	require.Equal(t, StatusFulfilled, resp.Status)
	// 600 units crosses into the 10% tier.
	require.Equal(t, 10.0, resp.DiscountPercent)
	require.Equal(t, 30.0, resp.Subtotal)
	require.Equal(t, 27.0, resp.Total)
	require.Equal(t, "$27.00", resp.TotalFormatted)
	require.NotNil(t, resp.DeliveryEstimate)
	require.Equal(t, 4, resp.DeliveryEstimate.LeadTimeDays)
	require.Empty(t, rec.sales, "a quote must not record transactions")
	require.Equal(t, []State{StateReceived, StateItemsResolved, StatePriced, StateResponded}, resp.Trace)
}

func TestProcessQuoteUnknownItemRejected(t *testing.T) {
	svc, _, _ := newFixture(true)

	resp, err := svc.Process(context.Background(), Request{
		Type:  RequestTypeQuote,
		Lines: []RequestLine{{Item: "construction paper", Quantity: 10}},
		Date:  testDay,
	})
	require.NoError(t, err)
	require.Equal(t, StatusRejected, resp.Status)
	require.Equal(t, LineRejected, resp.Lines[0].Status)
	require.Equal(t, "item not found in catalog", resp.Lines[0].Reason)
	require.Equal(t, []State{StateReceived, StateItemsResolved, StateResponded}, resp.Trace)
}

func TestProcessOrderFulfilled(t *testing.T) {
	svc, inv, rec := newFixture(true)

	resp, err := svc.Process(context.Background(), Request{
		Type: RequestTypeOrder,
		Lines: []RequestLine{
			{Item: "A4 paper", Quantity: 200},
		},
		Date: testDay,
	})
	require.NoError(t, err)
	require.Equal(t, StatusFulfilled, resp.Status)
	require.NotEmpty(t, resp.RequestID)
	require.Len(t, rec.sales, 1)
	require.NotEmpty(t, rec.sales[0].IdempotencyKey)
	require.Equal(t, 1800, inv.stocks["A4 paper"])
	require.Equal(t, 10.0, resp.Total)
	require.NotZero(t, resp.Lines[0].TransactionID)
	require.Contains(t, resp.Trace, StateTransacted)
	require.Contains(t, resp.Trace, StateRestockEvaluated)
	require.Equal(t, StateResponded, resp.Trace[len(resp.Trace)-1])
}

func TestProcessOrderDuplicateItemLines(t *testing.T) {
	svc, inv, rec := newFixture(true)

	resp, err := svc.Process(context.Background(), Request{
		Type: RequestTypeOrder,
		Lines: []RequestLine{
			{Item: "A4 paper", Quantity: 10},
			{Item: "A4 paper", Quantity: 20},
		},
		Date: testDay,
	})
	require.NoError(t, err)
	require.Equal(t, StatusFulfilled, resp.Status)
	require.Len(t, rec.sales, 2)
	require.NotEqual(t, rec.sales[0].IdempotencyKey, rec.sales[1].IdempotencyKey)
	require.Equal(t, 1970, inv.stocks["A4 paper"])
}

func TestProcessOrderRetrySameRequestID(t *testing.T) {
	svc, inv, rec := newFixture(true)
	req := Request{
		RequestID: "req-42",
		Type:      RequestTypeOrder,
		Lines:     []RequestLine{{Item: "A4 paper", Quantity: 100}},
		Date:      testDay,
	}

	first, err := svc.Process(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, StatusFulfilled, first.Status)
	require.Equal(t, "req-42", first.RequestID)
	require.Len(t, rec.sales, 1)

	// A retry under the same request ID must not book the sale again.
	second, err := svc.Process(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, second.Status)
	require.Equal(t, LineRejected, second.Lines[0].Status)
	require.Contains(t, second.Lines[0].Reason, "already processed")
	require.Len(t, rec.sales, 1)
	require.Equal(t, 1900, inv.stocks["A4 paper"])
}

func TestProcessOrderPartial(t *testing.T) {
	svc, _, rec := newFixture(true)

	resp, err := svc.Process(context.Background(), Request{
		Type: RequestTypeOrder,
		Lines: []RequestLine{
			{Item: "A4 paper", Quantity: 100},
			{Item: "Glossy paper", Quantity: 500},
		},
		Date: testDay,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPartial, resp.Status)
	require.Len(t, rec.sales, 1)
	require.Equal(t, LineFulfilled, resp.Lines[0].Status)
	require.Equal(t, LineRejected, resp.Lines[1].Status)
	require.Contains(t, resp.Lines[1].Reason, "insufficient stock")
}

func TestProcessOrderAllLinesRejected(t *testing.T) {
	svc, _, rec := newFixture(true)

	resp, err := svc.Process(context.Background(), Request{
		Type: RequestTypeOrder,
		Lines: []RequestLine{
			{Item: "Glossy paper", Quantity: 500},
		},
		Date: testDay,
	})
	require.NoError(t, err)
	require.Equal(t, StatusRejected, resp.Status)
	require.Empty(t, rec.sales)
	require.Equal(t, "no order line could be fulfilled", resp.FailureReason)
}

func TestProcessOrderTriggersRestock(t *testing.T) {
	svc, inv, rec := newFixture(true)

	// Selling 20 glossy drops stock to 40, under the minimum of 50.
	resp, err := svc.Process(context.Background(), Request{
		Type:  RequestTypeOrder,
		Lines: []RequestLine{{Item: "Glossy paper", Quantity: 20}},
		Date:  testDay,
	})
	require.NoError(t, err)
	require.Equal(t, StatusFulfilled, resp.Status)
	require.Len(t, resp.Restocks, 1)
	require.True(t, resp.Restocks[0].Needed)
	require.True(t, resp.Restocks[0].Approved)
	// Reorder restores twice the minimum: 100 - 40 = 60 units.
	require.Equal(t, 60, resp.Restocks[0].Quantity)
	require.Len(t, rec.restocks, 1)
	require.Equal(t, 100, inv.stocks["Glossy paper"])
	require.Contains(t, resp.Trace, StateRestockApproved)
}

func TestProcessOrderRestockDeclined(t *testing.T) {
	svc, inv, rec := newFixture(false)

	resp, err := svc.Process(context.Background(), Request{
		Type:  RequestTypeOrder,
		Lines: []RequestLine{{Item: "Glossy paper", Quantity: 20}},
		Date:  testDay,
	})
	require.NoError(t, err)
	require.Equal(t, StatusFulfilled, resp.Status, "a declined restock never fails the sale")
	require.Len(t, resp.Restocks, 1)
	require.True(t, resp.Restocks[0].Needed)
	require.False(t, resp.Restocks[0].Approved)
	require.Contains(t, resp.Restocks[0].Reason, "below reserve")
	require.Empty(t, rec.restocks)
	require.Equal(t, 40, inv.stocks["Glossy paper"])
	require.Contains(t, resp.Trace, StateRestockDeclined)
}

func TestProcessInquiry(t *testing.T) {
	svc, _, rec := newFixture(true)

	resp, err := svc.Process(context.Background(), Request{
		Type: RequestTypeInquiry,
		Lines: []RequestLine{
			{Item: "glossy"},
			{Item: "construction paper"},
		},
		Date: testDay,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPartial, resp.Status)
	require.Equal(t, "Glossy paper", resp.Lines[0].ItemName)
	require.Equal(t, 60, resp.Lines[0].Stock)
	require.Equal(t, LineRejected, resp.Lines[1].Status)
	require.Empty(t, rec.sales)
}

func TestProcessRejectsUnknownTypeAndEmptyRequest(t *testing.T) {
	svc, _, _ := newFixture(true)

	_, err := svc.Process(context.Background(), Request{Type: RequestType("refund"), Lines: []RequestLine{{Item: "A4 paper", Quantity: 1}}})
	require.Error(t, err)

	_, err = svc.Process(context.Background(), Request{Type: RequestTypeQuote})
	require.Error(t, err)
}

func TestMachineRejectsIllegalTransition(t *testing.T) {
	m := newMachine()
	require.NoError(t, m.to(StateItemsResolved))
	require.Error(t, m.to(StateTransacted), "pricing cannot be skipped")
	require.NoError(t, m.to(StatePriced))
}
