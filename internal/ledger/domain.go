package ledger

import (
	"errors"
	"time"
)

// TransactionType enumerates supported ledger movements.
type TransactionType string

const (
	// TransactionTypeSale represents a customer sale. Decreases stock, increases cash.
	TransactionTypeSale TransactionType = "sale"
	// TransactionTypeStockOrder represents a supplier purchase. Increases stock, decreases cash.
	TransactionTypeStockOrder TransactionType = "stock_order"
)

// Item is a catalog row. Current stock is not stored here: it is derived
// from the append-only transactions table as of a date.
type Item struct {
	Name          string
	Category      string
	UnitPrice     float64
	MinStockLevel int
}

// Transaction is one immutable ledger movement.
type Transaction struct {
	ID         int64
	Type       TransactionType
	ItemName   string
	Units      int
	Price      float64
	OccurredAt time.Time
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	ItemName string
	Type     TransactionType
	Until    time.Time
	Limit    int
}

// QuoteHistoryEntry is a past quote kept for pricing reference. Read-only.
type QuoteHistoryEntry struct {
	OriginalRequest string
	TotalAmount     float64
	Explanation     string
	JobType         string
	OrderSize       string
	EventType       string
	OrderDate       time.Time
}

// LowStockItem pairs a catalog item with its derived stock level.
type LowStockItem struct {
	Item
	Stock int
}

// ItemSales aggregates sale volume and revenue per item.
type ItemSales struct {
	ItemName     string
	TotalUnits   int
	TotalRevenue float64
}

// ErrItemNotFound indicates the item is not in the catalog.
var ErrItemNotFound = errors.New("ledger: item not found")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("ledger: quantity must be positive")

// ErrInsufficientStock triggered when a sale would leave stock negative.
var ErrInsufficientStock = errors.New("ledger: insufficient stock")

// ErrInsufficientFunds triggered when a purchase fails the cash safety margin.
var ErrInsufficientFunds = errors.New("ledger: insufficient funds")

// ParseAsOf accepts an RFC3339 timestamp or a bare YYYY-MM-DD date. A bare
// date is widened to the end of that day so same-day movements count.
func ParseAsOf(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return EndOfDay(t), nil
}

// EndOfDay returns 23:59:59 of the given day in its location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
