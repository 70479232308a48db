package orders

import "time"

// SaleInput describes a customer sale to record. Price is the total sale
// amount; when zero the tiered list price for the quantity is used.
type SaleInput struct {
	ItemName       string
	Quantity       int
	Price          float64
	AsOf           time.Time
	IdempotencyKey string
}

// RestockInput describes a supplier stock order to record. Cost is the
// total purchase amount; when zero it defaults to quantity x unit price.
type RestockInput struct {
	ItemName       string
	Quantity       int
	Cost           float64
	AsOf           time.Time
	IdempotencyKey string
}

// Receipt confirms a recorded transaction.
type Receipt struct {
	TransactionID int64     `json:"transaction_id"`
	Type          string    `json:"type"`
	ItemName      string    `json:"item_name"`
	Quantity      int       `json:"quantity"`
	Total         float64   `json:"total"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RestockAdvice reports whether an item has fallen below its minimum and
// what reorder would bring it back to twice the minimum.
type RestockAdvice struct {
	ItemName       string  `json:"item_name"`
	CurrentStock   int     `json:"current_stock"`
	MinStockLevel  int     `json:"min_stock_level"`
	NeedsRestock   bool    `json:"needs_restock"`
	RecommendedQty int     `json:"recommended_qty"`
	EstimatedCost  float64 `json:"estimated_cost"`
	UnitPrice      float64 `json:"unit_price"`
}

// DeliveryEstimate is the supplier lead time for an order quantity.
type DeliveryEstimate struct {
	OrderDate    time.Time `json:"order_date"`
	DeliveryDate time.Time `json:"delivery_date"`
	LeadTimeDays int       `json:"lead_time_days"`
	Quantity     int       `json:"quantity"`
}
