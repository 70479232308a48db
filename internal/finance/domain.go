package finance

import "time"

// Approval is the guard's decision on a proposed purchase. A rejection is
// reported to the caller, never raised as an error here.
type Approval struct {
	Approved         bool    `json:"approved"`
	PurchaseAmount   float64 `json:"purchase_amount"`
	CurrentBalance   float64 `json:"current_balance"`
	ProjectedBalance float64 `json:"projected_balance"`
	MinimumReserve   float64 `json:"minimum_reserve"`
	SafetyMargin     float64 `json:"safety_margin"`
}

// ItemValuation is one line of the report's inventory summary.
type ItemValuation struct {
	ItemName  string  `json:"item_name"`
	Stock     int     `json:"stock"`
	UnitPrice float64 `json:"unit_price"`
	Value     float64 `json:"value"`
}

// TopSeller is one of the highest-revenue items.
type TopSeller struct {
	ItemName     string  `json:"item_name"`
	TotalUnits   int     `json:"total_units"`
	TotalRevenue float64 `json:"total_revenue"`
}

// Report summarises the company's financial position as of a date.
type Report struct {
	AsOf             time.Time       `json:"as_of"`
	CashBalance      float64         `json:"cash_balance"`
	InventoryValue   float64         `json:"inventory_value"`
	TotalAssets      float64         `json:"total_assets"`
	InventorySummary []ItemValuation `json:"inventory_summary"`
	TopSellers       []TopSeller     `json:"top_sellers"`
}
