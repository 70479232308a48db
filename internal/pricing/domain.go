package pricing

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// QuoteLine is one priced request line.
type QuoteLine struct {
	ItemName  string  `json:"item_name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// BreakdownLine is the per-item calculation inside a quote.
type BreakdownLine struct {
	ItemName  string  `json:"item_name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// Quote is the result of pricing an order with the bulk discount applied.
type Quote struct {
	Subtotal        float64         `json:"subtotal"`
	DiscountPercent float64         `json:"discount_percent"`
	DiscountAmount  float64         `json:"discount_amount"`
	Total           float64         `json:"total"`
	TotalUnits      int             `json:"total_units"`
	Breakdown       []BreakdownLine `json:"breakdown"`
}

// Discount tiers keyed on total units across all lines. Crossing a
// threshold discounts the entire order, not the marginal units.
const (
	tierOneMaxUnits = 500
	tierTwoMaxUnits = 1000

	tierTwoPercent   = 10.0
	tierThreePercent = 15.0
)

// DiscountPercent returns the bulk discount tier for a unit count.
func DiscountPercent(totalUnits int) float64 {
	switch {
	case totalUnits <= tierOneMaxUnits:
		return 0
	case totalUnits <= tierTwoMaxUnits:
		return tierTwoPercent
	default:
		return tierThreePercent
	}
}

// RoundCents rounds a monetary amount to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

var moneyPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatAmount renders a monetary value for customer-facing responses,
// e.g. 1234.5 -> "$1,234.50".
func FormatAmount(v float64) string {
	return moneyPrinter.Sprintf("$%v", number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}
