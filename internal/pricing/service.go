package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/munderdifflin/paperledger/internal/ledger"
)

// HistoryPort abstracts the quote history lookup in the ledger store.
type HistoryPort interface {
	SearchQuoteHistory(ctx context.Context, terms []string, limit int) ([]ledger.QuoteHistoryEntry, error)
}

// Service computes quotes and serves historical quote lookups.
type Service struct {
	history HistoryPort
	cache   *HistoryCache
}

// NewService builds Service. The cache may be nil, lookups then always
// hit the store.
func NewService(history HistoryPort, cache *HistoryCache) *Service {
	return &Service{history: history, cache: cache}
}

// ComputeQuote prices an order. The discount tier is chosen on the total
// units across all lines and applied to the whole subtotal.
func ComputeQuote(lines []QuoteLine) (Quote, error) {
	quote := Quote{Breakdown: make([]BreakdownLine, 0, len(lines))}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return Quote{}, fmt.Errorf("pricing: %q: %w", line.ItemName, ledger.ErrInvalidQuantity)
		}
		lineTotal := RoundCents(float64(line.Quantity) * line.UnitPrice)
		quote.Subtotal += lineTotal
		quote.TotalUnits += line.Quantity
		quote.Breakdown = append(quote.Breakdown, BreakdownLine{
			ItemName:  line.ItemName,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: lineTotal,
		})
	}
	quote.Subtotal = RoundCents(quote.Subtotal)
	quote.DiscountPercent = DiscountPercent(quote.TotalUnits)
	quote.DiscountAmount = RoundCents(quote.Subtotal * quote.DiscountPercent / 100)
	quote.Total = RoundCents(quote.Subtotal - quote.DiscountAmount)
	return quote, nil
}

// History searches past quotes matching the terms, newest first. Results
// are cached for a short period since history is read-only data.
func (s *Service) History(ctx context.Context, terms []string, limit int) ([]ledger.QuoteHistoryEntry, error) {
	cleaned := make([]string, 0, len(terms))
	for _, term := range terms {
		if t := strings.TrimSpace(term); t != "" {
			cleaned = append(cleaned, strings.ToLower(t))
		}
	}
	if limit <= 0 {
		limit = 5
	}
	if s.cache == nil {
		return s.history.SearchQuoteHistory(ctx, cleaned, limit)
	}
	key := historyKey(cleaned, limit)
	var entries []ledger.QuoteHistoryEntry
	err := s.cache.FetchJSON(ctx, key, &entries, func(ctx context.Context) (interface{}, error) {
		return s.history.SearchQuoteHistory(ctx, cleaned, limit)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func historyKey(terms []string, limit int) string {
	return fmt.Sprintf("pricing:history:%s:%d", strings.Join(terms, ","), limit)
}

// Compile-time check that the ledger store satisfies the port.
var _ HistoryPort = (*ledger.Store)(nil)
