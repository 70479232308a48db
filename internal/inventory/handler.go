package inventory

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/munderdifflin/paperledger/internal/ledger"
	"github.com/munderdifflin/paperledger/internal/platform/httpx"
)

// Handler wires HTTP endpoints for inventory lookups.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock", h.handleStock)
	r.Get("/snapshot", h.handleSnapshot)
	r.Get("/catalog", h.handleCatalog)
	r.Get("/search", h.handleSearch)
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if item == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item query parameter required")
		return
	}
	asOf, ok := httpx.AsOfParam(w, r)
	if !ok {
		return
	}
	stock, err := h.service.StockLevel(r.Context(), item, asOf)
	if err != nil {
		h.logger.Error("stock level", slog.String("item", item), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item_name":     item,
		"current_stock": stock,
		"as_of":         asOf,
	})
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	asOf, ok := httpx.AsOfParam(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.Snapshot(r.Context(), asOf)
	if err != nil {
		h.logger.Error("stock snapshot", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"as_of": asOf,
		"stock": snapshot,
	})
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Catalog(r.Context())
	if err != nil {
		h.logger.Error("catalog", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, itemsPayload(items))
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		items []ledger.Item
		err   error
	)
	switch {
	case strings.TrimSpace(q.Get("category")) != "":
		items, err = h.service.FindByCategory(r.Context(), q.Get("category"))
	case strings.TrimSpace(q.Get("q")) != "":
		items, err = h.service.Search(r.Context(), q.Get("q"))
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "q or category query parameter required")
		return
	}
	if err != nil {
		h.logger.Error("search", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, itemsPayload(items))
}

type itemView struct {
	ItemName      string  `json:"item_name"`
	Category      string  `json:"category"`
	UnitPrice     float64 `json:"unit_price"`
	MinStockLevel int     `json:"min_stock_level"`
}

func itemsPayload(items []ledger.Item) []itemView {
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, itemView{
			ItemName:      item.Name,
			Category:      item.Category,
			UnitPrice:     item.UnitPrice,
			MinStockLevel: item.MinStockLevel,
		})
	}
	return views
}
