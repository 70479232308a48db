package orders

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/munderdifflin/paperledger/internal/ledger"
	"github.com/munderdifflin/paperledger/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the transaction recorder.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs orders handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales", h.handleSale)
	r.Post("/restocks", h.handleRestock)
	r.Get("/restock-check", h.handleRestockCheck)
	r.Get("/delivery-estimate", h.handleDeliveryEstimate)
	r.Get("/transactions", h.handleTransactions)
}

type transactionRequest struct {
	ItemName string  `json:"item_name" validate:"required"`
	Quantity int     `json:"quantity" validate:"required,gt=0"`
	Price    float64 `json:"price" validate:"omitempty,gt=0"`
	Date     string  `json:"date" validate:"omitempty"`
}

func (h *Handler) decodeTransaction(w http.ResponseWriter, r *http.Request) (transactionRequest, time.Time, bool) {
	var req transactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return req, time.Time{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, time.Time{}, false
	}
	asOf := time.Now().UTC()
	if req.Date != "" {
		parsed, err := ledger.ParseAsOf(req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be RFC3339 or YYYY-MM-DD")
			return req, time.Time{}, false
		}
		asOf = parsed
	}
	return req, asOf, true
}

func (h *Handler) handleSale(w http.ResponseWriter, r *http.Request) {
	req, asOf, ok := h.decodeTransaction(w, r)
	if !ok {
		return
	}
	receipt, err := h.service.RecordSale(r.Context(), SaleInput{
		ItemName:       req.ItemName,
		Quantity:       req.Quantity,
		Price:          req.Price,
		AsOf:           asOf,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.logger.Error("record sale", slog.String("item", req.ItemName), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) handleRestock(w http.ResponseWriter, r *http.Request) {
	req, asOf, ok := h.decodeTransaction(w, r)
	if !ok {
		return
	}
	receipt, err := h.service.RecordRestock(r.Context(), RestockInput{
		ItemName:       req.ItemName,
		Quantity:       req.Quantity,
		Cost:           req.Price,
		AsOf:           asOf,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.logger.Error("record restock", slog.String("item", req.ItemName), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) handleRestockCheck(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if item == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item query parameter required")
		return
	}
	asOf, ok := httpx.AsOfParam(w, r)
	if !ok {
		return
	}
	advice, err := h.service.EvaluateRestock(r.Context(), item, asOf)
	if err != nil {
		h.logger.Error("restock check", slog.String("item", item), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, advice)
}

func (h *Handler) handleDeliveryEstimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	qty, err := strconv.Atoi(q.Get("quantity"))
	if err != nil || qty <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "quantity must be a positive integer")
		return
	}
	orderDate := time.Now().UTC()
	if raw := q.Get("date"); raw != "" {
		parsed, err := ledger.ParseAsOf(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be RFC3339 or YYYY-MM-DD")
			return
		}
		orderDate = parsed
	}
	httpx.JSON(w, http.StatusOK, EstimateDelivery(orderDate, qty))
}

type transactionView struct {
	ID         int64     `json:"id"`
	Type       string    `json:"type"`
	ItemName   string    `json:"item_name"`
	Units      int       `json:"units"`
	Price      float64   `json:"price"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.TransactionFilter{
		ItemName: q.Get("item"),
		Type:     ledger.TransactionType(q.Get("type")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	until, ok := httpx.AsOfParam(w, r)
	if !ok {
		return
	}
	filter.Until = until

	txs, err := h.service.Transactions(r.Context(), filter)
	if err != nil {
		h.logger.Error("list transactions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, transactionView{
			ID:         tx.ID,
			Type:       string(tx.Type),
			ItemName:   tx.ItemName,
			Units:      tx.Units,
			Price:      tx.Price,
			OccurredAt: tx.OccurredAt,
		})
	}
	httpx.JSON(w, http.StatusOK, views)
}
