package pricing

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/munderdifflin/paperledger/internal/platform/httpx"
)

// Handler wires HTTP endpoints for quote computation and history.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs pricing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers pricing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleQuote)
	r.Get("/history", h.handleHistory)
}

type quoteRequest struct {
	Lines []quoteRequestLine `json:"lines" validate:"required,min=1,dive"`
}

type quoteRequestLine struct {
	ItemName  string  `json:"item_name" validate:"required"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"required,gt=0"`
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lines := make([]QuoteLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, QuoteLine{
			ItemName:  line.ItemName,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	quote, err := ComputeQuote(lines)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	terms := strings.FieldsFunc(q.Get("q"), func(r rune) bool { return r == ',' || r == ' ' })
	if len(terms) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "q query parameter required")
		return
	}
	limit := 5
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := h.service.History(r.Context(), terms, limit)
	if err != nil {
		h.logger.Error("quote history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"terms":   terms,
		"results": entries,
	})
}
