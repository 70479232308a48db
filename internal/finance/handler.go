package finance

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/munderdifflin/paperledger/internal/ledger"
	"github.com/munderdifflin/paperledger/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the financial guard.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs finance handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balance", h.handleBalance)
	r.Post("/approvals", h.handleApproval)
	r.Get("/report", h.handleReport)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	asOf, ok := httpx.AsOfParam(w, r)
	if !ok {
		return
	}
	balance, err := h.service.Balance(r.Context(), asOf)
	if err != nil {
		h.logger.Error("cash balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"as_of":        asOf,
		"cash_balance": balance,
	})
}

type approvalRequest struct {
	PurchaseAmount float64 `json:"purchase_amount" validate:"gte=0"`
	Date           string  `json:"date" validate:"omitempty"`
}

func (h *Handler) handleApproval(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	asOf := time.Now().UTC()
	if req.Date != "" {
		parsed, err := ledger.ParseAsOf(req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be RFC3339 or YYYY-MM-DD")
			return
		}
		asOf = parsed
	}
	approval, err := h.service.Approve(r.Context(), req.PurchaseAmount, asOf)
	if err != nil {
		h.logger.Error("approve purchase", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, approval)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	asOf, ok := httpx.AsOfParam(w, r)
	if !ok {
		return
	}
	report, err := h.service.Report(r.Context(), asOf)
	if err != nil {
		h.logger.Error("financial report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
