package workflow

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/munderdifflin/paperledger/internal/ledger"
	"github.com/munderdifflin/paperledger/internal/platform/httpx"
)

// Handler accepts resolved customer requests and runs them through the
// sequencer.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs workflow handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers workflow routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/requests", h.handleRequest)
}

type requestPayload struct {
	Type  string        `json:"type" validate:"required,oneof=quote order inquiry"`
	Lines []linePayload `json:"lines" validate:"required,min=1,dive"`
	Date  string        `json:"date" validate:"omitempty"`
}

type linePayload struct {
	Item     string `json:"item" validate:"required"`
	Quantity int    `json:"quantity" validate:"omitempty,gte=0"`
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	var payload requestPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date := time.Now().UTC()
	if payload.Date != "" {
		parsed, err := ledger.ParseAsOf(payload.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be RFC3339 or YYYY-MM-DD")
			return
		}
		date = parsed
	}

	req := Request{
		RequestID: chimw.GetReqID(r.Context()),
		Type:      RequestType(payload.Type),
		Date:      date,
	}
	for _, line := range payload.Lines {
		req.Lines = append(req.Lines, RequestLine{Item: line.Item, Quantity: line.Quantity})
	}

	resp, err := h.service.Process(r.Context(), req)
	if err != nil {
		h.logger.Error("process request", slog.String("type", payload.Type), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}
