// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/munderdifflin/paperledger/internal/ledger"
	"github.com/munderdifflin/paperledger/internal/shared"
)

// RespondError maps ledger domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrItemNotFound):
		Problem(w, http.StatusNotFound, "Item Not Found", err.Error())
	case errors.Is(err, ledger.ErrInvalidQuantity):
		Problem(w, http.StatusBadRequest, "Invalid Quantity", err.Error())
	case errors.Is(err, ledger.ErrInsufficientStock):
		Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		Problem(w, http.StatusConflict, "Insufficient Funds", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
