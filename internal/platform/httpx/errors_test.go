package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/munderdifflin/paperledger/internal/ledger"
	"github.com/munderdifflin/paperledger/internal/shared"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ledger.ErrItemNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", ledger.ErrInvalidQuantity), http.StatusBadRequest},
		{ledger.ErrInsufficientStock, http.StatusConflict},
		{ledger.ErrInsufficientFunds, http.StatusConflict},
		{shared.ErrIdempotencyConflict, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code)

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
		require.Equal(t, tc.status, problem.Status)
	}
}
