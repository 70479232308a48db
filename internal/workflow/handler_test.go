package workflow

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	svc, _, _ := newFixture(true)
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	r.Route("/workflow", handler.MountRoutes)
	return r
}

func postRequest(t *testing.T, router chi.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/workflow/requests", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleRequestQuote(t *testing.T) {
	router := newTestRouter(t)

	rec := postRequest(t, router, `{
		"type": "quote",
		"lines": [{"item": "A4 paper", "quantity": 600}],
		"date": "2025-06-01"
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, StatusFulfilled, resp.Status)
	require.Equal(t, 10.0, resp.DiscountPercent)
	require.Equal(t, "$27.00", resp.TotalFormatted)
}

func TestHandleRequestValidation(t *testing.T) {
	router := newTestRouter(t)

	rec := postRequest(t, router, `{"type": "refund", "lines": [{"item": "A4 paper"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postRequest(t, router, `{"type": "quote", "lines": []}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postRequest(t, router, `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRequestBadDate(t *testing.T) {
	router := newTestRouter(t)

	rec := postRequest(t, router, `{
		"type": "quote",
		"lines": [{"item": "A4 paper", "quantity": 10}],
		"date": "next tuesday"
	}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
