package finance

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

func newTestRouter(t *testing.T, balance float64) chi.Router {
	t.Helper()
	svc := NewService(&memoryLedger{balance: balance}, 0.20)
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	r.Route("/finance", handler.MountRoutes)
	return r
}

func postApproval(t *testing.T, router chi.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/finance/approvals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleApprovalZeroCost(t *testing.T) {
	router := newTestRouter(t, 1000)

	// A zero-cost check is a valid balance probe, not a validation error.
	rec := postApproval(t, router, `{"purchase_amount": 0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var approval Approval
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approval))
	require.True(t, approval.Approved)
	require.Equal(t, 1000.0, approval.CurrentBalance)
}

func TestHandleApprovalRejectsNegativeCost(t *testing.T) {
	router := newTestRouter(t, 1000)

	rec := postApproval(t, router, `{"purchase_amount": -5}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleApprovalOverReserve(t *testing.T) {
	router := newTestRouter(t, 1000)

	rec := postApproval(t, router, `{"purchase_amount": 850}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var approval Approval
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approval))
	require.False(t, approval.Approved)
}
