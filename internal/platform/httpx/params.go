package httpx

import (
	"net/http"
	"time"

	"github.com/munderdifflin/paperledger/internal/ledger"
)

// AsOfParam reads the as_of query parameter, defaulting to now. On a
// malformed value it writes a problem response and reports false.
func AsOfParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Now().UTC(), true
	}
	asOf, err := ledger.ParseAsOf(raw)
	if err != nil {
		Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be RFC3339 or YYYY-MM-DD")
		return time.Time{}, false
	}
	return asOf, true
}
