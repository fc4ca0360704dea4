package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/trackmock/trackmock/pkg/store"
)

// HeaderForceRateLimit is the per-request override that forces a 429 when the
// token is flagged for forced failures.
const HeaderForceRateLimit = "X-Mock-Force-Rate-Limit"

// guard wraps a handler with authentication and cost-weighted admission. The
// principal resolved from the bearer token is passed through.
func (a *API) guard(cost int, h func(http.ResponseWriter, *http.Request, *store.AuthToken)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		forced := forceHeaderSet(r)

		principal, remaining, err := a.gate.Admit(token, cost, forced)
		if err != nil {
			a.writeError(w, err)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h(w, r, principal)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func forceHeaderSet(r *http.Request) bool {
	v := r.Header.Get(HeaderForceRateLimit)
	return v == "true" || v == "1"
}
