package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/trackmock/trackmock/pkg/httputil"
	"github.com/trackmock/trackmock/pkg/store"
)

// writeError is the single translation boundary from domain errors to the
// protocol's error envelope. Anything that does not carry a status code is a
// 500.
func (a *API) writeError(w http.ResponseWriter, err error) {
	var rateLimited *store.RateLimitedError
	if errors.As(err, &rateLimited) {
		w.Header().Set("Retry-After", strconv.Itoa(rateLimited.RetryAfter))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rateLimited.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rateLimited.Reset, 10))
	}

	var unauthorized *store.UnauthorizedError
	if errors.As(err, &unauthorized) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="trackmock"`)
	}

	var validation *store.ValidationError
	if errors.As(err, &validation) {
		messages := []string{}
		if validation.Message != "" {
			messages = append(messages, validation.Message)
		}
		httputil.WriteError(w, http.StatusBadRequest, messages, validation.Fields)
		return
	}

	var coded store.StatusCodeError
	if errors.As(err, &coded) {
		httputil.WriteError(w, coded.StatusCode(), []string{coded.Error()}, nil)
		return
	}

	a.log.Error("unhandled error", "error", err)
	httputil.WriteError(w, http.StatusInternalServerError, []string{"internal error"}, nil)
}

// decodeBody decodes a JSON request body. Malformed JSON surfaces as a
// validation error rather than a 500.
func decodeBody(r *http.Request, v any) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return &store.ValidationError{Message: "cannot read request body"}
	}
	if len(raw) == 0 {
		return &store.ValidationError{Message: "request body is required"}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &store.ValidationError{Message: "request body is not valid JSON: " + err.Error()}
	}
	return nil
}

// pageParams reads startAt and maxResults from the query string. Garbage
// values fall back to the defaults rather than erroring.
func pageParams(r *http.Request) (startAt, maxResults int) {
	q := r.URL.Query()
	startAt, _ = strconv.Atoi(q.Get("startAt"))
	maxResults, _ = strconv.Atoi(q.Get("maxResults"))
	return startAt, maxResults
}
