package api

import (
	_ "embed"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.json
var openapiDoc []byte

// validateOpenAPI loads and validates an OpenAPI document. Start refuses to
// serve with an invalid embedded document rather than handing contract-test
// tooling a broken contract.
func validateOpenAPI(data []byte) error {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return err
	}
	return doc.Validate(loader.Context)
}

// handleOpenAPI serves the documented subset of the protocol surface.
// Contract-test tooling replays this document against the live server.
func (a *API) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapiDoc)
}
