// Package api exposes the protocol surface over HTTP: platform resources,
// agile resources, service-desk resources, webhook administration and the
// operator control plane. Routers translate requests into store and gate
// calls; domain errors are rendered at a single boundary.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/trackmock/trackmock/pkg/gate"
	"github.com/trackmock/trackmock/pkg/logging"
	"github.com/trackmock/trackmock/pkg/store"
	"github.com/trackmock/trackmock/pkg/webhook"
)

// DeliveryLog exposes the dispatcher's append-only logs to the operator
// endpoints.
type DeliveryLog interface {
	Deliveries() []webhook.Delivery
	Attempts() []webhook.Attempt
}

// API is the HTTP surface of the mock server.
type API struct {
	store   *store.Store
	gate    *gate.Gate
	logs    DeliveryLog
	log     *slog.Logger
	started time.Time

	server *http.Server
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// New creates the API over a store, an admission gate and the dispatcher's
// delivery log.
func New(s *store.Store, g *gate.Gate, logs DeliveryLog, opts ...Option) *API {
	a := &API{
		store:   s,
		gate:    g,
		logs:    logs,
		log:     logging.Nop(),
		started: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler builds the full route table.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	// Platform resources.
	mux.HandleFunc("GET /rest/api/2/myself", a.guard(gate.CostRead, a.handleMyself))
	mux.HandleFunc("POST /rest/api/2/issue", a.guard(gate.CostWrite, a.handleCreateIssue))
	mux.HandleFunc("GET /rest/api/2/issue/{key}", a.guard(gate.CostRead, a.handleGetIssue))
	mux.HandleFunc("PUT /rest/api/2/issue/{key}", a.guard(gate.CostWrite, a.handleUpdateIssue))
	mux.HandleFunc("DELETE /rest/api/2/issue/{key}", a.guard(gate.CostWrite, a.handleDeleteIssue))
	mux.HandleFunc("GET /rest/api/2/issue/{key}/transitions", a.guard(gate.CostRead, a.handleListTransitions))
	mux.HandleFunc("POST /rest/api/2/issue/{key}/transitions", a.guard(gate.CostWrite, a.handleApplyTransition))
	mux.HandleFunc("GET /rest/api/2/issue/{key}/comment", a.guard(gate.CostRead, a.handleListComments))
	mux.HandleFunc("POST /rest/api/2/issue/{key}/comment", a.guard(gate.CostWrite, a.handleAddComment))
	mux.HandleFunc("GET /rest/api/2/search", a.guard(gate.CostSearch, a.handleSearchGet))
	mux.HandleFunc("POST /rest/api/2/search", a.guard(gate.CostSearch, a.handleSearchPost))
	mux.HandleFunc("GET /rest/api/2/project", a.guard(gate.CostRead, a.handleListProjects))
	mux.HandleFunc("GET /rest/api/2/project/{key}", a.guard(gate.CostRead, a.handleGetProject))
	mux.HandleFunc("GET /rest/api/2/field", a.guard(gate.CostRead, a.handleListFields))
	mux.HandleFunc("GET /rest/api/2/status", a.guard(gate.CostRead, a.handleListStatuses))
	mux.HandleFunc("GET /rest/api/2/issuetype", a.guard(gate.CostRead, a.handleListIssueTypes))
	mux.HandleFunc("GET /rest/api/2/users/search", a.guard(gate.CostRead, a.handleListUsers))

	// Agile resources.
	mux.HandleFunc("GET /rest/agile/1.0/board", a.guard(gate.CostRead, a.handleListBoards))
	mux.HandleFunc("GET /rest/agile/1.0/board/{id}", a.guard(gate.CostRead, a.handleGetBoard))
	mux.HandleFunc("GET /rest/agile/1.0/board/{id}/sprint", a.guard(gate.CostRead, a.handleListSprints))
	mux.HandleFunc("GET /rest/agile/1.0/board/{id}/backlog", a.guard(gate.CostRead, a.handleBacklog))
	mux.HandleFunc("GET /rest/agile/1.0/sprint/{id}", a.guard(gate.CostRead, a.handleGetSprint))
	mux.HandleFunc("GET /rest/agile/1.0/sprint/{id}/issue", a.guard(gate.CostRead, a.handleSprintIssues))
	mux.HandleFunc("POST /rest/agile/1.0/sprint/{id}/issue", a.guard(gate.CostWrite, a.handleMoveToSprint))
	mux.HandleFunc("POST /rest/agile/1.0/sprint/{id}/state", a.guard(gate.CostWrite, a.handleSprintState))

	// Service-desk resources.
	mux.HandleFunc("POST /rest/servicedeskapi/request", a.guard(gate.CostWrite, a.handleCreateRequest))
	mux.HandleFunc("GET /rest/servicedeskapi/request", a.guard(gate.CostRead, a.handleListRequests))
	mux.HandleFunc("GET /rest/servicedeskapi/request/{key}", a.guard(gate.CostRead, a.handleGetRequest))
	mux.HandleFunc("GET /rest/servicedeskapi/request/{key}/approval", a.guard(gate.CostRead, a.handleListApprovals))
	mux.HandleFunc("POST /rest/servicedeskapi/request/{key}/approval/{id}", a.guard(gate.CostWrite, a.handleDecideApproval))

	// Webhook administration.
	mux.HandleFunc("POST /rest/webhooks/1.0/webhook", a.guard(gate.CostWrite, a.handleRegisterWebhook))
	mux.HandleFunc("GET /rest/webhooks/1.0/webhook", a.guard(gate.CostRead, a.handleListWebhooks))
	mux.HandleFunc("GET /rest/webhooks/1.0/webhook/{id}", a.guard(gate.CostRead, a.handleGetWebhook))
	mux.HandleFunc("DELETE /rest/webhooks/1.0/webhook/{id}", a.guard(gate.CostWrite, a.handleDeleteWebhook))

	// Operator control plane. Unauthenticated and never rate limited so test
	// harnesses can reset state even when a scenario has exhausted its quota.
	mux.HandleFunc("GET /_mock/info", a.handleInfo)
	mux.HandleFunc("GET /_mock/export", a.handleExport)
	mux.HandleFunc("POST /_mock/import", a.handleImport)
	mux.HandleFunc("POST /_mock/reset", a.handleReset)
	mux.HandleFunc("GET /_mock/deliveries", a.handleDeliveries)
	mux.HandleFunc("GET /_mock/attempts", a.handleAttempts)
	mux.HandleFunc("GET /openapi.json", a.handleOpenAPI)

	return mux
}

// Start serves the API on addr and blocks until the server stops. The
// embedded OpenAPI document is validated first; a broken document fails
// startup instead of being served.
func (a *API) Start(addr string) error {
	if err := validateOpenAPI(openapiDoc); err != nil {
		return fmt.Errorf("embedded openapi document: %w", err)
	}
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.log.Info("api listening", "addr", addr)
	err := a.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (a *API) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}
