package api

import (
	"net/http"

	"github.com/trackmock/trackmock/pkg/httputil"
	"github.com/trackmock/trackmock/pkg/page"
	"github.com/trackmock/trackmock/pkg/store"
)

// requestBody accepts both the flat shape and the real API's
// requestFieldValues nesting for summary and description.
type requestBody struct {
	ProjectKey    string `json:"projectKey"`
	ServiceDeskID string `json:"serviceDeskId"`
	RequestTypeID string `json:"requestTypeId"`
	Summary       string `json:"summary"`
	Description   any    `json:"description"`
	FieldValues   struct {
		Summary     string `json:"summary"`
		Description any    `json:"description"`
	} `json:"requestFieldValues"`
}

func (a *API) handleCreateRequest(w http.ResponseWriter, r *http.Request, principal *store.AuthToken) {
	var body requestBody
	if err := decodeBody(r, &body); err != nil {
		a.writeError(w, err)
		return
	}

	projectKey := body.ProjectKey
	if projectKey == "" {
		projectKey = body.ServiceDeskID
	}
	summary := body.Summary
	if summary == "" {
		summary = body.FieldValues.Summary
	}
	description := body.Description
	if description == nil {
		description = body.FieldValues.Description
	}

	req, err := a.store.CreateRequest(store.CreateRequestParams{
		ProjectKey:  projectKey,
		TypeID:      body.RequestTypeID,
		Summary:     summary,
		Description: description,
		Reporter:    principal.AccountID,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteCreated(w, req)
}

func (a *API) handleListRequests(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	startAt, maxResults := pageParams(r)
	httputil.WriteOK(w, page.Paginate(a.store.Requests(), startAt, maxResults))
}

func (a *API) handleGetRequest(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	req, err := a.store.RequestByKey(r.PathValue("key"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteOK(w, req)
}

func (a *API) handleListApprovals(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	approvals, err := a.store.Approvals(r.PathValue("key"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	startAt, maxResults := pageParams(r)
	httputil.WriteOK(w, page.Paginate(approvals, startAt, maxResults))
}

func (a *API) handleDecideApproval(w http.ResponseWriter, r *http.Request, principal *store.AuthToken) {
	var body struct {
		Decision string `json:"decision"`
	}
	if err := decodeBody(r, &body); err != nil {
		a.writeError(w, err)
		return
	}

	approval, err := a.store.Decide(r.PathValue("key"), r.PathValue("id"), body.Decision, principal.AccountID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteOK(w, approval)
}
