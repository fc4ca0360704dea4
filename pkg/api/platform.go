package api

import (
	"fmt"
	"net/http"

	"github.com/trackmock/trackmock/pkg/httputil"
	"github.com/trackmock/trackmock/pkg/jql"
	"github.com/trackmock/trackmock/pkg/page"
	"github.com/trackmock/trackmock/pkg/store"
)

func (a *API) handleMyself(w http.ResponseWriter, r *http.Request, principal *store.AuthToken) {
	user, err := a.store.Myself(principal.AccountID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteOK(w, user)
}

// issueRequest is the create/update body shape: everything under "fields".
type issueRequest struct {
	Fields map[string]any `json:"fields"`
}

func (a *API) handleCreateIssue(w http.ResponseWriter, r *http.Request, principal *store.AuthToken) {
	var body issueRequest
	if err := decodeBody(r, &body); err != nil {
		a.writeError(w, err)
		return
	}
	params, err := createParamsFromFields(body.Fields, principal.AccountID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	issue, err := a.store.CreateIssue(params)
	if err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteCreated(w, map[string]any{
		"id":   issue.ID,
		"key":  issue.Key,
		"self": "/rest/api/2/issue/" + issue.Key,
	})
}

// createParamsFromFields maps the wire fields object onto create parameters.
// References (project, issuetype, users) accept either the object form the
// real API uses or a bare string. Unrecognized fields ride along as custom
// fields.
func createParamsFromFields(fields map[string]any, principal string) (store.CreateIssueParams, error) {
	if fields == nil {
		return store.CreateIssueParams{}, &store.ValidationError{Message: "fields object is required"}
	}

	params := store.CreateIssueParams{Reporter: principal}
	custom := map[string]any{}
	for name, value := range fields {
		switch name {
		case "project":
			params.ProjectKey = refValue(value, "key")
		case "issuetype":
			params.TypeID = refValue(value, "id")
		case "summary":
			params.Summary, _ = value.(string)
		case "description":
			params.Description = value
		case "reporter":
			if v := refValue(value, "accountId"); v != "" {
				params.Reporter = v
			}
		case "assignee":
			params.Assignee = refValue(value, "accountId")
		case "labels":
			labels, err := stringSlice(value)
			if err != nil {
				return params, store.NewValidationError("labels", "labels must be an array of strings")
			}
			params.Labels = labels
		default:
			custom[name] = value
		}
	}
	if len(custom) > 0 {
		params.Custom = custom
	}
	return params, nil
}

// refValue extracts an identifier from either {"<key>": "x"} or a bare "x".
func refValue(v any, key string) string {
	switch ref := v.(type) {
	case string:
		return ref
	case map[string]any:
		s, _ := ref[key].(string)
		return s
	default:
		return ""
	}
}

func stringSlice(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("not an array")
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("element %d is not a string", i)
		}
		out[i] = s
	}
	return out, nil
}

func (a *API) handleGetIssue(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	issue, err := a.store.GetIssue(r.PathValue("key"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteOK(w, a.store.RenderIssue(issue))
}

func (a *API) handleUpdateIssue(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	var body issueRequest
	if err := decodeBody(r, &body); err != nil {
		a.writeError(w, err)
		return
	}
	if body.Fields == nil {
		a.writeError(w, &store.ValidationError{Message: "fields object is required"})
		return
	}

	changes := make(map[string]any, len(body.Fields))
	for name, value := range body.Fields {
		if name == "assignee" {
			// Object references flatten to the account id; explicit null
			// clears the field and must survive as nil.
			if value == nil {
				changes[name] = nil
			} else {
				changes[name] = refValue(value, "accountId")
			}
			continue
		}
		changes[name] = value
	}

	if _, err := a.store.UpdateIssue(r.PathValue("key"), changes); err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (a *API) handleDeleteIssue(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	if err := a.store.DeleteIssue(r.PathValue("key")); err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (a *API) handleListTransitions(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	transitions, err := a.store.Transitions(r.PathValue("key"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	statusName := map[string]string{}
	for _, st := range a.store.Statuses() {
		statusName[st.ID] = st.Name
	}

	out := make([]map[string]any, len(transitions))
	for i, t := range transitions {
		out[i] = map[string]any{
			"id":   t.ID,
			"name": t.Name,
			"to":   map[string]any{"id": t.To, "name": statusName[t.To]},
		}
	}
	httputil.WriteOK(w, map[string]any{"transitions": out})
}

func (a *API) handleApplyTransition(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	var body struct {
		Transition struct {
			ID string `json:"id"`
		} `json:"transition"`
	}
	if err := decodeBody(r, &body); err != nil {
		a.writeError(w, err)
		return
	}
	if body.Transition.ID == "" {
		a.writeError(w, store.NewValidationError("transition", "transition id is required"))
		return
	}

	if _, err := a.store.ApplyTransition(r.PathValue("key"), body.Transition.ID); err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (a *API) handleListComments(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	comments, err := a.store.Comments(r.PathValue("key"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	rendered := make([]map[string]any, len(comments))
	for i, c := range comments {
		rendered[i] = a.renderComment(c)
	}
	startAt, maxResults := pageParams(r)
	httputil.WriteOK(w, page.Paginate(rendered, startAt, maxResults))
}

func (a *API) handleAddComment(w http.ResponseWriter, r *http.Request, principal *store.AuthToken) {
	var body struct {
		Body any `json:"body"`
	}
	if err := decodeBody(r, &body); err != nil {
		a.writeError(w, err)
		return
	}

	comment, err := a.store.AddComment(r.PathValue("key"), principal.AccountID, body.Body)
	if err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteCreated(w, a.renderComment(comment))
}

func (a *API) renderComment(c *store.Comment) map[string]any {
	author := map[string]any{"accountId": c.Author}
	if u, err := a.store.Myself(c.Author); err == nil {
		author["displayName"] = u.DisplayName
	}
	return map[string]any{
		"id":      c.ID,
		"author":  author,
		"body":    c.Body,
		"created": c.Created,
	}
}

func (a *API) handleSearchGet(w http.ResponseWriter, r *http.Request, principal *store.AuthToken) {
	startAt, maxResults := pageParams(r)
	a.search(w, r.URL.Query().Get("jql"), startAt, maxResults, principal)
}

func (a *API) handleSearchPost(w http.ResponseWriter, r *http.Request, principal *store.AuthToken) {
	var body struct {
		JQL        string `json:"jql"`
		StartAt    int    `json:"startAt"`
		MaxResults int    `json:"maxResults"`
	}
	if err := decodeBody(r, &body); err != nil {
		a.writeError(w, err)
		return
	}
	a.search(w, body.JQL, body.StartAt, body.MaxResults, principal)
}

// search runs a query and writes the paginated result. Queries the grammar
// cannot parse degrade to the match-everything plan rather than erroring, so
// clients exercising exotic JQL still get a well-formed response.
func (a *API) search(w http.ResponseWriter, query string, startAt, maxResults int, principal *store.AuthToken) {
	plan := jql.ParseLenient(query)
	issues := a.store.Search(plan, principal.AccountID)

	rendered := make([]map[string]any, len(issues))
	for i, issue := range issues {
		rendered[i] = a.store.RenderIssue(issue)
	}
	httputil.WriteOK(w, page.Paginate(rendered, startAt, maxResults))
}

func (a *API) handleListProjects(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	startAt, maxResults := pageParams(r)
	httputil.WriteOK(w, page.Paginate(a.store.Projects(), startAt, maxResults))
}

func (a *API) handleGetProject(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	project, err := a.store.ProjectByKey(r.PathValue("key"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteOK(w, project)
}

func (a *API) handleListFields(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	startAt, maxResults := pageParams(r)
	httputil.WriteOK(w, page.Paginate(a.store.Fields(), startAt, maxResults))
}

func (a *API) handleListStatuses(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	startAt, maxResults := pageParams(r)
	httputil.WriteOK(w, page.Paginate(a.store.Statuses(), startAt, maxResults))
}

func (a *API) handleListIssueTypes(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	startAt, maxResults := pageParams(r)
	httputil.WriteOK(w, page.Paginate(a.store.IssueTypes(), startAt, maxResults))
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	startAt, maxResults := pageParams(r)
	httputil.WriteOK(w, page.Paginate(a.store.Users(), startAt, maxResults))
}
