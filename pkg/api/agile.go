package api

import (
	"net/http"
	"strconv"

	"github.com/trackmock/trackmock/pkg/httputil"
	"github.com/trackmock/trackmock/pkg/page"
	"github.com/trackmock/trackmock/pkg/store"
)

func pathInt(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, store.NewValidationError(name, "must be an integer")
	}
	return id, nil
}

func (a *API) handleListBoards(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	startAt, maxResults := pageParams(r)
	httputil.WriteOK(w, page.Paginate(a.store.Boards(), startAt, maxResults))
}

func (a *API) handleGetBoard(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	id, err := pathInt(r, "id")
	if err != nil {
		a.writeError(w, err)
		return
	}
	board, err := a.store.BoardByID(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteOK(w, board)
}

func (a *API) handleListSprints(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	id, err := pathInt(r, "id")
	if err != nil {
		a.writeError(w, err)
		return
	}
	sprints, err := a.store.Sprints(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	startAt, maxResults := pageParams(r)
	httputil.WriteOK(w, page.Paginate(sprints, startAt, maxResults))
}

func (a *API) handleBacklog(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	id, err := pathInt(r, "id")
	if err != nil {
		a.writeError(w, err)
		return
	}
	issues, err := a.store.Backlog(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeIssuePage(w, r, issues)
}

func (a *API) handleGetSprint(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	id, err := pathInt(r, "id")
	if err != nil {
		a.writeError(w, err)
		return
	}
	sprint, err := a.store.SprintByID(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteOK(w, sprint)
}

func (a *API) handleSprintIssues(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	id, err := pathInt(r, "id")
	if err != nil {
		a.writeError(w, err)
		return
	}
	issues, err := a.store.SprintIssues(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeIssuePage(w, r, issues)
}

func (a *API) handleMoveToSprint(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	id, err := pathInt(r, "id")
	if err != nil {
		a.writeError(w, err)
		return
	}
	var body struct {
		Issues []string `json:"issues"`
	}
	if err := decodeBody(r, &body); err != nil {
		a.writeError(w, err)
		return
	}
	if len(body.Issues) == 0 {
		a.writeError(w, store.NewValidationError("issues", "at least one issue key is required"))
		return
	}

	if err := a.store.MoveToSprint(id, body.Issues); err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (a *API) handleSprintState(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	id, err := pathInt(r, "id")
	if err != nil {
		a.writeError(w, err)
		return
	}
	var body struct {
		State string `json:"state"`
	}
	if err := decodeBody(r, &body); err != nil {
		a.writeError(w, err)
		return
	}

	sprint, err := a.store.UpdateSprintState(id, body.State)
	if err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteOK(w, sprint)
}

func (a *API) writeIssuePage(w http.ResponseWriter, r *http.Request, issues []*store.Issue) {
	rendered := make([]map[string]any, len(issues))
	for i, issue := range issues {
		rendered[i] = a.store.RenderIssue(issue)
	}
	startAt, maxResults := pageParams(r)
	httputil.WriteOK(w, page.Paginate(rendered, startAt, maxResults))
}
