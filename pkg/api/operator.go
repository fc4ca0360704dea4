package api

import (
	"io"
	"net/http"
	"time"

	"github.com/trackmock/trackmock/pkg/httputil"
	"github.com/trackmock/trackmock/pkg/page"
	"github.com/trackmock/trackmock/pkg/store"
	"github.com/trackmock/trackmock/pkg/version"
)

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, map[string]any{
		"name":    "trackmock",
		"version": version.Version,
		"uptime":  time.Since(a.started).Round(time.Second).String(),
		"counts":  a.store.Stats(),
	})
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, a.store.Export())
}

func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, &store.ValidationError{Message: "cannot read request body"})
		return
	}
	snap, err := store.DecodeSnapshot(raw)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.store.Import(snap); err != nil {
		a.writeError(w, err)
		return
	}
	a.log.Info("snapshot imported", "issues", len(snap.Issues), "webhooks", len(snap.Webhooks))
	httputil.WriteNoContent(w)
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	seed := r.URL.Query().Get("seed") != "false"
	a.store.Reset(seed)
	a.log.Info("store reset", "seed", seed)
	httputil.WriteNoContent(w)
}

func (a *API) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	startAt, maxResults := pageParams(r)
	httputil.WriteOK(w, page.Paginate(a.logs.Deliveries(), startAt, maxResults))
}

func (a *API) handleAttempts(w http.ResponseWriter, r *http.Request) {
	startAt, maxResults := pageParams(r)
	httputil.WriteOK(w, page.Paginate(a.logs.Attempts(), startAt, maxResults))
}
