package api

import (
	"net/http"

	"github.com/trackmock/trackmock/pkg/httputil"
	"github.com/trackmock/trackmock/pkg/page"
	"github.com/trackmock/trackmock/pkg/store"
)

func (a *API) handleRegisterWebhook(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	var body struct {
		URL        string   `json:"url"`
		Events     []string `json:"events"`
		JQLFilter  string   `json:"jqlFilter"`
		ExprFilter string   `json:"exprFilter"`
		Secret     string   `json:"secret"`
	}
	if err := decodeBody(r, &body); err != nil {
		a.writeError(w, err)
		return
	}

	hook, err := a.store.RegisterWebhook(store.RegisterWebhookParams{
		URL:        body.URL,
		Events:     body.Events,
		JQLFilter:  body.JQLFilter,
		ExprFilter: body.ExprFilter,
		Secret:     body.Secret,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteCreated(w, redactWebhook(hook))
}

func (a *API) handleListWebhooks(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	hooks := a.store.Webhooks()
	redacted := make([]*store.Webhook, len(hooks))
	for i, hook := range hooks {
		redacted[i] = redactWebhook(hook)
	}
	startAt, maxResults := pageParams(r)
	httputil.WriteOK(w, page.Paginate(redacted, startAt, maxResults))
}

func (a *API) handleGetWebhook(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	hook, err := a.store.WebhookByID(r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteOK(w, redactWebhook(hook))
}

func (a *API) handleDeleteWebhook(w http.ResponseWriter, r *http.Request, _ *store.AuthToken) {
	if err := a.store.DeleteWebhook(r.PathValue("id")); err != nil {
		a.writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// redactWebhook strips the signing secret from API responses. The secret
// still round-trips through operator snapshots.
func redactWebhook(hook *store.Webhook) *store.Webhook {
	c := *hook
	c.Secret = ""
	return &c
}
