package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackmock/trackmock/pkg/gate"
	"github.com/trackmock/trackmock/pkg/store"
	"github.com/trackmock/trackmock/pkg/webhook"
)

type testServer struct {
	*httptest.Server
	store *store.Store
}

func newTestServer(t *testing.T, gateCfg gate.Config) *testServer {
	t.Helper()
	s := store.New(store.WithSeed())
	d := webhook.New(s, webhook.Config{JitterMin: time.Millisecond, JitterMax: 2 * time.Millisecond})
	t.Cleanup(d.Close)
	s.SetEventSink(d)

	a := New(s, gate.New(s, gateCfg), d)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: s}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, gate.DefaultConfig())

	resp := ts.do(t, http.MethodGet, "/rest/api/2/myself", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")

	body := decode[map[string]any](t, resp)
	assert.NotEmpty(t, body["errorMessages"])
	assert.NotNil(t, body["errors"])

	resp = ts.do(t, http.MethodGet, "/rest/api/2/myself", "token-bogus", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMyself(t *testing.T) {
	ts := newTestServer(t, gate.DefaultConfig())

	resp := ts.do(t, http.MethodGet, "/rest/api/2/myself", "token-alice", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "99", resp.Header.Get("X-RateLimit-Remaining"))

	user := decode[map[string]any](t, resp)
	assert.Equal(t, "alice", user["accountId"])
}

func TestIssueLifecycle(t *testing.T) {
	ts := newTestServer(t, gate.DefaultConfig())

	resp := ts.do(t, http.MethodPost, "/rest/api/2/issue", "token-alice", map[string]any{
		"fields": map[string]any{
			"project":     map[string]any{"key": "DEV"},
			"issuetype":   map[string]any{"id": "10002"},
			"summary":     "API-created issue",
			"description": "Plain text body.",
			"labels":      []string{"api"},
			"team":        "platform",
		},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]any](t, resp)
	assert.Equal(t, "DEV-3", created["key"])

	resp = ts.do(t, http.MethodGet, "/rest/api/2/issue/DEV-3", "token-alice", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	issue := decode[map[string]any](t, resp)
	fields := issue["fields"].(map[string]any)
	assert.Equal(t, "API-created issue", fields["summary"])
	assert.Equal(t, "platform", fields["team"], "unknown fields surface as custom fields")
	desc := fields["description"].(map[string]any)
	assert.Equal(t, "doc", desc["type"])
	reporter := fields["reporter"].(map[string]any)
	assert.Equal(t, "alice", reporter["accountId"], "reporter defaults to the caller")

	resp = ts.do(t, http.MethodPut, "/rest/api/2/issue/DEV-3", "token-alice", map[string]any{
		"fields": map[string]any{"assignee": map[string]any{"accountId": "bob"}},
	}, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/rest/api/2/issue/DEV-3", "token-alice", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/rest/api/2/issue/DEV-3", "token-alice", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateIssueValidationEnvelope(t *testing.T) {
	ts := newTestServer(t, gate.DefaultConfig())

	resp := ts.do(t, http.MethodPost, "/rest/api/2/issue", "token-alice", map[string]any{
		"fields": map[string]any{
			"project":   map[string]any{"key": "NOPE"},
			"issuetype": map[string]any{"id": "10001"},
			"summary":   "x",
		},
	}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, "project")
}

func TestTransitionConflict(t *testing.T) {
	ts := newTestServer(t, gate.DefaultConfig())

	// DEV-2 is in To Do; Done (31) requires In Progress.
	resp := ts.do(t, http.MethodPost, "/rest/api/2/issue/DEV-2/transitions", "token-alice", map[string]any{
		"transition": map[string]any{"id": "31"},
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/rest/api/2/issue/DEV-2/transitions", "token-alice", map[string]any{
		"transition": map[string]any{"id": "11"},
	}, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSearchEnvelope(t *testing.T) {
	ts := newTestServer(t, gate.DefaultConfig())

	resp := ts.do(t, http.MethodGet, "/rest/api/2/search?jql=project+%3D+DEV&maxResults=1", "token-alice", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "95", resp.Header.Get("X-RateLimit-Remaining"), "search costs 5")

	page := decode[map[string]any](t, resp)
	assert.EqualValues(t, 0, page["startAt"])
	assert.EqualValues(t, 1, page["maxResults"])
	assert.EqualValues(t, 2, page["total"])
	assert.Equal(t, false, page["isLast"])
	values := page["values"].([]any)
	require.Len(t, values, 1)

	// The POST form behaves identically.
	resp = ts.do(t, http.MethodPost, "/rest/api/2/search", "token-alice", map[string]any{
		"jql": "project = DEV", "maxResults": 1, "startAt": 1,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page = decode[map[string]any](t, resp)
	assert.Equal(t, true, page["isLast"])
}

func TestRateLimitHeaders(t *testing.T) {
	ts := newTestServer(t, gate.Config{Window: time.Minute, Limit: 2})

	resp := ts.do(t, http.MethodGet, "/rest/api/2/myself", "token-alice", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, "/rest/api/2/myself", "token-alice", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/rest/api/2/myself", "token-alice", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))
}

func TestForcedRateLimit(t *testing.T) {
	ts := newTestServer(t, gate.DefaultConfig())

	resp := ts.do(t, http.MethodGet, "/rest/api/2/myself", "token-flaky", nil,
		map[string]string{HeaderForceRateLimit: "true"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Unflagged tokens ignore the override.
	resp = ts.do(t, http.MethodGet, "/rest/api/2/myself", "token-alice", nil,
		map[string]string{HeaderForceRateLimit: "true"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAgileEndpoints(t *testing.T) {
	ts := newTestServer(t, gate.DefaultConfig())

	resp := ts.do(t, http.MethodGet, "/rest/agile/1.0/board", "token-alice", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	boards := decode[map[string]any](t, resp)
	assert.EqualValues(t, 1, boards["total"])

	resp = ts.do(t, http.MethodGet, "/rest/agile/1.0/board/1/backlog", "token-alice", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	backlog := decode[map[string]any](t, resp)
	assert.EqualValues(t, 1, backlog["total"])

	resp = ts.do(t, http.MethodPost, "/rest/agile/1.0/sprint/2/issue", "token-alice", map[string]any{
		"issues": []string{"DEV-2"},
	}, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/rest/agile/1.0/sprint/2/state", "token-alice", map[string]any{
		"state": "active",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sprint := decode[map[string]any](t, resp)
	assert.Equal(t, "active", sprint["state"])

	// Skipping a state is a conflict.
	resp = ts.do(t, http.MethodPost, "/rest/agile/1.0/sprint/1/state", "token-alice", map[string]any{
		"state": "future",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/rest/agile/1.0/board/notanumber", "token-alice", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServiceDeskEndpoints(t *testing.T) {
	ts := newTestServer(t, gate.DefaultConfig())

	resp := ts.do(t, http.MethodPost, "/rest/servicedeskapi/request", "token-bob", map[string]any{
		"serviceDeskId": "SUP",
		"requestTypeId": "10001",
		"requestFieldValues": map[string]any{
			"summary":     "Monitor flickers",
			"description": "Happens after waking from sleep.",
		},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	req := decode[map[string]any](t, resp)
	assert.Equal(t, "SUP-2", req["issueKey"])

	resp = ts.do(t, http.MethodGet, "/rest/servicedeskapi/request/SUP-2/approval", "token-bob", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	approvals := decode[map[string]any](t, resp)
	values := approvals["values"].([]any)
	require.Len(t, values, 1)
	approvalID := values[0].(map[string]any)["id"].(string)

	resp = ts.do(t, http.MethodPost, "/rest/servicedeskapi/request/SUP-2/approval/"+approvalID, "token-alice", map[string]any{
		"decision": "approved",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decided := decode[map[string]any](t, resp)
	assert.Equal(t, "approved", decided["decision"])
	assert.Equal(t, "alice", decided["decider"])

	// Append-only: deciding again conflicts.
	resp = ts.do(t, http.MethodPost, "/rest/servicedeskapi/request/SUP-2/approval/"+approvalID, "token-bob", map[string]any{
		"decision": "declined",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestWebhookAdminRedactsSecret(t *testing.T) {
	ts := newTestServer(t, gate.DefaultConfig())

	resp := ts.do(t, http.MethodPost, "/rest/webhooks/1.0/webhook", "token-alice", map[string]any{
		"url":    "http://consumer.test/hook",
		"events": []string{"jira:issue_*"},
		"secret": "hunter2",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	hook := decode[map[string]any](t, resp)
	assert.NotContains(t, hook, "secret")
	hookID := hook["id"].(string)

	resp = ts.do(t, http.MethodGet, "/rest/webhooks/1.0/webhook/"+hookID, "token-alice", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, decode[map[string]any](t, resp), "secret")

	// The secret is still there for signing.
	stored, err := ts.store.WebhookByID(hookID)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", stored.Secret)

	resp = ts.do(t, http.MethodDelete, "/rest/webhooks/1.0/webhook/"+hookID, "token-alice", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestOperatorPlane(t *testing.T) {
	ts := newTestServer(t, gate.DefaultConfig())

	// The operator plane needs no token.
	resp := ts.do(t, http.MethodGet, "/_mock/info", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decode[map[string]any](t, resp)
	counts := info["counts"].(map[string]any)
	assert.EqualValues(t, 3, counts["issues"])

	resp = ts.do(t, http.MethodGet, "/_mock/export", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snapshot := decode[map[string]any](t, resp)

	// Wipe, then restore from the export.
	resp = ts.do(t, http.MethodPost, "/_mock/reset?seed=false", "", nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, ts.store.Stats().Issues)

	resp = ts.do(t, http.MethodPost, "/_mock/import", "", snapshot, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 3, ts.store.Stats().Issues)

	resp = ts.do(t, http.MethodPost, "/_mock/import", "", map[string]any{"users": []any{}}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeliveryLogEndpoints(t *testing.T) {
	ts := newTestServer(t, gate.DefaultConfig())

	resp := ts.do(t, http.MethodGet, "/_mock/deliveries", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[map[string]any](t, resp)
	assert.EqualValues(t, 0, page["total"])

	resp = ts.do(t, http.MethodGet, "/_mock/attempts", "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOpenAPIDocument(t *testing.T) {
	ts := newTestServer(t, gate.DefaultConfig())

	resp := ts.do(t, http.MethodGet, "/openapi.json", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decode[map[string]any](t, resp)
	assert.Equal(t, "3.0.3", doc["openapi"])
	assert.Contains(t, doc["paths"], "/rest/api/2/search")
}

func TestOpenAPIValidation(t *testing.T) {
	// Startup refuses to serve a broken contract, so the embedded document
	// must always validate.
	assert.NoError(t, validateOpenAPI(openapiDoc))

	assert.Error(t, validateOpenAPI([]byte(`{"openapi":"3.0.3"}`)), "missing info and paths")
	assert.Error(t, validateOpenAPI([]byte(`not json`)))
}
