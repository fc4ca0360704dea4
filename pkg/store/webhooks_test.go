package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterWebhook(t *testing.T) {
	s := seededStore(t)

	hook, err := s.RegisterWebhook(RegisterWebhookParams{
		URL:       "https://consumer.example.com/hook",
		Events:    []string{"jira:issue_*", "comment_created"},
		JQLFilter: `project = DEV`,
		Secret:    "hunter2",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, hook.ID)
	assert.False(t, hook.Created.IsZero())

	got, err := s.WebhookByID(hook.ID)
	require.NoError(t, err)
	assert.Equal(t, hook.URL, got.URL)

	require.NoError(t, s.DeleteWebhook(hook.ID))
	_, err = s.WebhookByID(hook.ID)
	assert.Error(t, err)
}

func TestRegisterWebhookValidation(t *testing.T) {
	tests := []struct {
		name   string
		params RegisterWebhookParams
		field  string
	}{
		{
			"relative url",
			RegisterWebhookParams{URL: "/hook", Events: []string{"jira:issue_created"}},
			"url",
		},
		{
			"no events",
			RegisterWebhookParams{URL: "http://x.test/hook"},
			"events",
		},
		{
			"malformed jql rejected at registration",
			RegisterWebhookParams{URL: "http://x.test/hook", Events: []string{"jira:issue_created"}, JQLFilter: "project ="},
			"jqlFilter",
		},
		{
			"malformed expr rejected at registration",
			RegisterWebhookParams{URL: "http://x.test/hook", Events: []string{"jira:issue_created"}, ExprFilter: "1 +"},
			"exprFilter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seededStore(t)
			_, err := s.RegisterWebhook(tt.params)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestWebhooksListInRegistrationOrder(t *testing.T) {
	s := seededStore(t)

	for _, url := range []string{"http://a.test/1", "http://b.test/2", "http://c.test/3"} {
		_, err := s.RegisterWebhook(RegisterWebhookParams{URL: url, Events: []string{"*"}})
		require.NoError(t, err)
	}

	hooks := s.Webhooks()
	require.Len(t, hooks, 3)
	assert.Equal(t, "http://a.test/1", hooks[0].URL)
	assert.Equal(t, "http://c.test/3", hooks[2].URL)
}

// captureSink records events synchronously for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

func TestMutationsEmitEvents(t *testing.T) {
	s := seededStore(t)
	sink := &captureSink{}
	s.SetEventSink(sink)

	issue, err := s.CreateIssue(CreateIssueParams{
		ProjectKey: "DEV", TypeID: "10001", Summary: "Event source", Reporter: "alice",
	})
	require.NoError(t, err)

	_, err = s.AddComment(issue.Key, "bob", "ack")
	require.NoError(t, err)

	require.NoError(t, s.DeleteIssue(issue.Key))

	assert.Equal(t, []string{
		EventIssueCreated,
		EventCommentCreated,
		EventIssueUpdated,
		EventIssueDeleted,
	}, sink.types())

	// Every event carries a unique id and the rendered issue payload.
	seen := map[string]bool{}
	for _, ev := range sink.events {
		assert.False(t, seen[ev.ID], "event ids must be unique")
		seen[ev.ID] = true
		require.Contains(t, ev.Payload, "issue")
	}
}
