package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"

	"github.com/trackmock/trackmock/internal/id"
	"github.com/trackmock/trackmock/pkg/jql"
)

// RegisterWebhookParams is the input to RegisterWebhook.
type RegisterWebhookParams struct {
	URL        string
	Events     []string
	JQLFilter  string
	ExprFilter string
	Secret     string
}

// RegisterWebhook validates and stores a webhook registration. Both filter
// expressions must be syntactically valid at registration time; event entries
// may be glob patterns (jira:issue_*).
func (s *Store) RegisterWebhook(p RegisterWebhookParams) (*Webhook, error) {
	fields := map[string]string{}
	if !strings.HasPrefix(p.URL, "http://") && !strings.HasPrefix(p.URL, "https://") {
		fields["url"] = "url must be an absolute http(s) URL"
	}
	if len(p.Events) == 0 {
		fields["events"] = "at least one event type is required"
	}
	for _, pattern := range p.Events {
		if !doublestar.ValidatePattern(pattern) {
			fields["events"] = fmt.Sprintf("invalid event pattern %q", pattern)
		}
	}
	if p.JQLFilter != "" {
		if _, err := jql.Parse(p.JQLFilter); err != nil {
			fields["jqlFilter"] = err.Error()
		}
	}
	if p.ExprFilter != "" {
		if _, err := expr.Compile(p.ExprFilter, expr.AllowUndefinedVariables()); err != nil {
			fields["exprFilter"] = err.Error()
		}
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	hook := &Webhook{
		ID:         id.Prefixed("wh"),
		URL:        p.URL,
		Events:     append([]string(nil), p.Events...),
		JQLFilter:  p.JQLFilter,
		ExprFilter: p.ExprFilter,
		Secret:     p.Secret,
		Created:    time.Now().UTC(),
	}

	s.mu.Lock()
	s.webhooks[hook.ID] = hook
	s.webhookIDs = append(s.webhookIDs, hook.ID)
	s.mu.Unlock()

	c := *hook
	return &c, nil
}

// Webhooks lists registrations in registration order.
func (s *Store) Webhooks() []*Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Webhook, 0, len(s.webhookIDs))
	for _, hookID := range s.webhookIDs {
		c := *s.webhooks[hookID]
		out = append(out, &c)
	}
	return out
}

// WebhookByID returns one registration.
func (s *Store) WebhookByID(hookID string) (*Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hook, ok := s.webhooks[hookID]
	if !ok {
		return nil, &NotFoundError{Kind: "webhook", Ref: hookID}
	}
	c := *hook
	return &c, nil
}

// DeleteWebhook removes a registration.
func (s *Store) DeleteWebhook(hookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhooks[hookID]; !ok {
		return &NotFoundError{Kind: "webhook", Ref: hookID}
	}
	delete(s.webhooks, hookID)
	for i, existing := range s.webhookIDs {
		if existing == hookID {
			s.webhookIDs = append(s.webhookIDs[:i], s.webhookIDs[i+1:]...)
			break
		}
	}
	return nil
}
