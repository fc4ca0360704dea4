// Package store owns all mutable domain state for the mock server: users,
// projects, issues, comments, transitions, boards, sprints, service requests,
// webhook registrations and auth tokens. It is the single source of truth;
// callers only ever see copies of the entities it holds.
package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trackmock/trackmock/pkg/logging"
)

// Store is the entity store engine. One RWMutex serializes mutations;
// reads take the shared lock and return copies.
type Store struct {
	mu sync.RWMutex

	users       map[string]*User
	projects    map[string]*Project
	issueTypes  map[string]*IssueType
	statuses    map[string]*Status
	statusOrder []string
	transitions []*Transition
	issues      map[string]*Issue
	issueOrder  []string
	boards      map[int]*Board
	sprints     map[int]*Sprint
	requests    map[string]*ServiceRequest
	webhooks    map[string]*Webhook
	webhookIDs  []string
	tokens      map[string]*AuthToken

	// counters holds the per-project issue key counter. Updated only under
	// the write lock so keys are never duplicated or reused.
	counters map[string]int
	nextID   int

	sink EventSink
	log  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSeed populates the store with the built-in sample data set.
func WithSeed() Option {
	return func(s *Store) {
		s.seedLocked()
	}
}

// New creates an empty Store. Pass WithSeed to start with sample data.
func New(opts ...Option) *Store {
	s := &Store{log: logging.Nop()}
	s.clearLocked()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEventSink registers the sink that receives mutation events. Events are
// handed over synchronously before the mutating call returns, but after the
// store lock has been released.
func (s *Store) SetEventSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// clearLocked resets every collection. Caller must hold the write lock (or
// own the store exclusively, as New does).
func (s *Store) clearLocked() {
	s.users = make(map[string]*User)
	s.projects = make(map[string]*Project)
	s.issueTypes = make(map[string]*IssueType)
	s.statuses = make(map[string]*Status)
	s.statusOrder = nil
	s.transitions = nil
	s.issues = make(map[string]*Issue)
	s.issueOrder = nil
	s.boards = make(map[int]*Board)
	s.sprints = make(map[int]*Sprint)
	s.requests = make(map[string]*ServiceRequest)
	s.webhooks = make(map[string]*Webhook)
	s.webhookIDs = nil
	s.tokens = make(map[string]*AuthToken)
	s.counters = make(map[string]int)
	s.nextID = 10000
}

func (s *Store) nextIDLocked() string {
	s.nextID++
	return fmt.Sprintf("%d", s.nextID)
}

// emit hands events to the sink. Must be called without holding the lock so
// a sink that reads back from the store cannot deadlock.
func (s *Store) emit(events []Event) {
	if s.sink == nil {
		return
	}
	for _, ev := range events {
		s.sink.Emit(ev)
	}
}

func newEvent(eventType string, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Users lists all users sorted by account id.
func (s *Store) Users() []*User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

// Myself resolves the authenticated principal.
func (s *Store) Myself(accountID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[accountID]
	if !ok {
		return nil, &NotFoundError{Kind: "user", Ref: accountID}
	}
	c := *u
	return &c, nil
}

// Projects lists all projects sorted by key.
func (s *Store) Projects() []*Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Project, 0, len(s.projects))
	for _, p := range s.projects {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ProjectByKey returns one project.
func (s *Store) ProjectByKey(key string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[key]
	if !ok {
		return nil, &NotFoundError{Kind: "project", Ref: key}
	}
	c := *p
	return &c, nil
}

// IssueTypes lists the seeded issue types sorted by id.
func (s *Store) IssueTypes() []*IssueType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*IssueType, 0, len(s.issueTypes))
	for _, t := range s.issueTypes {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Statuses lists the seeded statuses in workflow order.
func (s *Store) Statuses() []*Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Status, 0, len(s.statusOrder))
	for _, id := range s.statusOrder {
		c := *s.statuses[id]
		out = append(out, &c)
	}
	return out
}

// Field describes one issue field for the field-listing endpoint.
type Field struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
	Type   string `json:"schemaType"`
}

// Fields lists the fields the mock understands. The set is static; custom
// fields ride in the issue's customFields map and are searchable by equality.
func (s *Store) Fields() []*Field {
	return []*Field{
		{ID: "summary", Name: "Summary", Type: "string"},
		{ID: "description", Name: "Description", Type: "doc"},
		{ID: "issuetype", Name: "Issue Type", Type: "issuetype"},
		{ID: "project", Name: "Project", Type: "project"},
		{ID: "status", Name: "Status", Type: "status"},
		{ID: "reporter", Name: "Reporter", Type: "user"},
		{ID: "assignee", Name: "Assignee", Type: "user"},
		{ID: "labels", Name: "Labels", Type: "array"},
		{ID: "created", Name: "Created", Type: "datetime"},
		{ID: "updated", Name: "Updated", Type: "datetime"},
	}
}

// TokenByValue resolves a seeded bearer token.
func (s *Store) TokenByValue(token string) (*AuthToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, false
	}
	c := *t
	return &c, true
}

// UserExists reports whether an account id is known.
func (s *Store) UserExists(accountID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[accountID]
	return ok
}

// Counts summarizes entity counts for the operator info endpoint.
type Counts struct {
	Users           int `json:"users"`
	Projects        int `json:"projects"`
	Issues          int `json:"issues"`
	Boards          int `json:"boards"`
	Sprints         int `json:"sprints"`
	ServiceRequests int `json:"serviceRequests"`
	Webhooks        int `json:"webhooks"`
}

// Stats returns current entity counts.
func (s *Store) Stats() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Users:           len(s.users),
		Projects:        len(s.projects),
		Issues:          len(s.issues),
		Boards:          len(s.boards),
		Sprints:         len(s.sprints),
		ServiceRequests: len(s.requests),
		Webhooks:        len(s.webhooks),
	}
}
