package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SnapshotVersion identifies the current snapshot format.
const SnapshotVersion = 1

// Snapshot is the portable whole-store state: every entity plus the counters
// needed so that an import continues key assignment exactly where the export
// left off. Slice order is significant for statuses (workflow order), issues
// (creation order) and webhooks (registration order).
type Snapshot struct {
	Version     int               `json:"version"`
	ExportedAt  time.Time         `json:"exportedAt"`
	Users       []*User           `json:"users"`
	Tokens      []*AuthToken      `json:"tokens"`
	Projects    []*Project        `json:"projects"`
	IssueTypes  []*IssueType      `json:"issueTypes"`
	Statuses    []*Status         `json:"statuses"`
	Transitions []*Transition     `json:"transitions"`
	Issues      []*Issue          `json:"issues"`
	Boards      []*Board          `json:"boards"`
	Sprints     []*Sprint         `json:"sprints"`
	Requests    []*ServiceRequest `json:"serviceRequests"`
	Webhooks    []*Webhook        `json:"webhooks"`
	Counters    map[string]int    `json:"counters"`
	NextID      int               `json:"nextId"`
}

// Export captures the complete store state.
func (s *Store) Export() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: time.Now().UTC(),
		Counters:   make(map[string]int, len(s.counters)),
		NextID:     s.nextID,
	}
	for k, v := range s.counters {
		snap.Counters[k] = v
	}
	for _, u := range s.users {
		c := *u
		snap.Users = append(snap.Users, &c)
	}
	for _, t := range s.tokens {
		c := *t
		snap.Tokens = append(snap.Tokens, &c)
	}
	for _, p := range s.projects {
		c := *p
		snap.Projects = append(snap.Projects, &c)
	}
	for _, t := range s.issueTypes {
		c := *t
		snap.IssueTypes = append(snap.IssueTypes, &c)
	}
	for _, statusID := range s.statusOrder {
		c := *s.statuses[statusID]
		snap.Statuses = append(snap.Statuses, &c)
	}
	for _, t := range s.transitions {
		c := *t
		snap.Transitions = append(snap.Transitions, &c)
	}
	for _, key := range s.issueOrder {
		snap.Issues = append(snap.Issues, cloneIssue(s.issues[key]))
	}
	for _, b := range s.boards {
		c := *b
		snap.Boards = append(snap.Boards, &c)
	}
	for _, sp := range s.sprints {
		c := *sp
		snap.Sprints = append(snap.Sprints, &c)
	}
	for _, req := range s.requests {
		snap.Requests = append(snap.Requests, cloneRequest(req))
	}
	for _, hookID := range s.webhookIDs {
		c := *s.webhooks[hookID]
		snap.Webhooks = append(snap.Webhooks, &c)
	}
	return snap
}

// Import atomically replaces the whole store state with a snapshot. The new
// state is staged off to the side first; on any validation failure the
// current state is untouched.
func (s *Store) Import(snap *Snapshot) error {
	if snap == nil {
		return &ValidationError{Message: "snapshot is required"}
	}
	if snap.Version != SnapshotVersion {
		return NewValidationError("version", fmt.Sprintf("unsupported snapshot version %d", snap.Version))
	}

	staged := New()
	for _, u := range snap.Users {
		c := *u
		staged.users[c.AccountID] = &c
	}
	for _, t := range snap.Tokens {
		c := *t
		if _, ok := staged.users[c.AccountID]; !ok {
			return NewValidationError("tokens", fmt.Sprintf("token principal %q does not exist", c.AccountID))
		}
		staged.tokens[c.Token] = &c
	}
	for _, p := range snap.Projects {
		c := *p
		if _, ok := staged.users[c.Lead]; c.Lead != "" && !ok {
			return NewValidationError("projects", fmt.Sprintf("project %q lead %q does not exist", c.Key, c.Lead))
		}
		staged.projects[c.Key] = &c
	}
	for _, t := range snap.IssueTypes {
		c := *t
		staged.issueTypes[c.ID] = &c
	}
	for _, st := range snap.Statuses {
		c := *st
		staged.statuses[c.ID] = &c
		staged.statusOrder = append(staged.statusOrder, c.ID)
	}
	for _, t := range snap.Transitions {
		c := *t
		staged.transitions = append(staged.transitions, &c)
	}
	for _, issue := range snap.Issues {
		if _, ok := staged.projects[issue.Project]; !ok {
			return NewValidationError("issues", fmt.Sprintf("issue %q references unknown project %q", issue.Key, issue.Project))
		}
		if _, ok := staged.statuses[issue.StatusID]; !ok {
			return NewValidationError("issues", fmt.Sprintf("issue %q references unknown status %q", issue.Key, issue.StatusID))
		}
		staged.issues[issue.Key] = cloneIssue(issue)
		staged.issueOrder = append(staged.issueOrder, issue.Key)
	}
	for _, b := range snap.Boards {
		c := *b
		staged.boards[c.ID] = &c
	}
	for _, sp := range snap.Sprints {
		c := *sp
		if _, ok := staged.boards[c.BoardID]; !ok {
			return NewValidationError("sprints", fmt.Sprintf("sprint %d references unknown board %d", c.ID, c.BoardID))
		}
		staged.sprints[c.ID] = &c
	}
	for _, req := range snap.Requests {
		if _, ok := staged.issues[req.IssueKey]; !ok {
			return NewValidationError("serviceRequests", fmt.Sprintf("request references unknown issue %q", req.IssueKey))
		}
		staged.requests[req.IssueKey] = cloneRequest(req)
	}
	for _, hook := range snap.Webhooks {
		c := *hook
		staged.webhooks[c.ID] = &c
		staged.webhookIDs = append(staged.webhookIDs, c.ID)
	}
	for k, v := range snap.Counters {
		staged.counters[k] = v
	}
	if snap.NextID > staged.nextID {
		staged.nextID = snap.NextID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = staged.users
	s.tokens = staged.tokens
	s.projects = staged.projects
	s.issueTypes = staged.issueTypes
	s.statuses = staged.statuses
	s.statusOrder = staged.statusOrder
	s.transitions = staged.transitions
	s.issues = staged.issues
	s.issueOrder = staged.issueOrder
	s.boards = staged.boards
	s.sprints = staged.sprints
	s.requests = staged.requests
	s.webhooks = staged.webhooks
	s.webhookIDs = staged.webhookIDs
	s.counters = staged.counters
	s.nextID = staged.nextID
	return nil
}

// Reset clears the store and, when seed is true, repopulates the sample data.
func (s *Store) Reset(seed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	if seed {
		s.seedLocked()
	}
}

// snapshotSchema is the JSON-schema contract a snapshot document must satisfy
// before Import even attempts to decode it.
const snapshotSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["version"],
	"properties": {
		"version": {"type": "integer", "minimum": 1},
		"users": {"type": "array", "items": {"type": "object", "required": ["accountId"]}},
		"tokens": {"type": "array", "items": {"type": "object", "required": ["token", "accountId"]}},
		"projects": {"type": "array", "items": {"type": "object", "required": ["id", "key", "name"]}},
		"issueTypes": {"type": "array", "items": {"type": "object", "required": ["id", "name"]}},
		"statuses": {"type": "array", "items": {"type": "object", "required": ["id", "name"]}},
		"transitions": {"type": "array", "items": {"type": "object", "required": ["id", "from", "to"]}},
		"issues": {"type": "array", "items": {"type": "object", "required": ["id", "key", "project"]}},
		"boards": {"type": "array", "items": {"type": "object", "required": ["id"]}},
		"sprints": {"type": "array", "items": {"type": "object", "required": ["id", "originBoardId"]}},
		"webhooks": {"type": "array", "items": {"type": "object", "required": ["id", "url", "events"]}},
		"counters": {"type": "object", "additionalProperties": {"type": "integer"}}
	}
}`

var compiledSnapshotSchema = jsonschema.MustCompileString("snapshot.json", snapshotSchema)

// DecodeSnapshot validates raw JSON against the snapshot schema and decodes
// it. Schema violations surface as validation errors with the offending
// location, so operator imports fail with a useful message instead of a
// half-decoded struct.
func DecodeSnapshot(raw []byte) (*Snapshot, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, NewValidationError("body", "snapshot is not valid JSON: "+err.Error())
	}
	if err := compiledSnapshotSchema.Validate(doc); err != nil {
		return nil, NewValidationError("body", "snapshot does not match schema: "+err.Error())
	}

	var snap Snapshot
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&snap); err != nil {
		return nil, NewValidationError("body", "cannot decode snapshot: "+err.Error())
	}
	return &snap, nil
}
