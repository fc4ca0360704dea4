package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/trackmock/trackmock/pkg/adf"
	"github.com/trackmock/trackmock/pkg/jql"
)

// CreateIssueParams is the input to CreateIssue.
type CreateIssueParams struct {
	ProjectKey  string
	TypeID      string
	Summary     string
	Description any
	Reporter    string
	Assignee    string
	Labels      []string
	Custom      map[string]any
}

// CreateIssue validates the input, assigns the next per-project key and the
// initial status, and emits jira:issue_created. Issues created under a
// service-desk project get a linked ServiceRequest in the same operation.
func (s *Store) CreateIssue(p CreateIssueParams) (*Issue, error) {
	s.mu.Lock()

	fields := map[string]string{}
	project, ok := s.projects[p.ProjectKey]
	if !ok {
		fields["project"] = fmt.Sprintf("project %q does not exist", p.ProjectKey)
	}
	if _, ok := s.issueTypes[p.TypeID]; !ok {
		fields["issuetype"] = fmt.Sprintf("issue type %q does not exist", p.TypeID)
	}
	if strings.TrimSpace(p.Summary) == "" {
		fields["summary"] = "summary is required"
	}
	if _, ok := s.users[p.Reporter]; !ok {
		fields["reporter"] = fmt.Sprintf("reporter %q does not exist", p.Reporter)
	}
	if p.Assignee != "" {
		if _, ok := s.users[p.Assignee]; !ok {
			fields["assignee"] = fmt.Sprintf("assignee %q does not exist", p.Assignee)
		}
	}
	if len(fields) > 0 {
		s.mu.Unlock()
		return nil, &ValidationError{Fields: fields}
	}
	if len(s.statusOrder) == 0 {
		s.mu.Unlock()
		return nil, &InternalError{Err: fmt.Errorf("no statuses configured")}
	}

	s.counters[project.Key]++
	now := time.Now().UTC()
	issue := &Issue{
		ID:          s.nextIDLocked(),
		Key:         fmt.Sprintf("%s-%d", project.Key, s.counters[project.Key]),
		Project:     project.Key,
		TypeID:      p.TypeID,
		Summary:     p.Summary,
		Description: cloneDoc(adf.Normalize(p.Description)),
		StatusID:    s.statusOrder[0],
		Reporter:    p.Reporter,
		Assignee:    p.Assignee,
		Labels:      append([]string(nil), p.Labels...),
		Custom:      cloneMap(p.Custom),
		Created:     now,
		Updated:     now,
	}
	s.issues[issue.Key] = issue
	s.issueOrder = append(s.issueOrder, issue.Key)

	if project.Type == ServiceDeskType {
		s.requests[issue.Key] = &ServiceRequest{
			ID:          issue.ID,
			IssueKey:    issue.Key,
			RequestType: defaultRequestType,
			Approvals: []*Approval{
				{ID: s.nextIDLocked(), Name: "Approve request", Decision: "pending"},
			},
			Created: now,
		}
	}

	events := []Event{newEvent(EventIssueCreated, s.issuePayloadLocked(issue))}
	result := cloneIssue(issue)
	s.mu.Unlock()

	s.emit(events)
	return result, nil
}

// GetIssue returns one issue by key.
func (s *Store) GetIssue(key string) (*Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issue, ok := s.issues[key]
	if !ok {
		return nil, &NotFoundError{Kind: "issue", Ref: key}
	}
	return cloneIssue(issue), nil
}

// UpdateIssue merges partial field changes into an issue, bumps Updated and
// emits jira:issue_updated. Recognized keys: summary, description, assignee,
// labels; anything else merges into the custom field map. An explicit nil
// assignee clears the field.
func (s *Store) UpdateIssue(key string, changes map[string]any) (*Issue, error) {
	s.mu.Lock()
	issue, ok := s.issues[key]
	if !ok {
		s.mu.Unlock()
		return nil, &NotFoundError{Kind: "issue", Ref: key}
	}

	for field, value := range changes {
		switch field {
		case "summary":
			str, ok := value.(string)
			if !ok || strings.TrimSpace(str) == "" {
				s.mu.Unlock()
				return nil, NewValidationError("summary", "summary must be a non-empty string")
			}
			issue.Summary = str
		case "description":
			issue.Description = cloneDoc(adf.Normalize(value))
		case "assignee":
			switch v := value.(type) {
			case nil:
				issue.Assignee = ""
			case string:
				if v != "" {
					if _, ok := s.users[v]; !ok {
						s.mu.Unlock()
						return nil, NewValidationError("assignee", fmt.Sprintf("assignee %q does not exist", v))
					}
				}
				issue.Assignee = v
			default:
				s.mu.Unlock()
				return nil, NewValidationError("assignee", "assignee must be an account id or null")
			}
		case "labels":
			labels, err := toStringSlice(value)
			if err != nil {
				s.mu.Unlock()
				return nil, NewValidationError("labels", "labels must be an array of strings")
			}
			issue.Labels = labels
		default:
			if issue.Custom == nil {
				issue.Custom = map[string]any{}
			}
			issue.Custom[field] = deepcopy.Copy(value)
		}
	}

	issue.Updated = time.Now().UTC()
	if issue.Updated.Before(issue.Created) {
		issue.Updated = issue.Created
	}

	events := []Event{newEvent(EventIssueUpdated, s.issuePayloadLocked(issue))}
	result := cloneIssue(issue)
	s.mu.Unlock()

	s.emit(events)
	return result, nil
}

// DeleteIssue removes an issue and its service request, emitting
// jira:issue_deleted. The per-project counter is untouched so the key is
// never reused.
func (s *Store) DeleteIssue(key string) error {
	s.mu.Lock()
	issue, ok := s.issues[key]
	if !ok {
		s.mu.Unlock()
		return &NotFoundError{Kind: "issue", Ref: key}
	}
	payload := s.issuePayloadLocked(issue)
	delete(s.issues, key)
	delete(s.requests, key)
	for i, k := range s.issueOrder {
		if k == key {
			s.issueOrder = append(s.issueOrder[:i], s.issueOrder[i+1:]...)
			break
		}
	}
	events := []Event{newEvent(EventIssueDeleted, payload)}
	s.mu.Unlock()

	s.emit(events)
	return nil
}

// Transitions lists the transitions available from the issue's current
// status.
func (s *Store) Transitions(key string) ([]*Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issue, ok := s.issues[key]
	if !ok {
		return nil, &NotFoundError{Kind: "issue", Ref: key}
	}
	var out []*Transition
	for _, t := range s.transitions {
		if t.From == issue.StatusID {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

// ApplyTransition moves an issue along one workflow transition. A transition
// whose source status does not match the issue's current status is a
// conflict and leaves the issue unchanged.
func (s *Store) ApplyTransition(key, transitionID string) (*Issue, error) {
	s.mu.Lock()
	issue, ok := s.issues[key]
	if !ok {
		s.mu.Unlock()
		return nil, &NotFoundError{Kind: "issue", Ref: key}
	}

	var transition *Transition
	for _, t := range s.transitions {
		if t.ID == transitionID {
			transition = t
			break
		}
	}
	if transition == nil {
		s.mu.Unlock()
		return nil, &NotFoundError{Kind: "transition", Ref: transitionID}
	}
	if transition.From != issue.StatusID {
		current := s.statuses[issue.StatusID]
		s.mu.Unlock()
		return nil, &ConflictError{Message: fmt.Sprintf(
			"transition %q is not valid from status %q", transition.Name, current.Name)}
	}

	issue.StatusID = transition.To
	issue.Updated = time.Now().UTC()

	events := []Event{newEvent(EventIssueUpdated, s.issuePayloadLocked(issue))}
	result := cloneIssue(issue)
	s.mu.Unlock()

	s.emit(events)
	return result, nil
}

// AddComment normalizes the body, appends the comment and bumps the issue's
// Updated timestamp.
func (s *Store) AddComment(key, authorID string, body any) (*Comment, error) {
	s.mu.Lock()
	issue, ok := s.issues[key]
	if !ok {
		s.mu.Unlock()
		return nil, &NotFoundError{Kind: "issue", Ref: key}
	}
	if _, ok := s.users[authorID]; !ok {
		s.mu.Unlock()
		return nil, NewValidationError("author", fmt.Sprintf("author %q does not exist", authorID))
	}

	comment := &Comment{
		ID:      s.nextIDLocked(),
		Author:  authorID,
		Body:    cloneDoc(adf.Normalize(body)),
		Created: time.Now().UTC(),
	}
	issue.Comments = append(issue.Comments, comment)
	issue.Updated = comment.Created

	payload := s.issuePayloadLocked(issue)
	payload["comment"] = renderComment(comment, s.users[authorID])
	events := []Event{
		newEvent(EventCommentCreated, payload),
		newEvent(EventIssueUpdated, s.issuePayloadLocked(issue)),
	}
	c := *comment
	c.Body = cloneDoc(comment.Body)
	s.mu.Unlock()

	s.emit(events)
	return &c, nil
}

// Comments lists an issue's comments in creation order.
func (s *Store) Comments(key string) ([]*Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issue, ok := s.issues[key]
	if !ok {
		return nil, &NotFoundError{Kind: "issue", Ref: key}
	}
	out := make([]*Comment, len(issue.Comments))
	for i, c := range issue.Comments {
		cc := *c
		cc.Body = cloneDoc(c.Body)
		out[i] = &cc
	}
	return out, nil
}

// Search applies a parsed query plan against all issues. The currentUser()
// placeholder is resolved against principalID here, at search time. Results
// follow the plan's ORDER BY, defaulting to creation order.
func (s *Store) Search(plan jql.Plan, principalID string) []*Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resolved := resolvePrincipal(plan, principalID)

	var out []*Issue
	for _, key := range s.issueOrder {
		issue := s.issues[key]
		if !resolved.MatchFields(s.filterFieldsLocked(issue)) {
			continue
		}
		if !matchDates(issue, resolved.Dates) {
			continue
		}
		out = append(out, cloneIssue(issue))
	}

	if len(resolved.OrderBy) > 0 {
		s.sortIssuesLocked(out, resolved.OrderBy)
	}
	return out
}

// resolvePrincipal substitutes the currentUser() placeholder in a copy of the
// plan's value maps.
func resolvePrincipal(plan jql.Plan, principalID string) jql.Plan {
	sub := func(v string) string {
		if v == jql.CurrentUserPlaceholder {
			return principalID
		}
		return v
	}
	out := plan
	out.Equals = make(map[string]string, len(plan.Equals))
	for k, v := range plan.Equals {
		out.Equals[k] = sub(v)
	}
	out.NotEquals = make(map[string]string, len(plan.NotEquals))
	for k, v := range plan.NotEquals {
		out.NotEquals[k] = sub(v)
	}
	out.In = make(map[string][]string, len(plan.In))
	for k, vs := range plan.In {
		resolved := make([]string, len(vs))
		for i, v := range vs {
			resolved[i] = sub(v)
		}
		out.In[k] = resolved
	}
	return out
}

// filterFieldsLocked flattens an issue into the multi-valued field map the
// query plan matches against. Caller must hold at least the read lock.
func (s *Store) filterFieldsLocked(issue *Issue) map[string][]string {
	fields := map[string][]string{
		"key":      {issue.Key},
		"project":  {issue.Project},
		"reporter": {issue.Reporter},
		"summary":  {issue.Summary},
		"labels":   issue.Labels,
	}
	if issue.Assignee != "" {
		fields["assignee"] = []string{issue.Assignee}
	}
	if status, ok := s.statuses[issue.StatusID]; ok {
		fields["status"] = []string{status.Name, status.ID}
	}
	if t, ok := s.issueTypes[issue.TypeID]; ok {
		fields["issuetype"] = []string{t.Name, t.ID}
		fields["type"] = fields["issuetype"]
	}
	if issue.SprintID != "" {
		fields["sprint"] = []string{issue.SprintID}
	}
	// Custom fields never shadow the built-in ones above.
	for k, v := range issue.Custom {
		key := strings.ToLower(k)
		if _, taken := fields[key]; taken {
			continue
		}
		fields[key] = []string{fmt.Sprintf("%v", v)}
	}
	return fields
}

func matchDates(issue *Issue, filters []jql.DateFilter) bool {
	for _, f := range filters {
		var value time.Time
		switch f.Field {
		case "created":
			value = issue.Created
		case "updated":
			value = issue.Updated
		default:
			return false
		}
		switch f.Op {
		case jql.DateAfter:
			if !value.After(f.Bound) {
				return false
			}
		case jql.DateAtOrAfter:
			if value.Before(f.Bound) {
				return false
			}
		case jql.DateBefore:
			if !value.Before(f.Bound) {
				return false
			}
		case jql.DateAtOrBefore:
			if value.After(f.Bound) {
				return false
			}
		}
	}
	return true
}

// sortIssuesLocked sorts issues by the plan's sort keys. Ties fall through to
// the next key, then to the issue key for determinism.
func (s *Store) sortIssuesLocked(issues []*Issue, keys []jql.SortKey) {
	sort.SliceStable(issues, func(i, j int) bool {
		for _, k := range keys {
			cmp := s.compareIssuesLocked(issues[i], issues[j], k.Field)
			if cmp == 0 {
				continue
			}
			if k.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return issues[i].Key < issues[j].Key
	})
}

func (s *Store) compareIssuesLocked(a, b *Issue, field string) int {
	switch field {
	case "created":
		return a.Created.Compare(b.Created)
	case "updated":
		return a.Updated.Compare(b.Updated)
	case "key":
		return strings.Compare(a.Key, b.Key)
	case "summary":
		return strings.Compare(a.Summary, b.Summary)
	case "status":
		return strings.Compare(s.statusName(a.StatusID), s.statusName(b.StatusID))
	case "assignee":
		return strings.Compare(a.Assignee, b.Assignee)
	case "reporter":
		return strings.Compare(a.Reporter, b.Reporter)
	default:
		av := fmt.Sprintf("%v", a.Custom[field])
		bv := fmt.Sprintf("%v", b.Custom[field])
		return strings.Compare(av, bv)
	}
}

func (s *Store) statusName(id string) string {
	if st, ok := s.statuses[id]; ok {
		return st.Name
	}
	return ""
}

// cloneIssue deep-copies an issue so callers can mutate the result without
// touching store internals, document trees included.
func cloneIssue(issue *Issue) *Issue {
	c := *issue
	c.Labels = append([]string(nil), issue.Labels...)
	c.Description = cloneDoc(issue.Description)
	c.Custom = cloneMap(issue.Custom)
	c.Comments = make([]*Comment, len(issue.Comments))
	for i, cm := range issue.Comments {
		cc := *cm
		cc.Body = cloneDoc(cm.Body)
		c.Comments[i] = &cc
	}
	return &c
}

func cloneDoc(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	return deepcopy.Copy(doc).(map[string]any)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepcopy.Copy(v)
	}
	return out
}

func toStringSlice(v any) ([]string, error) {
	switch vals := v.(type) {
	case []string:
		return append([]string(nil), vals...), nil
	case []any:
		out := make([]string, len(vals))
		for i, item := range vals {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is not a string", i)
			}
			out[i] = str
		}
		return out, nil
	default:
		return nil, fmt.Errorf("not a string array")
	}
}
