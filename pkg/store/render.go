package store

import "time"

// RenderIssue builds the wire representation of an issue: the {id, key,
// fields:{...}} shape clients of the real API expect, with referenced users,
// status and type resolved to objects. Custom fields are merged into the
// fields object under their own keys.
func (s *Store) RenderIssue(issue *Issue) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renderIssueLocked(issue)
}

func (s *Store) renderIssueLocked(issue *Issue) map[string]any {
	fields := map[string]any{
		"summary":     issue.Summary,
		"description": issue.Description,
		"labels":      issue.Labels,
		"created":     issue.Created.Format(time.RFC3339),
		"updated":     issue.Updated.Format(time.RFC3339),
	}

	if p, ok := s.projects[issue.Project]; ok {
		fields["project"] = map[string]any{"id": p.ID, "key": p.Key, "name": p.Name}
	}
	if t, ok := s.issueTypes[issue.TypeID]; ok {
		fields["issuetype"] = map[string]any{"id": t.ID, "name": t.Name}
	}
	if st, ok := s.statuses[issue.StatusID]; ok {
		fields["status"] = map[string]any{
			"id":   st.ID,
			"name": st.Name,
			"statusCategory": map[string]any{
				"id": st.Category.ID, "key": st.Category.Key, "name": st.Category.Name,
			},
		}
	}
	fields["reporter"] = s.renderUserRefLocked(issue.Reporter)
	if issue.Assignee != "" {
		fields["assignee"] = s.renderUserRefLocked(issue.Assignee)
	} else {
		fields["assignee"] = nil
	}
	if issue.SprintID != "" {
		fields["sprint"] = issue.SprintID
	}
	for k, v := range issue.Custom {
		fields[k] = v
	}

	comments := make([]any, len(issue.Comments))
	for i, c := range issue.Comments {
		comments[i] = renderComment(c, s.users[c.Author])
	}
	fields["comment"] = map[string]any{"comments": comments, "total": len(comments)}

	return map[string]any{
		"id":     issue.ID,
		"key":    issue.Key,
		"self":   "/rest/api/2/issue/" + issue.Key,
		"fields": fields,
	}
}

func (s *Store) renderUserRefLocked(accountID string) map[string]any {
	ref := map[string]any{"accountId": accountID}
	if u, ok := s.users[accountID]; ok {
		ref["displayName"] = u.DisplayName
		ref["emailAddress"] = u.Email
	}
	return ref
}

func renderComment(c *Comment, author *User) map[string]any {
	out := map[string]any{
		"id":      c.ID,
		"body":    c.Body,
		"created": c.Created.Format(time.RFC3339),
	}
	ref := map[string]any{"accountId": c.Author}
	if author != nil {
		ref["displayName"] = author.DisplayName
	}
	out["author"] = ref
	return out
}

// issuePayloadLocked builds the webhook event payload for an issue event.
func (s *Store) issuePayloadLocked(issue *Issue) map[string]any {
	return map[string]any{"issue": s.renderIssueLocked(issue)}
}
