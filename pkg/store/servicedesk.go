package store

import (
	"fmt"
	"sort"
	"time"
)

// defaultRequestType is the request type assigned to auto-created service
// requests.
const defaultRequestType = "10100"

// CreateRequestParams is the input to CreateRequest.
type CreateRequestParams struct {
	ProjectKey  string
	TypeID      string
	Summary     string
	Description any
	Reporter    string
}

// CreateRequest creates an issue under a service-desk project and returns
// the ServiceRequest that CreateIssue linked to it. A non-service-desk
// project is a validation error.
func (s *Store) CreateRequest(p CreateRequestParams) (*ServiceRequest, error) {
	s.mu.RLock()
	project, ok := s.projects[p.ProjectKey]
	s.mu.RUnlock()
	if !ok {
		return nil, NewValidationError("project", fmt.Sprintf("project %q does not exist", p.ProjectKey))
	}
	if project.Type != ServiceDeskType {
		return nil, NewValidationError("project", fmt.Sprintf("project %q is not a service desk", p.ProjectKey))
	}

	issue, err := s.CreateIssue(CreateIssueParams{
		ProjectKey:  p.ProjectKey,
		TypeID:      p.TypeID,
		Summary:     p.Summary,
		Description: p.Description,
		Reporter:    p.Reporter,
	})
	if err != nil {
		return nil, err
	}
	return s.RequestByKey(issue.Key)
}

// RequestByKey returns the service request linked to an issue key.
func (s *Store) RequestByKey(issueKey string) (*ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[issueKey]
	if !ok {
		return nil, &NotFoundError{Kind: "request", Ref: issueKey}
	}
	return cloneRequest(req), nil
}

// Requests lists all service requests in creation order.
func (s *Store) Requests() []*ServiceRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ServiceRequest, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, cloneRequest(req))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Approvals lists the approval slots on a request.
func (s *Store) Approvals(issueKey string) ([]*Approval, error) {
	req, err := s.RequestByKey(issueKey)
	if err != nil {
		return nil, err
	}
	return req.Approvals, nil
}

// Decide records an approval decision. Decisions are append-only: a slot that
// has already been decided cannot be decided again.
func (s *Store) Decide(issueKey, approvalID, decision, deciderID string) (*Approval, error) {
	if decision != "approved" && decision != "declined" {
		return nil, NewValidationError("decision", fmt.Sprintf("decision must be approved or declined, got %q", decision))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[issueKey]
	if !ok {
		return nil, &NotFoundError{Kind: "request", Ref: issueKey}
	}
	if _, ok := s.users[deciderID]; !ok {
		return nil, NewValidationError("decider", fmt.Sprintf("decider %q does not exist", deciderID))
	}

	for _, a := range req.Approvals {
		if a.ID != approvalID {
			continue
		}
		if a.Decision != "pending" {
			return nil, &ConflictError{Message: fmt.Sprintf(
				"approval %q already decided as %q", approvalID, a.Decision)}
		}
		a.Decision = decision
		a.Decider = deciderID
		a.Decided = time.Now().UTC()
		c := *a
		return &c, nil
	}
	return nil, &NotFoundError{Kind: "approval", Ref: approvalID}
}

func cloneRequest(req *ServiceRequest) *ServiceRequest {
	c := *req
	c.Approvals = make([]*Approval, len(req.Approvals))
	for i, a := range req.Approvals {
		ac := *a
		c.Approvals[i] = &ac
	}
	return &c
}
