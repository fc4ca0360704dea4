package store

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Boards lists all boards sorted by id.
func (s *Store) Boards() []*Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Board, 0, len(s.boards))
	for _, b := range s.boards {
		c := *b
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BoardByID returns one board.
func (s *Store) BoardByID(id int) (*Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[id]
	if !ok {
		return nil, &NotFoundError{Kind: "board", Ref: strconv.Itoa(id)}
	}
	c := *b
	return &c, nil
}

// Sprints lists a board's sprints sorted by id.
func (s *Store) Sprints(boardID int) ([]*Sprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.boards[boardID]; !ok {
		return nil, &NotFoundError{Kind: "board", Ref: strconv.Itoa(boardID)}
	}
	var out []*Sprint
	for _, sp := range s.sprints {
		if sp.BoardID == boardID {
			c := *sp
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SprintByID returns one sprint.
func (s *Store) SprintByID(id int) (*Sprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.sprints[id]
	if !ok {
		return nil, &NotFoundError{Kind: "sprint", Ref: strconv.Itoa(id)}
	}
	c := *sp
	return &c, nil
}

// SprintIssues lists the issues assigned to a sprint, in creation order.
func (s *Store) SprintIssues(sprintID int) ([]*Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sprints[sprintID]; !ok {
		return nil, &NotFoundError{Kind: "sprint", Ref: strconv.Itoa(sprintID)}
	}
	want := strconv.Itoa(sprintID)
	var out []*Issue
	for _, key := range s.issueOrder {
		issue := s.issues[key]
		if issue.SprintID == want {
			out = append(out, cloneIssue(issue))
		}
	}
	return out, nil
}

// Backlog lists the board project's issues that are in no sprint.
func (s *Store) Backlog(boardID int) ([]*Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	board, ok := s.boards[boardID]
	if !ok {
		return nil, &NotFoundError{Kind: "board", Ref: strconv.Itoa(boardID)}
	}
	var out []*Issue
	for _, key := range s.issueOrder {
		issue := s.issues[key]
		if issue.Project == board.Project && issue.SprintID == "" {
			out = append(out, cloneIssue(issue))
		}
	}
	return out, nil
}

// MoveToSprint assigns issues to a sprint. Unknown issue keys fail the whole
// call before any issue is moved. Each moved issue emits jira:issue_updated.
func (s *Store) MoveToSprint(sprintID int, keys []string) error {
	s.mu.Lock()
	if _, ok := s.sprints[sprintID]; !ok {
		s.mu.Unlock()
		return &NotFoundError{Kind: "sprint", Ref: strconv.Itoa(sprintID)}
	}
	for _, key := range keys {
		if _, ok := s.issues[key]; !ok {
			s.mu.Unlock()
			return &NotFoundError{Kind: "issue", Ref: key}
		}
	}

	now := time.Now().UTC()
	events := make([]Event, 0, len(keys))
	for _, key := range keys {
		issue := s.issues[key]
		issue.SprintID = strconv.Itoa(sprintID)
		issue.Updated = now
		events = append(events, newEvent(EventIssueUpdated, s.issuePayloadLocked(issue)))
	}
	s.mu.Unlock()

	s.emit(events)
	return nil
}

// UpdateSprintState advances a sprint along future -> active -> closed.
// Backward moves and skips are conflicts.
func (s *Store) UpdateSprintState(id int, state string) (*Sprint, error) {
	valid := map[string]string{
		SprintFuture: SprintActive,
		SprintActive: SprintClosed,
	}

	s.mu.Lock()
	sp, ok := s.sprints[id]
	if !ok {
		s.mu.Unlock()
		return nil, &NotFoundError{Kind: "sprint", Ref: strconv.Itoa(id)}
	}
	if state != SprintFuture && state != SprintActive && state != SprintClosed {
		s.mu.Unlock()
		return nil, NewValidationError("state", fmt.Sprintf("unknown sprint state %q", state))
	}
	if valid[sp.State] != state {
		s.mu.Unlock()
		return nil, &ConflictError{Message: fmt.Sprintf(
			"sprint cannot move from %q to %q", sp.State, state)}
	}

	sp.State = state
	now := time.Now().UTC()
	switch state {
	case SprintActive:
		if sp.Start.IsZero() {
			sp.Start = now
		}
	case SprintClosed:
		if sp.End.IsZero() {
			sp.End = now
		}
	}

	c := *sp
	events := []Event{newEvent(EventSprintUpdated, map[string]any{"sprint": c})}
	s.mu.Unlock()

	s.emit(events)
	return &c, nil
}
